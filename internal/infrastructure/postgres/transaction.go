package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-event-booking/internal/domain/transaction"
)

// pgTx は sqlx.Tx を作業単位として扱う
// 座席の確保と予約の保存は同じ pgTx の中で行う
type pgTx struct {
	tx *sqlx.Tx
}

func (t *pgTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}

// Rollback は終了済みのトランザクションに対しては何もしない
func (t *pgTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("ロールバックに失敗: %w", err)
	}
	return nil
}

// TxManager は PostgreSQL のトランザクションを作業単位として開始する
type TxManager struct {
	db *sqlx.DB
}

var _ transaction.Manager = (*TxManager)(nil)

func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{db: db}
}

func (m *TxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

// requireTx はリポジトリが受け取った作業単位から sqlx.Tx を取り出す
func requireTx(tx transaction.Tx) (*sqlx.Tx, error) {
	if t, ok := tx.(*pgTx); ok && t != nil {
		return t.tx, nil
	}
	return nil, transaction.ErrNoTransaction
}
