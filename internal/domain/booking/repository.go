package booking

import (
	"context"

	"github.com/sanosuguru/go-event-booking/internal/domain/transaction"
)

// ListFilter は管理者向け一覧の絞り込み条件（空文字は条件なし）
type ListFilter struct {
	Status  Status
	EventID string
	Limit   int
	Offset  int
}

// Repository は予約台帳のリポジトリ
// 予約ID単位の追加・更新のみで、予約をまたぐロックは取らない
type Repository interface {
	// Create は新しい予約を保存する（トランザクション必須）
	Create(ctx context.Context, tx transaction.Tx, booking *Booking) error

	// GetByID はIDから予約を取得する
	GetByID(ctx context.Context, id string) (*Booking, error)

	// GetByIdempotencyKey は冪等性キーから予約を取得する
	GetByIdempotencyKey(ctx context.Context, key string) (*Booking, error)

	// ListByUser は申込者の予約を新しい順に取得する
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Booking, error)

	// List は予約一覧と総件数を取得する
	List(ctx context.Context, filter ListFilter) ([]*Booking, int, error)

	// MarkCancelled は confirmed の予約だけを cancelled に更新する（トランザクション必須）
	// 対象が confirmed でなければ ErrAlreadyCancelled
	MarkCancelled(ctx context.Context, tx transaction.Tx, booking *Booking) error
}

// StatsReader は予約台帳の読み取り専用集計
type StatsReader interface {
	Stats(ctx context.Context, topN int) (*Stats, error)
}
