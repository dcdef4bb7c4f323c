package transaction

import (
	"context"
	"errors"
)

// ErrNoTransaction はトランザクション必須の操作に nil が渡されたことを表す
var ErrNoTransaction = errors.New("トランザクションが指定されていません")

// Tx は一つの作業単位を表すインターフェース
// ドメイン層がインフラ層（sqlx等）に依存しないようにするための抽象化
type Tx interface {
	// Commit は作業単位を確定する
	Commit() error
	// Rollback は未確定の変更をすべて取り消す
	// 取り消し自体に失敗した場合（在庫の戻しが届かなかった等）はエラーを返す
	Rollback() error
}

// Manager は作業単位を開始する
type Manager interface {
	Begin(ctx context.Context) (Tx, error)
}
