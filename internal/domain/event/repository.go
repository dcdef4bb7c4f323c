package event

import (
	"context"

	"github.com/sanosuguru/go-event-booking/internal/domain/transaction"
)

// ListFilter はイベント一覧の絞り込み条件
type ListFilter struct {
	Category        Category
	IncludeInactive bool
	Limit           int
	Offset          int
}

// Repository はイベントの記述的属性を扱うリポジトリ
// 空席数はここでは変更しない
type Repository interface {
	// Create は新しいイベントを作成する
	Create(ctx context.Context, event *Event) error

	// GetByID はIDからイベントを取得する
	GetByID(ctx context.Context, id string) (*Event, error)

	// List はイベント一覧と総件数を取得する
	List(ctx context.Context, filter ListFilter) ([]*Event, int, error)

	// UpdateDetails は記述的属性と公開フラグを更新する（座席数は対象外）
	UpdateDetails(ctx context.Context, event *Event) error

	// Delete はイベントを削除する
	Delete(ctx context.Context, id string) error

	// Categories は登録済みイベントのカテゴリ一覧を返す
	Categories(ctx context.Context) ([]Category, error)
}

// Inventory は空席数に対する唯一の同期ポイント
// すべての操作はストア側で不可分に実行されること
type Inventory interface {
	// TryReserve は id が一致し空席数 >= quantity の場合に限り、同じ操作で空席数を減らす
	// 一致しなければ ErrInsufficientInventory（イベント不在と売り切れは区別しない）
	TryReserve(ctx context.Context, tx transaction.Tx, id string, quantity int) (*Event, error)

	// Release は空席数を quantity だけ戻す（総座席数を上限とする）
	Release(ctx context.Context, tx transaction.Tx, id string, quantity int) (*Event, error)

	// ChangeCapacity は総座席数を変更し、差分を空席数に反映する
	// 予約済み座席数を下回る場合は ErrCapacityBelowBooked
	ChangeCapacity(ctx context.Context, id string, totalSeats int) (*Event, error)
}
