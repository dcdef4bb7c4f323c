package event

import "errors"

// Event ドメインのエラー定義
var (
	ErrEventNotFound         = errors.New("イベントが見つかりません")
	ErrTitleRequired         = errors.New("イベント名は必須です")
	ErrInvalidTotalSeats     = errors.New("座席数は1以上である必要があります")
	ErrInvalidAvailableSeats = errors.New("空席数は0以上かつ総座席数以下である必要があります")
	ErrInvalidPrice          = errors.New("価格は0以上かつ上限以下である必要があります")
	ErrAmountOverflow        = errors.New("合計金額が上限を超えています")
	ErrInvalidCategory       = errors.New("不明なカテゴリです")
	ErrInvalidQuantity       = errors.New("数量は1以上である必要があります")

	// ErrInsufficientInventory は条件付き減算が一致しなかったことを表す
	// イベントが存在しない場合も同じエラーになる
	ErrInsufficientInventory = errors.New("空席が不足しています")

	ErrCapacityBelowBooked = errors.New("総座席数を予約済み座席数より少なくできません")
)
