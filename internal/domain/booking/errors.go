package booking

import "errors"

// Booking ドメインのエラー定義
var (
	ErrBookingNotFound         = errors.New("予約が見つかりません")
	ErrForbidden               = errors.New("この予約を操作する権限がありません")
	ErrAlreadyCancelled        = errors.New("予約は既にキャンセルされています")
	ErrNotCancellable          = errors.New("この状態の予約はキャンセルできません")
	ErrEventIDRequired         = errors.New("イベントIDは必須です")
	ErrUserIDRequired          = errors.New("ユーザーIDは必須です")
	ErrInvalidAmount           = errors.New("金額は0以上である必要があります")
	ErrContactNameRequired     = errors.New("氏名は2文字以上で入力してください")
	ErrContactEmailRequired    = errors.New("メールアドレスは必須です")
	ErrInvalidStatus           = errors.New("不明な予約状態です")
	ErrDuplicateIdempotencyKey = errors.New("同じ冪等性キーの予約が既に存在します")
	ErrProofMissing            = errors.New("予約証明のペイロードがありません")

	// ErrCompensationRequired は座席確保後に予約の保存が失敗し、座席の戻しも確認できなかったことを表す
	// 利用者には汎用エラーとして返し、詳細は運用ログに残す
	ErrCompensationRequired = errors.New("座席在庫の照合が必要です")
)
