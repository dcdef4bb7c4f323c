package booking

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/sanosuguru/go-event-booking/internal/domain/event"
)

// Status は予約の状態を表す
type Status string

const (
	// StatusPending は非同期決済フロー用に予約されている（現在のフローでは使わない）
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// IsValid は状態が既知の値かを返す
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// Contact は申込者の連絡先
type Contact struct {
	Name   string
	Email  string
	Mobile string
}

// Validate は連絡先の必須項目を検証する
func (c Contact) Validate() error {
	if utf8.RuneCountInString(strings.TrimSpace(c.Name)) < 2 {
		return ErrContactNameRequired
	}
	if strings.TrimSpace(c.Email) == "" {
		return ErrContactEmailRequired
	}
	return nil
}

// EventSummary は予約に添えて表示するイベントの概要。保存しない
type EventSummary struct {
	ID       string
	Title    string
	Location string
	StartsAt time.Time
}

// SummaryOf はイベントから概要を作る
func SummaryOf(e *event.Event) *EventSummary {
	if e == nil {
		return nil
	}
	return &EventSummary{ID: e.ID, Title: e.Title, Location: e.Location, StartsAt: e.StartsAt}
}

// Booking は予約エンティティを表す
// EventID は弱参照で、イベントのライフサイクルは所有しない
type Booking struct {
	ID             string
	EventID        string
	UserID         string
	Contact        Contact
	Quantity       int
	TotalAmount    int64 // 作成時に price × quantity で一度だけ計算する
	Status         Status
	IdempotencyKey string
	QRPayload      string
	QRCode         string // QRPayload から描画する。保存しない
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CancelledAt    *time.Time
	Event          *EventSummary // 読み出し時に添える
}

// NewConfirmed は座席確保に成功したイベントから確定済み予約を作成する
// 金額は確保時点のイベント価格で固定される
func NewConfirmed(reserved *event.Event, userID string, contact Contact, quantity int, idempotencyKey string) (*Booking, error) {
	amount, err := reserved.PriceFor(quantity)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &Booking{
		ID:      uuid.NewString(),
		EventID: reserved.ID,
		UserID:  userID,
		Contact: Contact{
			Name:   strings.TrimSpace(contact.Name),
			Email:  strings.ToLower(strings.TrimSpace(contact.Email)),
			Mobile: strings.TrimSpace(contact.Mobile),
		},
		Quantity:       quantity,
		TotalAmount:    amount,
		Status:         StatusConfirmed,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Cancel は confirmed から cancelled へ遷移する
// cancelled は終端状態で、pending はキャンセル対象外
func (b *Booking) Cancel() error {
	switch b.Status {
	case StatusCancelled:
		return ErrAlreadyCancelled
	case StatusConfirmed:
	default:
		return ErrNotCancellable
	}
	now := time.Now()
	b.Status = StatusCancelled
	b.CancelledAt = &now
	b.UpdatedAt = now
	return nil
}

// HoldsSeats は空席数の予算に対して座席を保持しているかを返す
func (b *Booking) HoldsSeats() bool {
	return b.Status == StatusConfirmed
}

// Validate は予約の検証を行う
func (b *Booking) Validate() error {
	if b.EventID == "" {
		return ErrEventIDRequired
	}
	if b.UserID == "" {
		return ErrUserIDRequired
	}
	if b.Quantity < 1 {
		return event.ErrInvalidQuantity
	}
	if b.TotalAmount < 0 {
		return ErrInvalidAmount
	}
	if err := b.Contact.Validate(); err != nil {
		return err
	}
	if !b.Status.IsValid() {
		return ErrInvalidStatus
	}
	return nil
}
