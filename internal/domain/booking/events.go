package booking

import (
	"context"
	"time"
)

// EventType は予約のドメインイベント種別（キュー名を兼ねる）
type EventType string

const (
	EventConfirmed EventType = "booking.confirmed"
	EventCancelled EventType = "booking.cancelled"
)

// DomainEvent は予約の確定・キャンセルを外部へ知らせるメッセージ
type DomainEvent struct {
	Type        EventType `json:"type"`
	BookingID   string    `json:"bookingId"`
	EventID     string    `json:"eventId"`
	UserID      string    `json:"userId"`
	Email       string    `json:"email"`
	Quantity    int       `json:"quantity"`
	TotalAmount int64     `json:"totalAmount"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// NewDomainEvent は予約の現在の内容からドメインイベントを作る
func NewDomainEvent(t EventType, b *Booking) DomainEvent {
	return DomainEvent{
		Type:        t,
		BookingID:   b.ID,
		EventID:     b.EventID,
		UserID:      b.UserID,
		Email:       b.Contact.Email,
		Quantity:    b.Quantity,
		TotalAmount: b.TotalAmount,
		OccurredAt:  time.Now().UTC(),
	}
}

// Publisher はドメインイベントの送信先
// 送信の失敗は予約の結果に影響させない
type Publisher interface {
	Publish(ctx context.Context, e DomainEvent) error
}
