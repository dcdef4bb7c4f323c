package application

import (
	"context"

	"github.com/sanosuguru/go-event-booking/internal/domain/booking"
)

// AvailabilityCache は表示用の空席数キャッシュ
// 予約可否の判定には使わず、在庫の変更後に無効化するだけ
type AvailabilityCache interface {
	Get(ctx context.Context, eventID string) (int, error)
	Set(ctx context.Context, eventID string, available int) error
	Invalidate(ctx context.Context, eventID string) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, booking.DomainEvent) error { return nil }
