package application

import (
	"context"

	"github.com/sanosuguru/go-event-booking/internal/domain/booking"
)

// StatsService は予約台帳の集計を管理者に返す
type StatsService struct {
	reader booking.StatsReader
}

func NewStatsService(reader booking.StatsReader) *StatsService {
	return &StatsService{reader: reader}
}

// Overview は件数・売上・上位イベントを返す。書き込みはブロックしない
func (s *StatsService) Overview(ctx context.Context, actor booking.Actor) (*booking.Stats, error) {
	if !actor.IsAdmin() {
		return nil, booking.ErrForbidden
	}
	return s.reader.Stats(ctx, booking.DefaultTopEvents)
}
