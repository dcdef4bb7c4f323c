package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-event-booking/internal/domain/booking"
)

func TestStatsService_Overview(t *testing.T) {
	t.Run("管理者は上位イベント付きの集計を取得", func(t *testing.T) {
		reader := new(MockStatsReader)
		want := &booking.Stats{TotalBookings: 3, ConfirmedBookings: 2, TotalRevenue: 4000, ByEvent: []booking.EventStats{}}
		reader.On("Stats", mock.Anything, booking.DefaultTopEvents).Return(want, nil)
		svc := NewStatsService(reader)

		got, err := svc.Overview(context.Background(), booking.Actor{UserID: "a", Role: booking.RoleAdmin})

		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("一般ユーザーは拒否", func(t *testing.T) {
		reader := new(MockStatsReader)
		svc := NewStatsService(reader)

		_, err := svc.Overview(context.Background(), booking.Actor{UserID: "u", Role: booking.RoleUser})

		assert.ErrorIs(t, err, booking.ErrForbidden)
		reader.AssertNotCalled(t, "Stats", mock.Anything, booking.DefaultTopEvents)
	})
}
