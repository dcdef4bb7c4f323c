package booking

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	bookings := []*Booking{
		{EventID: "b", Status: StatusConfirmed, Quantity: 2, TotalAmount: 2000},
		{EventID: "a", Status: StatusConfirmed, Quantity: 1, TotalAmount: 500},
		{EventID: "b", Status: StatusCancelled, Quantity: 4, TotalAmount: 4000},
		{EventID: "a", Status: StatusConfirmed, Quantity: 3, TotalAmount: 1500},
		{EventID: "c", Status: StatusConfirmed, Quantity: 1, TotalAmount: 100},
		{EventID: "c", Status: StatusPending, Quantity: 1, TotalAmount: 100},
	}

	stats := Summarize(bookings, DefaultTopEvents)

	assert.Equal(t, 6, stats.TotalBookings)
	assert.Equal(t, 4, stats.ConfirmedBookings)
	assert.Equal(t, 1, stats.CancelledBookings)
	assert.Equal(t, 1, stats.PendingBookings)
	assert.Equal(t, int64(4100), stats.TotalRevenue)

	assert.Equal(t, []EventStats{
		{EventID: "a", Count: 2, Seats: 4, Revenue: 2000},
		{EventID: "b", Count: 1, Seats: 2, Revenue: 2000},
		{EventID: "c", Count: 1, Seats: 1, Revenue: 100},
	}, stats.ByEvent)
}

func TestSummarize_MatchesRecomputation(t *testing.T) {
	var bookings []*Booking
	statuses := []Status{StatusConfirmed, StatusCancelled, StatusConfirmed, StatusPending}
	for i := 0; i < 40; i++ {
		bookings = append(bookings, &Booking{
			EventID:     fmt.Sprintf("event-%d", i%7),
			Status:      statuses[i%len(statuses)],
			Quantity:    1 + i%3,
			TotalAmount: int64(100 * (i + 1)),
		})
	}

	stats := Summarize(bookings, 0)

	var confirmed, cancelled int
	var revenue int64
	for _, b := range bookings {
		switch b.Status {
		case StatusConfirmed:
			confirmed++
			revenue += b.TotalAmount
		case StatusCancelled:
			cancelled++
		}
	}
	assert.Equal(t, len(bookings), stats.TotalBookings)
	assert.Equal(t, confirmed, stats.ConfirmedBookings)
	assert.Equal(t, cancelled, stats.CancelledBookings)
	assert.Equal(t, revenue, stats.TotalRevenue)

	var perEventRevenue int64
	for _, es := range stats.ByEvent {
		perEventRevenue += es.Revenue
	}
	assert.Equal(t, revenue, perEventRevenue)
}

func TestSummarize_TopNAndDeterministicOrder(t *testing.T) {
	var bookings []*Booking
	for i := 0; i < 15; i++ {
		bookings = append(bookings, &Booking{
			EventID:     fmt.Sprintf("event-%02d", 14-i),
			Status:      StatusConfirmed,
			Quantity:    1,
			TotalAmount: 100,
		})
	}

	first := Summarize(bookings, DefaultTopEvents)
	second := Summarize(bookings, DefaultTopEvents)

	assert.Len(t, first.ByEvent, DefaultTopEvents)
	assert.Equal(t, first.ByEvent, second.ByEvent)
	assert.Equal(t, "event-00", first.ByEvent[0].EventID)
	assert.Equal(t, "event-09", first.ByEvent[9].EventID)
}

func TestSummarize_Empty(t *testing.T) {
	stats := Summarize(nil, DefaultTopEvents)

	assert.Zero(t, stats.TotalBookings)
	assert.NotNil(t, stats.ByEvent)
	assert.Empty(t, stats.ByEvent)
}
