package handler

import (
	"context"

	"github.com/sanosuguru/go-event-booking/internal/application"
	"github.com/sanosuguru/go-event-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-booking/internal/domain/event"
)

// EventServiceInterface はイベントサービスのインターフェース
type EventServiceInterface interface {
	CreateEvent(ctx context.Context, input application.CreateEventInput) (*event.Event, error)
	GetEvent(ctx context.Context, id string) (*event.Event, error)
	ListEvents(ctx context.Context, input application.ListEventsInput) (*application.EventPage, error)
	UpdateEvent(ctx context.Context, input application.UpdateEventInput) (*event.Event, error)
	SetActive(ctx context.Context, id string, active bool) (*event.Event, error)
	ChangeCapacity(ctx context.Context, id string, totalSeats int) (*event.Event, error)
	DeleteEvent(ctx context.Context, id string) error
	Categories(ctx context.Context) ([]event.Category, error)
}

// BookingServiceInterface は予約サービスのインターフェース
type BookingServiceInterface interface {
	CreateBooking(ctx context.Context, input application.CreateBookingInput) (*booking.Booking, error)
	CancelBooking(ctx context.Context, input application.CancelBookingInput) (*booking.Booking, error)
	GetBooking(ctx context.Context, id string, actor booking.Actor) (*booking.Booking, error)
	ListMyBookings(ctx context.Context, actor booking.Actor, limit, offset int) ([]*booking.Booking, error)
	ListBookings(ctx context.Context, input application.ListBookingsInput) (*application.BookingPage, error)
	Availability(ctx context.Context, eventID string) (int, error)
}

// StatsServiceInterface は統計サービスのインターフェース
type StatsServiceInterface interface {
	Overview(ctx context.Context, actor booking.Actor) (*booking.Stats, error)
}

var (
	_ EventServiceInterface   = (*application.EventService)(nil)
	_ BookingServiceInterface = (*application.BookingService)(nil)
	_ StatsServiceInterface   = (*application.StatsService)(nil)
)
