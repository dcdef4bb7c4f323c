package memory

import (
	"context"
	"sort"
	"time"

	"github.com/sanosuguru/go-event-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-booking/internal/domain/transaction"
)

// BookingRepository はインメモリの予約台帳
type BookingRepository struct {
	store *Store
}

var (
	_ booking.Repository    = (*BookingRepository)(nil)
	_ booking.StatsReader   = (*BookingRepository)(nil)
	_ booking.BalanceReader = (*BookingRepository)(nil)
)

func (r *BookingRepository) Create(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	t, err := unwrapTx(tx)
	if err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if b.IdempotencyKey != "" {
		if _, exists := r.store.byKey[b.IdempotencyKey]; exists {
			return booking.ErrDuplicateIdempotencyKey
		}
		r.store.byKey[b.IdempotencyKey] = b.ID
	}
	r.store.bookings[b.ID] = cloneBooking(b)
	r.store.order = append(r.store.order, b.ID)
	if b.HoldsSeats() {
		t.shift(b.EventID, -b.Quantity)
	}

	t.onRollback(func() error {
		delete(r.store.bookings, b.ID)
		if b.IdempotencyKey != "" {
			delete(r.store.byKey, b.IdempotencyKey)
		}
		for i := len(r.store.order) - 1; i >= 0; i-- {
			if r.store.order[i] == b.ID {
				r.store.order = append(r.store.order[:i], r.store.order[i+1:]...)
				break
			}
		}
		return nil
	})
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	b, ok := r.store.bookings[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	return cloneBooking(b), nil
}

func (r *BookingRepository) GetByIdempotencyKey(ctx context.Context, key string) (*booking.Booking, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	id, ok := r.store.byKey[key]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	return cloneBooking(r.store.bookings[id]), nil
}

func (r *BookingRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	matched := r.newestFirst(func(b *booking.Booking) bool { return b.UserID == userID })
	return paginate(matched, limit, offset), nil
}

func (r *BookingRepository) List(ctx context.Context, filter booking.ListFilter) ([]*booking.Booking, int, error) {
	matched := r.newestFirst(func(b *booking.Booking) bool {
		if filter.Status != "" && b.Status != filter.Status {
			return false
		}
		return filter.EventID == "" || b.EventID == filter.EventID
	})
	return paginate(matched, filter.Limit, filter.Offset), len(matched), nil
}

// MarkCancelled は confirmed のときだけ状態を書き換える
func (r *BookingRepository) MarkCancelled(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	t, err := unwrapTx(tx)
	if err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.bookings[b.ID]
	if !ok {
		return booking.ErrBookingNotFound
	}
	if current.Status != booking.StatusConfirmed {
		return booking.ErrAlreadyCancelled
	}

	now := time.Now()
	if b.CancelledAt != nil {
		now = *b.CancelledAt
	}
	previous := cloneBooking(current)
	current.Status = booking.StatusCancelled
	current.CancelledAt = &now
	current.UpdatedAt = now
	t.shift(current.EventID, current.Quantity)

	t.onRollback(func() error {
		r.store.bookings[b.ID] = previous
		return nil
	})
	return nil
}

// SeatBalances は在庫と台帳を一つのロック区間で読む
// 未完了の作業単位が動かしている座席は InFlightSeats に入る
func (r *BookingRepository) SeatBalances(ctx context.Context) ([]booking.SeatBalance, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	confirmed := make(map[string]int)
	for _, b := range r.store.bookings {
		if b.HoldsSeats() {
			confirmed[b.EventID] += b.Quantity
		}
	}

	balances := make([]booking.SeatBalance, 0, len(r.store.events))
	for id, e := range r.store.events {
		balances = append(balances, booking.SeatBalance{
			EventID:        id,
			TotalSeats:     e.TotalSeats,
			AvailableSeats: e.AvailableSeats,
			ConfirmedSeats: confirmed[id],
			InFlightSeats:  r.store.inFlight[id],
		})
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].EventID < balances[j].EventID })
	return balances, nil
}

// Stats は台帳のスナップショットを集計し、イベント名を付与する
func (r *BookingRepository) Stats(ctx context.Context, topN int) (*booking.Stats, error) {
	snapshot := r.newestFirst(func(*booking.Booking) bool { return true })
	stats := booking.Summarize(snapshot, topN)

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i := range stats.ByEvent {
		if e, ok := r.store.events[stats.ByEvent[i].EventID]; ok {
			stats.ByEvent[i].EventTitle = e.Title
		}
	}
	return stats, nil
}

func (r *BookingRepository) newestFirst(match func(*booking.Booking) bool) []*booking.Booking {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	result := make([]*booking.Booking, 0)
	for i := len(r.store.order) - 1; i >= 0; i-- {
		b := r.store.bookings[r.store.order[i]]
		if match(b) {
			result = append(result, cloneBooking(b))
		}
	}
	return result
}
