package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sanosuguru/go-event-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-booking/internal/domain/transaction"
)

// EventRepository はインメモリのイベントリポジトリ兼在庫
type EventRepository struct {
	store *Store
}

var (
	_ event.Repository = (*EventRepository)(nil)
	_ event.Inventory  = (*EventRepository)(nil)
)

func (r *EventRepository) Create(ctx context.Context, e *event.Event) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if _, exists := r.store.events[e.ID]; exists {
		return fmt.Errorf("イベントID %s は既に存在します", e.ID)
	}
	r.store.events[e.ID] = cloneEvent(e)
	return nil
}

func (r *EventRepository) GetByID(ctx context.Context, id string) (*event.Event, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	e, ok := r.store.events[id]
	if !ok {
		return nil, event.ErrEventNotFound
	}
	return cloneEvent(e), nil
}

func (r *EventRepository) List(ctx context.Context, filter event.ListFilter) ([]*event.Event, int, error) {
	r.store.mu.Lock()
	matched := make([]*event.Event, 0, len(r.store.events))
	for _, e := range r.store.events {
		if !filter.IncludeInactive && !e.IsActive {
			continue
		}
		if filter.Category != "" && e.Category != filter.Category {
			continue
		}
		matched = append(matched, cloneEvent(e))
	}
	r.store.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].StartsAt.Equal(matched[j].StartsAt) {
			return matched[i].StartsAt.Before(matched[j].StartsAt)
		}
		return matched[i].ID < matched[j].ID
	})
	return paginate(matched, filter.Limit, filter.Offset), len(matched), nil
}

func (r *EventRepository) UpdateDetails(ctx context.Context, e *event.Event) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.events[e.ID]
	if !ok {
		return event.ErrEventNotFound
	}
	current.Title = e.Title
	current.Description = e.Description
	current.Location = e.Location
	current.Organizer = e.Organizer
	current.ImageURL = e.ImageURL
	current.Category = e.Category
	current.StartsAt = e.StartsAt
	current.Price = e.Price
	current.IsActive = e.IsActive
	current.UpdatedAt = time.Now()

	e.TotalSeats = current.TotalSeats
	e.AvailableSeats = current.AvailableSeats
	e.UpdatedAt = current.UpdatedAt
	return nil
}

func (r *EventRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.events[id]; !ok {
		return event.ErrEventNotFound
	}
	delete(r.store.events, id)
	return nil
}

func (r *EventRepository) Categories(ctx context.Context) ([]event.Category, error) {
	r.store.mu.Lock()
	seen := make(map[event.Category]struct{})
	for _, e := range r.store.events {
		if e.IsActive {
			seen[e.Category] = struct{}{}
		}
	}
	r.store.mu.Unlock()

	categories := make([]event.Category, 0, len(seen))
	for c := range seen {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })
	return categories, nil
}

// TryReserve は比較と減算を一つのロック区間で行う
func (r *EventRepository) TryReserve(ctx context.Context, tx transaction.Tx, id string, quantity int) (*event.Event, error) {
	if quantity < 1 {
		return nil, event.ErrInvalidQuantity
	}
	t, err := unwrapTx(tx)
	if err != nil {
		return nil, err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	e, ok := r.store.events[id]
	if !ok || e.AvailableSeats < quantity {
		return nil, event.ErrInsufficientInventory
	}
	e.AvailableSeats -= quantity
	e.UpdatedAt = time.Now()
	t.shift(id, quantity)

	t.onRollback(func() error {
		current, ok := r.store.events[id]
		if !ok {
			return fmt.Errorf("%w: イベント %s が存在しません", ErrUndoFailed, id)
		}
		current.AvailableSeats = min(current.TotalSeats, current.AvailableSeats+quantity)
		return nil
	})
	return cloneEvent(e), nil
}

// Release は総座席数を上限として空席数を戻す
func (r *EventRepository) Release(ctx context.Context, tx transaction.Tx, id string, quantity int) (*event.Event, error) {
	if quantity < 1 {
		return nil, event.ErrInvalidQuantity
	}
	t, err := unwrapTx(tx)
	if err != nil {
		return nil, err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	e, ok := r.store.events[id]
	if !ok {
		return nil, event.ErrEventNotFound
	}
	credited := min(quantity, e.TotalSeats-e.AvailableSeats)
	e.AvailableSeats += credited
	e.UpdatedAt = time.Now()
	t.shift(id, -credited)

	t.onRollback(func() error {
		current, ok := r.store.events[id]
		if !ok || current.AvailableSeats < credited {
			return fmt.Errorf("%w: イベント %s の空席数を戻せません", ErrUndoFailed, id)
		}
		current.AvailableSeats -= credited
		return nil
	})
	return cloneEvent(e), nil
}

func (r *EventRepository) ChangeCapacity(ctx context.Context, id string, totalSeats int) (*event.Event, error) {
	if totalSeats < 1 {
		return nil, event.ErrInvalidTotalSeats
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	e, ok := r.store.events[id]
	if !ok {
		return nil, event.ErrEventNotFound
	}
	if totalSeats < e.BookedSeats() {
		return nil, event.ErrCapacityBelowBooked
	}
	e.AvailableSeats += totalSeats - e.TotalSeats
	e.TotalSeats = totalSeats
	e.UpdatedAt = time.Now()
	return cloneEvent(e), nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
