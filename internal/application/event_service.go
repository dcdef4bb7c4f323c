package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-booking/internal/pkg/logger"
)

type EventService struct {
	eventRepo event.Repository
	inventory event.Inventory
	cache     AvailabilityCache
	log       *zap.Logger
}

// NewEventService は EventService を作成する。cache は nil でもよい
func NewEventService(eventRepo event.Repository, inventory event.Inventory, cache AvailabilityCache) *EventService {
	return &EventService{eventRepo: eventRepo, inventory: inventory, cache: cache, log: logger.Named("event")}
}

type CreateEventInput struct {
	Title       string
	Description string
	Location    string
	Organizer   string
	ImageURL    string
	Category    event.Category
	StartsAt    time.Time
	TotalSeats  int
	Price       int64
}

func (s *EventService) CreateEvent(ctx context.Context, input CreateEventInput) (*event.Event, error) {
	e := event.NewEvent(input.Title, input.Description, input.Location, input.Organizer, input.Category, input.StartsAt, input.TotalSeats, input.Price)
	e.ImageURL = strings.TrimSpace(input.ImageURL)
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}
	if err := s.eventRepo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("イベント作成に失敗しました: %w", err)
	}
	s.log.Info("イベントを作成しました", zap.String("event_id", e.ID), zap.Int("total_seats", e.TotalSeats))
	return e, nil
}

func (s *EventService) GetEvent(ctx context.Context, id string) (*event.Event, error) {
	return s.eventRepo.GetByID(ctx, id)
}

type ListEventsInput struct {
	Category        event.Category
	IncludeInactive bool
	Page            int
	Limit           int
}

// EventPage はイベント一覧のページ
type EventPage struct {
	Events      []*event.Event
	Total       int
	TotalPages  int
	CurrentPage int
}

// ListEvents は公開中のイベントを開催日時順に返す
func (s *EventService) ListEvents(ctx context.Context, input ListEventsInput) (*EventPage, error) {
	if input.Category != "" && !input.Category.IsValid() {
		return nil, event.ErrInvalidCategory
	}
	page, limit := normalizePageNumber(input.Page, input.Limit)

	events, total, err := s.eventRepo.List(ctx, event.ListFilter{
		Category:        input.Category,
		IncludeInactive: input.IncludeInactive,
		Limit:           limit,
		Offset:          (page - 1) * limit,
	})
	if err != nil {
		return nil, err
	}
	return &EventPage{Events: events, Total: total, TotalPages: totalPages(total, limit), CurrentPage: page}, nil
}

// UpdateEventInput は記述的属性の部分更新（nil の項目は変更しない）
type UpdateEventInput struct {
	ID          string
	Title       *string
	Description *string
	Location    *string
	Organizer   *string
	ImageURL    *string
	Category    *event.Category
	StartsAt    *time.Time
	Price       *int64
	IsActive    *bool
}

// UpdateEvent は記述的属性を更新する。座席数の変更は ChangeCapacity で行う
func (s *EventService) UpdateEvent(ctx context.Context, input UpdateEventInput) (*event.Event, error) {
	e, err := s.eventRepo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if input.Title != nil {
		e.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		e.Description = *input.Description
	}
	if input.Location != nil {
		e.Location = strings.TrimSpace(*input.Location)
	}
	if input.Organizer != nil {
		e.Organizer = strings.TrimSpace(*input.Organizer)
	}
	if input.ImageURL != nil {
		e.ImageURL = strings.TrimSpace(*input.ImageURL)
	}
	if input.Category != nil {
		e.Category = *input.Category
	}
	if input.StartsAt != nil {
		e.StartsAt = *input.StartsAt
	}
	if input.Price != nil {
		e.Price = *input.Price
	}
	if input.IsActive != nil {
		e.IsActive = *input.IsActive
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}
	if err := s.eventRepo.UpdateDetails(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// SetActive は公開・非公開を切り替える
// 非公開のイベントも既存予約のキャンセルと座席の戻しは受け付ける
func (s *EventService) SetActive(ctx context.Context, id string, active bool) (*event.Event, error) {
	return s.UpdateEvent(ctx, UpdateEventInput{ID: id, IsActive: &active})
}

// ChangeCapacity は総座席数を変更する
func (s *EventService) ChangeCapacity(ctx context.Context, id string, totalSeats int) (*event.Event, error) {
	e, err := s.inventory.ChangeCapacity(ctx, id, totalSeats)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	s.log.Info("座席数を変更しました",
		zap.String("event_id", id),
		zap.Int("total_seats", e.TotalSeats),
		zap.Int("available_seats", e.AvailableSeats),
	)
	return e, nil
}

func (s *EventService) DeleteEvent(ctx context.Context, id string) error {
	if err := s.eventRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *EventService) Categories(ctx context.Context) ([]event.Category, error) {
	return s.eventRepo.Categories(ctx)
}

func (s *EventService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.log.Warn("空席数キャッシュの無効化に失敗", zap.String("event_id", id), zap.Error(err))
	}
}
