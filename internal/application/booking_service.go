package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-booking/internal/domain/transaction"
	"github.com/sanosuguru/go-event-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-event-booking/internal/pkg/metrics"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	publishTimeout  = 2 * time.Second
)

// BookingService は座席の確保・解放と予約台帳の更新を一つの作業単位で行う
// 在庫の同期は Inventory の条件付き更新だけに任せ、アプリ側ではロックを取らない
type BookingService struct {
	txm       transaction.Manager
	inventory event.Inventory
	events    event.Repository
	bookings  booking.Repository
	publisher booking.Publisher
	cache     AvailabilityCache
	metrics   *metrics.Metrics
	log       *zap.Logger
}

// BookingOption は BookingService の任意の依存を設定する
type BookingOption func(*BookingService)

func WithPublisher(p booking.Publisher) BookingOption {
	return func(s *BookingService) { s.publisher = p }
}

func WithAvailabilityCache(c AvailabilityCache) BookingOption {
	return func(s *BookingService) { s.cache = c }
}

func WithMetrics(m *metrics.Metrics) BookingOption {
	return func(s *BookingService) { s.metrics = m }
}

func NewBookingService(txm transaction.Manager, inventory event.Inventory, events event.Repository, bookings booking.Repository, opts ...BookingOption) *BookingService {
	s := &BookingService{
		txm:       txm,
		inventory: inventory,
		events:    events,
		bookings:  bookings,
		publisher: nopPublisher{},
		log:       logger.Named("booking"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewNop()
	}
	return s
}

type CreateBookingInput struct {
	EventID        string
	Actor          booking.Actor
	Quantity       int
	Contact        booking.Contact
	IdempotencyKey string
}

// CreateBooking は座席を確保して確定済みの予約を作成する
func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*booking.Booking, error) {
	if input.IdempotencyKey != "" {
		existing, err := s.bookings.GetByIdempotencyKey(ctx, input.IdempotencyKey)
		if err == nil {
			return s.replay(ctx, existing, input.Actor)
		}
		if !errors.Is(err, booking.ErrBookingNotFound) {
			return nil, fmt.Errorf("冪等性チェックに失敗: %w", err)
		}
	}
	if input.Quantity < 1 {
		return nil, event.ErrInvalidQuantity
	}
	if input.Actor.UserID == "" {
		return nil, booking.ErrUserIDRequired
	}
	if err := input.Contact.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.txm.Begin(ctx)
	if err != nil {
		s.countBooking("error")
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}

	reserved, err := s.inventory.TryReserve(ctx, tx, input.EventID, input.Quantity)
	if err != nil {
		_ = tx.Rollback()
		return nil, s.reserveFailure(ctx, input.EventID, err)
	}

	b, err := booking.NewConfirmed(reserved, input.Actor.UserID, input.Contact, input.Quantity, input.IdempotencyKey)
	if err != nil {
		return nil, s.abandon(tx, input, err)
	}
	if err := b.Validate(); err != nil {
		return nil, s.compensate(tx, b, err)
	}
	// 作業単位の中ではペイロードだけ作り、画像の描画はコミット後に行う
	if err := b.AttachProof(); err != nil {
		return nil, s.compensate(tx, b, err)
	}

	if err := s.bookings.Create(ctx, tx, b); err != nil {
		err = s.compensate(tx, b, err)
		if errors.Is(err, booking.ErrDuplicateIdempotencyKey) {
			// 同じキーで先に確定した予約を返す
			winner, getErr := s.bookings.GetByIdempotencyKey(ctx, input.IdempotencyKey)
			if getErr != nil {
				return nil, fmt.Errorf("重複予約の取得に失敗: %w", getErr)
			}
			return s.replay(ctx, winner, input.Actor)
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		s.countBooking("error")
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}

	s.countBooking("success")
	s.log.Info("予約を確定しました",
		zap.String("booking_id", b.ID),
		zap.String("event_id", b.EventID),
		zap.Int("quantity", b.Quantity),
		zap.Int("available_seats", reserved.AvailableSeats),
	)
	s.afterInventoryChange(ctx, booking.EventConfirmed, b)
	s.renderProof(b)
	b.Event = booking.SummaryOf(reserved)
	return b, nil
}

// replay は冪等性キーが一致した既存の予約を返す
func (s *BookingService) replay(ctx context.Context, existing *booking.Booking, actor booking.Actor) (*booking.Booking, error) {
	if !actor.CanManage(existing) {
		return nil, booking.ErrForbidden
	}
	s.countBooking("duplicate")
	s.renderProof(existing)
	s.attachEvents(ctx, existing)
	return existing, nil
}

// attachEvents は予約に表示用のイベント概要を添える
// 削除済みや取得できなかったイベントは概要なしのまま返す
func (s *BookingService) attachEvents(ctx context.Context, bookings ...*booking.Booking) {
	summaries := make(map[string]*booking.EventSummary)
	for _, b := range bookings {
		summary, ok := summaries[b.EventID]
		if !ok {
			e, err := s.events.GetByID(ctx, b.EventID)
			switch {
			case err == nil:
				summary = booking.SummaryOf(e)
			case !errors.Is(err, event.ErrEventNotFound):
				s.log.Debug("イベント概要を取得できません", zap.String("event_id", b.EventID), zap.Error(err))
			}
			summaries[b.EventID] = summary
		}
		b.Event = summary
	}
}

// renderProof は証明画像を描画する。失敗しても予約の結果は変えない
func (s *BookingService) renderProof(b *booking.Booking) {
	if err := b.RenderProof(); err != nil {
		s.log.Warn("予約証明の画像を描画できません", zap.String("booking_id", b.ID), zap.Error(err))
	}
}

// abandon は予約を組み立てられなかった作業単位を取り消す
func (s *BookingService) abandon(tx transaction.Tx, input CreateBookingInput, cause error) error {
	return s.compensate(tx, &booking.Booking{EventID: input.EventID, Quantity: input.Quantity}, cause)
}

// reserveFailure は確保失敗の理由をエラーメッセージ用に判別する
// 在庫の判定は TryReserve の結果だけで行い、ここでは存在確認のみ
func (s *BookingService) reserveFailure(ctx context.Context, eventID string, err error) error {
	if !errors.Is(err, event.ErrInsufficientInventory) {
		s.countBooking("error")
		return fmt.Errorf("座席確保に失敗: %w", err)
	}
	if _, getErr := s.events.GetByID(ctx, eventID); errors.Is(getErr, event.ErrEventNotFound) {
		s.countBooking("not_found")
		return event.ErrEventNotFound
	}
	s.countBooking("insufficient")
	return event.ErrInsufficientInventory
}

// compensate は作業単位を取り消して確保済みの座席を戻す
// 取り消しに失敗した場合は運用者による照合が必要なインシデントとして記録する
func (s *BookingService) compensate(tx transaction.Tx, b *booking.Booking, cause error) error {
	if rbErr := tx.Rollback(); rbErr != nil {
		s.metrics.ReconciliationIncidents.WithLabelValues("compensation_failed").Inc()
		s.countBooking("error")
		s.log.Error("reconciliation required",
			zap.String("event_id", b.EventID),
			zap.Int("quantity", b.Quantity),
			zap.String("booking_id", b.ID),
			zap.NamedError("cause", cause),
			zap.NamedError("rollback_error", rbErr),
		)
		return fmt.Errorf("%w: %v", booking.ErrCompensationRequired, cause)
	}

	if errors.Is(cause, booking.ErrDuplicateIdempotencyKey) {
		return cause
	}
	s.countBooking("error")
	s.log.Warn("予約の保存に失敗したため座席を戻しました",
		zap.String("event_id", b.EventID),
		zap.Int("quantity", b.Quantity),
		zap.Error(cause),
	)
	return fmt.Errorf("予約の保存に失敗: %w", cause)
}

type CancelBookingInput struct {
	BookingID string
	Actor     booking.Actor
}

// CancelBooking は confirmed の予約をキャンセルして座席を戻す
// 状態の書き換えを先に行い、更新できた場合だけ座席を戻す
func (s *BookingService) CancelBooking(ctx context.Context, input CancelBookingInput) (*booking.Booking, error) {
	b, err := s.bookings.GetByID(ctx, input.BookingID)
	if err != nil {
		return nil, err
	}
	if !input.Actor.CanManage(b) {
		s.countCancel("forbidden")
		return nil, booking.ErrForbidden
	}
	if err := b.Cancel(); err != nil {
		if errors.Is(err, booking.ErrAlreadyCancelled) {
			s.countCancel("already_cancelled")
		}
		return nil, err
	}

	tx, err := s.txm.Begin(ctx)
	if err != nil {
		s.countCancel("error")
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}

	if err := s.bookings.MarkCancelled(ctx, tx, b); err != nil {
		_ = tx.Rollback()
		if errors.Is(err, booking.ErrAlreadyCancelled) {
			s.countCancel("already_cancelled")
			return nil, err
		}
		s.countCancel("error")
		return nil, err
	}

	if _, err := s.inventory.Release(ctx, tx, b.EventID, b.Quantity); err != nil {
		if !errors.Is(err, event.ErrEventNotFound) {
			_ = tx.Rollback()
			s.countCancel("error")
			return nil, fmt.Errorf("座席の戻しに失敗: %w", err)
		}
		// イベントが削除済みなら戻し先がないのでキャンセルだけ確定する
		s.log.Warn("イベントが存在しないため座席の戻しを省略",
			zap.String("booking_id", b.ID),
			zap.String("event_id", b.EventID),
		)
	}

	if err := tx.Commit(); err != nil {
		s.countCancel("error")
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}

	s.countCancel("success")
	s.log.Info("予約をキャンセルしました",
		zap.String("booking_id", b.ID),
		zap.String("event_id", b.EventID),
		zap.Int("quantity", b.Quantity),
	)
	s.afterInventoryChange(ctx, booking.EventCancelled, b)
	return b, nil
}

// GetBooking は所有者または管理者に予約を返す
func (s *BookingService) GetBooking(ctx context.Context, id string, actor booking.Actor) (*booking.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(b) {
		return nil, booking.ErrForbidden
	}
	s.renderProof(b)
	s.attachEvents(ctx, b)
	return b, nil
}

// ListMyBookings は申込者本人の予約を新しい順に返す
func (s *BookingService) ListMyBookings(ctx context.Context, actor booking.Actor, limit, offset int) ([]*booking.Booking, error) {
	if actor.UserID == "" {
		return nil, booking.ErrForbidden
	}
	limit, offset = normalizePage(limit, offset)
	bookings, err := s.bookings.ListByUser(ctx, actor.UserID, limit, offset)
	if err != nil {
		return nil, err
	}
	s.attachEvents(ctx, bookings...)
	return bookings, nil
}

type ListBookingsInput struct {
	Actor   booking.Actor
	Status  string // "all" または空文字は全件
	EventID string
	Page    int
	Limit   int
}

// BookingPage は管理者向け一覧のページ
type BookingPage struct {
	Bookings    []*booking.Booking
	Total       int
	TotalPages  int
	CurrentPage int
}

// ListBookings は管理者向けに予約を絞り込んで返す
func (s *BookingService) ListBookings(ctx context.Context, input ListBookingsInput) (*BookingPage, error) {
	if !input.Actor.IsAdmin() {
		return nil, booking.ErrForbidden
	}

	filter := booking.ListFilter{EventID: input.EventID}
	if input.Status != "" && input.Status != "all" {
		status := booking.Status(input.Status)
		if !status.IsValid() {
			return nil, booking.ErrInvalidStatus
		}
		filter.Status = status
	}
	page, limit := normalizePageNumber(input.Page, input.Limit)
	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	bookings, total, err := s.bookings.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	s.attachEvents(ctx, bookings...)
	return &BookingPage{
		Bookings:    bookings,
		Total:       total,
		TotalPages:  totalPages(total, limit),
		CurrentPage: page,
	}, nil
}

// Availability は表示用の空席数を返す（キャッシュがあれば優先）
func (s *BookingService) Availability(ctx context.Context, eventID string) (int, error) {
	if s.cache != nil {
		if n, err := s.cache.Get(ctx, eventID); err == nil {
			return n, nil
		}
	}
	e, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, eventID, e.AvailableSeats); err != nil {
			s.log.Debug("空席数キャッシュの保存に失敗", zap.String("event_id", eventID), zap.Error(err))
		}
	}
	return e.AvailableSeats, nil
}

// afterInventoryChange はコミット後の副作用（キャッシュ無効化とイベント送信）
// どちらも失敗しても予約の結果は変えない
func (s *BookingService) afterInventoryChange(ctx context.Context, t booking.EventType, b *booking.Booking) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, b.EventID); err != nil {
			s.log.Warn("空席数キャッシュの無効化に失敗", zap.String("event_id", b.EventID), zap.Error(err))
		}
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, booking.NewDomainEvent(t, b)); err != nil {
		s.log.Warn("ドメインイベントの送信に失敗",
			zap.String("type", string(t)),
			zap.String("booking_id", b.ID),
			zap.Error(err),
		)
	}
}

func (s *BookingService) countBooking(result string) {
	s.metrics.BookingsTotal.WithLabelValues(result).Inc()
}

func (s *BookingService) countCancel(result string) {
	s.metrics.CancellationsTotal.WithLabelValues(result).Inc()
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func normalizePageNumber(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	limit, _ = normalizePage(limit, 0)
	return page, limit
}

func totalPages(total, limit int) int {
	if total == 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
