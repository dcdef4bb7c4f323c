package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-event-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-booking/internal/domain/transaction"
)

const eventColumns = `id, title, description, location, organizer, image_url, category, starts_at, total_seats, available_seats, price, is_active, created_at, updated_at`

// eventRow はDBの行を表す構造体
type eventRow struct {
	ID             string    `db:"id"`
	Title          string    `db:"title"`
	Description    string    `db:"description"`
	Location       string    `db:"location"`
	Organizer      string    `db:"organizer"`
	ImageURL       string    `db:"image_url"`
	Category       string    `db:"category"`
	StartsAt       time.Time `db:"starts_at"`
	TotalSeats     int       `db:"total_seats"`
	AvailableSeats int       `db:"available_seats"`
	Price          int64     `db:"price"`
	IsActive       bool      `db:"is_active"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// toEntity はeventRowをEventエンティティに変換する
func (r *eventRow) toEntity() *event.Event {
	return &event.Event{
		ID:             r.ID,
		Title:          r.Title,
		Description:    r.Description,
		Location:       r.Location,
		Organizer:      r.Organizer,
		ImageURL:       r.ImageURL,
		Category:       event.Category(r.Category),
		StartsAt:       r.StartsAt,
		TotalSeats:     r.TotalSeats,
		AvailableSeats: r.AvailableSeats,
		Price:          r.Price,
		IsActive:       r.IsActive,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// EventRepository はイベントリポジトリと在庫のPostgreSQL実装
type EventRepository struct {
	db *sqlx.DB
}

var (
	_ event.Repository = (*EventRepository)(nil)
	_ event.Inventory  = (*EventRepository)(nil)
)

// NewEventRepository はEventRepositoryを作成する
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create は新しいイベントを作成する
func (r *EventRepository) Create(ctx context.Context, e *event.Event) error {
	query := `
		INSERT INTO events (title, description, location, organizer, image_url, category, starts_at, total_seats, available_seats, price, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		e.Title, e.Description, e.Location, e.Organizer, e.ImageURL, string(e.Category), e.StartsAt,
		e.TotalSeats, e.AvailableSeats, e.Price, e.IsActive, e.CreatedAt, e.UpdatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("イベント作成に失敗: %w", err)
	}
	return nil
}

// GetByID はIDからイベントを取得する
func (r *EventRepository) GetByID(ctx context.Context, id string) (*event.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	var row eventRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("イベント取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

// List はイベント一覧と総件数を取得する（開催日時の昇順）
func (r *EventRepository) List(ctx context.Context, filter event.ListFilter) ([]*event.Event, int, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if !filter.IncludeInactive {
		conditions = append(conditions, "is_active = TRUE")
	}
	if filter.Category != "" {
		args = append(args, string(filter.Category))
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM events`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("イベント件数取得に失敗: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM events%s ORDER BY starts_at ASC, id ASC LIMIT $%d OFFSET $%d`,
		eventColumns, where, len(args)-1, len(args))

	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("イベント一覧取得に失敗: %w", err)
	}

	events := make([]*event.Event, len(rows))
	for i := range rows {
		events[i] = rows[i].toEntity()
	}
	return events, total, nil
}

// UpdateDetails は記述的属性を更新する（座席数は変更しない）
func (r *EventRepository) UpdateDetails(ctx context.Context, e *event.Event) error {
	query := `
		UPDATE events
		SET title = $2, description = $3, location = $4, organizer = $5, image_url = $6,
		    category = $7, starts_at = $8, price = $9, is_active = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING total_seats, available_seats, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		e.ID, e.Title, e.Description, e.Location, e.Organizer, e.ImageURL,
		string(e.Category), e.StartsAt, e.Price, e.IsActive,
	).Scan(&e.TotalSeats, &e.AvailableSeats, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
			return event.ErrEventNotFound
		}
		return fmt.Errorf("イベント更新に失敗: %w", err)
	}
	return nil
}

// Delete はイベントを削除する
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		if isInvalidID(err) {
			return event.ErrEventNotFound
		}
		return fmt.Errorf("イベント削除に失敗: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の取得に失敗: %w", err)
	}
	if rows == 0 {
		return event.ErrEventNotFound
	}
	return nil
}

// Categories は公開中のイベントが使っているカテゴリを返す
func (r *EventRepository) Categories(ctx context.Context) ([]event.Category, error) {
	var values []string
	if err := r.db.SelectContext(ctx, &values, `SELECT DISTINCT category FROM events WHERE is_active = TRUE ORDER BY category`); err != nil {
		return nil, fmt.Errorf("カテゴリ取得に失敗: %w", err)
	}
	categories := make([]event.Category, len(values))
	for i, v := range values {
		categories[i] = event.Category(v)
	}
	return categories, nil
}

// TryReserve は条件付きUPDATE一文で比較と減算を行う
// 該当行がなければイベント不在か空席不足のいずれかで、呼び出し側では区別しない
func (r *EventRepository) TryReserve(ctx context.Context, tx transaction.Tx, id string, quantity int) (*event.Event, error) {
	if quantity < 1 {
		return nil, event.ErrInvalidQuantity
	}
	sqlTx, err := requireTx(tx)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE events SET available_seats = available_seats - $2, updated_at = NOW()
		WHERE id = $1 AND available_seats >= $2
		RETURNING ` + eventColumns

	var row eventRow
	if err := sqlTx.GetContext(ctx, &row, query, id, quantity); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
			return nil, event.ErrInsufficientInventory
		}
		return nil, fmt.Errorf("座席確保に失敗: %w", err)
	}
	return row.toEntity(), nil
}

// Release は総座席数を上限として空席数を戻す
func (r *EventRepository) Release(ctx context.Context, tx transaction.Tx, id string, quantity int) (*event.Event, error) {
	if quantity < 1 {
		return nil, event.ErrInvalidQuantity
	}
	sqlTx, err := requireTx(tx)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE events SET available_seats = LEAST(total_seats, available_seats + $2), updated_at = NOW()
		WHERE id = $1
		RETURNING ` + eventColumns

	var row eventRow
	if err := sqlTx.GetContext(ctx, &row, query, id, quantity); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("座席の戻しに失敗: %w", err)
	}
	return row.toEntity(), nil
}

// ChangeCapacity は総座席数と空席数を一文で更新する
// 新しい総座席数が予約済み座席数を下回る場合は更新しない
func (r *EventRepository) ChangeCapacity(ctx context.Context, id string, totalSeats int) (*event.Event, error) {
	if totalSeats < 1 {
		return nil, event.ErrInvalidTotalSeats
	}

	query := `
		UPDATE events SET total_seats = $2, available_seats = available_seats + ($2 - total_seats), updated_at = NOW()
		WHERE id = $1 AND $2 >= total_seats - available_seats
		RETURNING ` + eventColumns

	var row eventRow
	err := r.db.GetContext(ctx, &row, query, id, totalSeats)
	if err == nil {
		return row.toEntity(), nil
	}
	if isInvalidID(err) {
		return nil, event.ErrEventNotFound
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("座席数の変更に失敗: %w", err)
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, id); err != nil {
		return nil, fmt.Errorf("イベント存在確認に失敗: %w", err)
	}
	if !exists {
		return nil, event.ErrEventNotFound
	}
	return nil, event.ErrCapacityBelowBooked
}
