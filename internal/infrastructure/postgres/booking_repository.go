package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-event-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-booking/internal/domain/transaction"
)

const bookingColumns = `id, event_id, user_id, contact_name, contact_email, contact_mobile, quantity, total_amount, status, idempotency_key, qr_payload, created_at, updated_at, cancelled_at`

type bookingRow struct {
	ID             string         `db:"id"`
	EventID        string         `db:"event_id"`
	UserID         string         `db:"user_id"`
	ContactName    string         `db:"contact_name"`
	ContactEmail   string         `db:"contact_email"`
	ContactMobile  string         `db:"contact_mobile"`
	Quantity       int            `db:"quantity"`
	TotalAmount    int64          `db:"total_amount"`
	Status         string         `db:"status"`
	IdempotencyKey sql.NullString `db:"idempotency_key"`
	QRPayload      string         `db:"qr_payload"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
	CancelledAt    *time.Time     `db:"cancelled_at"`
}

func (r *bookingRow) toEntity() *booking.Booking {
	return &booking.Booking{
		ID:      r.ID,
		EventID: r.EventID,
		UserID:  r.UserID,
		Contact: booking.Contact{
			Name:   r.ContactName,
			Email:  r.ContactEmail,
			Mobile: r.ContactMobile,
		},
		Quantity:       r.Quantity,
		TotalAmount:    r.TotalAmount,
		Status:         booking.Status(r.Status),
		IdempotencyKey: r.IdempotencyKey.String,
		QRPayload:      r.QRPayload,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		CancelledAt:    r.CancelledAt,
	}
}

// BookingRepository は予約台帳のPostgreSQL実装
type BookingRepository struct {
	db *sqlx.DB
}

var _ booking.Repository = (*BookingRepository)(nil)

// NewBookingRepository はBookingRepositoryを作成する
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create は予約を保存する
// 冪等性キーの一意制約違反は ErrDuplicateIdempotencyKey として返す
func (r *BookingRepository) Create(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	sqlTx, err := requireTx(tx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	key := sql.NullString{String: b.IdempotencyKey, Valid: b.IdempotencyKey != ""}
	_, err = sqlTx.ExecContext(ctx, query,
		b.ID, b.EventID, b.UserID, b.Contact.Name, b.Contact.Email, b.Contact.Mobile,
		b.Quantity, b.TotalAmount, string(b.Status), key, b.QRPayload,
		b.CreatedAt, b.UpdatedAt, b.CancelledAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return booking.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("予約作成に失敗: %w", err)
	}
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	return r.getOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

func (r *BookingRepository) GetByIdempotencyKey(ctx context.Context, key string) (*booking.Booking, error) {
	return r.getOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE idempotency_key = $1`, key)
}

func (r *BookingRepository) getOne(ctx context.Context, query string, arg string) (*booking.Booking, error) {
	var row bookingRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

// ListByUser は申込者の予約を新しい順に取得する
func (r *BookingRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`

	var rows []bookingRow
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}
	return toBookings(rows), nil
}

// List は条件に一致する予約と総件数を取得する
func (r *BookingRepository) List(ctx context.Context, filter booking.ListFilter) ([]*booking.Booking, int, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.EventID != "" {
		args = append(args, filter.EventID)
		conditions = append(conditions, fmt.Sprintf("event_id = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM bookings`+where, args...); err != nil {
		if isInvalidID(err) {
			return []*booking.Booking{}, 0, nil
		}
		return nil, 0, fmt.Errorf("予約件数取得に失敗: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM bookings%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		bookingColumns, where, len(args)-1, len(args))

	var rows []bookingRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}
	return toBookings(rows), total, nil
}

// MarkCancelled は confirmed の行だけを cancelled に更新する
// 同時に二つのキャンセルが来ても更新できるのは一方のみ
func (r *BookingRepository) MarkCancelled(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	sqlTx, err := requireTx(tx)
	if err != nil {
		return err
	}

	cancelledAt := time.Now()
	if b.CancelledAt != nil {
		cancelledAt = *b.CancelledAt
	}

	query := `UPDATE bookings SET status = 'cancelled', cancelled_at = $2, updated_at = $2 WHERE id = $1 AND status = 'confirmed'`
	result, err := sqlTx.ExecContext(ctx, query, b.ID, cancelledAt)
	if err != nil {
		return fmt.Errorf("予約キャンセルに失敗: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗: %w", err)
	}
	if rows == 0 {
		return booking.ErrAlreadyCancelled
	}
	return nil
}

func toBookings(rows []bookingRow) []*booking.Booking {
	bookings := make([]*booking.Booking, len(rows))
	for i := range rows {
		bookings[i] = rows[i].toEntity()
	}
	return bookings
}
