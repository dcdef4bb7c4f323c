package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-event-booking/internal/domain/booking"
)

var (
	_ booking.StatsReader   = (*BookingRepository)(nil)
	_ booking.BalanceReader = (*BookingRepository)(nil)
)

// snapshot は読み取り専用の REPEATABLE READ トランザクションを開始する
// 一つのスナップショットから読み、書き込みはブロックしない
func (r *BookingRepository) snapshot(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
}

// Stats は予約台帳を一つのスナップショットから集計する
func (r *BookingRepository) Stats(ctx context.Context, topN int) (*booking.Stats, error) {
	tx, err := r.snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("集計トランザクション開始に失敗: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var totals struct {
		Total     int   `db:"total"`
		Confirmed int   `db:"confirmed"`
		Cancelled int   `db:"cancelled"`
		Pending   int   `db:"pending"`
		Revenue   int64 `db:"revenue"`
	}
	totalsQuery := `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE status = 'confirmed') AS confirmed,
		       COUNT(*) FILTER (WHERE status = 'cancelled') AS cancelled,
		       COUNT(*) FILTER (WHERE status = 'pending') AS pending,
		       COALESCE(SUM(total_amount) FILTER (WHERE status = 'confirmed'), 0)::bigint AS revenue
		FROM bookings
	`
	if err := tx.GetContext(ctx, &totals, totalsQuery); err != nil {
		return nil, fmt.Errorf("予約件数の集計に失敗: %w", err)
	}

	if topN <= 0 {
		topN = booking.DefaultTopEvents
	}
	var byEvent []struct {
		EventID    string `db:"event_id"`
		EventTitle string `db:"event_title"`
		Count      int    `db:"count"`
		Seats      int    `db:"seats"`
		Revenue    int64  `db:"revenue"`
	}
	byEventQuery := `
		SELECT b.event_id, COALESCE(e.title, '') AS event_title, COUNT(*) AS count,
		       SUM(b.quantity)::bigint AS seats, SUM(b.total_amount)::bigint AS revenue
		FROM bookings b
		LEFT JOIN events e ON e.id = b.event_id
		WHERE b.status = 'confirmed'
		GROUP BY b.event_id, e.title
		ORDER BY count DESC, b.event_id ASC
		LIMIT $1
	`
	if err := tx.SelectContext(ctx, &byEvent, byEventQuery, topN); err != nil {
		return nil, fmt.Errorf("イベント別の集計に失敗: %w", err)
	}

	stats := &booking.Stats{
		TotalBookings:     totals.Total,
		ConfirmedBookings: totals.Confirmed,
		CancelledBookings: totals.Cancelled,
		PendingBookings:   totals.Pending,
		TotalRevenue:      totals.Revenue,
		ByEvent:           make([]booking.EventStats, len(byEvent)),
	}
	for i, row := range byEvent {
		stats.ByEvent[i] = booking.EventStats{
			EventID:    row.EventID,
			EventTitle: row.EventTitle,
			Count:      row.Count,
			Seats:      row.Seats,
			Revenue:    row.Revenue,
		}
	}
	return stats, nil
}

// SeatBalances は全イベントの空席数と確定済み座席数を同じスナップショットから読む
// 予約の作業単位は減算と台帳の挿入を一緒にコミットするので、移動中の座席は見えない
func (r *BookingRepository) SeatBalances(ctx context.Context) ([]booking.SeatBalance, error) {
	tx, err := r.snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("照合トランザクション開始に失敗: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var rows []struct {
		EventID   string `db:"event_id"`
		Total     int    `db:"total_seats"`
		Available int    `db:"available_seats"`
		Confirmed int    `db:"confirmed_seats"`
	}
	query := `
		SELECT e.id AS event_id, e.total_seats, e.available_seats,
		       COALESCE(SUM(b.quantity) FILTER (WHERE b.status = 'confirmed'), 0)::bigint AS confirmed_seats
		FROM events e
		LEFT JOIN bookings b ON b.event_id = e.id
		GROUP BY e.id, e.total_seats, e.available_seats
		ORDER BY e.id
	`
	if err := tx.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("座席残高の集計に失敗: %w", err)
	}

	balances := make([]booking.SeatBalance, len(rows))
	for i, row := range rows {
		balances[i] = booking.SeatBalance{
			EventID:        row.EventID,
			TotalSeats:     row.Total,
			AvailableSeats: row.Available,
			ConfirmedSeats: row.Confirmed,
		}
	}
	return balances, nil
}
