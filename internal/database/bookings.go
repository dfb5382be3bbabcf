package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"yoyaku/internal/models"
)

// ListFilter narrows and pages a booking listing. Time bounds are inclusive;
// Status, when set, must match exactly.
type ListFilter struct {
	From   *time.Time
	To     *time.Time
	Status string
	Limit  int
	Offset int
}

const bookingColumns = `id, name, start_at, end_at, minutes, status, fee, memo, created_at`

// CreateBooking inserts a new booking after verifying inside one write
// transaction that no active booking overlaps the requested interval.
// Returns ErrSlotTaken when the slot is occupied. The store-wide lock plus
// the immediate transaction make concurrent creations for the same slot
// resolve to exactly one winner.
func (db *DB) CreateBooking(ctx context.Context, b *models.Booking) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		`SELECT start_at, end_at FROM bookings WHERE status != ?`,
		models.StatusCancel,
	)
	if err != nil {
		return fmt.Errorf("scan active bookings: %w", err)
	}
	for rows.Next() {
		var start, end time.Time
		if err := rows.Scan(&start, &end); err != nil {
			rows.Close()
			return fmt.Errorf("scan interval: %w", err)
		}
		if models.Overlaps(start, end, b.StartAt, b.EndAt) {
			rows.Close()
			return ErrSlotTaken
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate intervals: %w", err)
	}
	rows.Close()

	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().In(db.loc)
	}
	result, err := tx.ExecContext(ctx, `
		INSERT INTO bookings (name, start_at, end_at, minutes, status, fee, memo, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Name, b.StartAt, b.EndAt, b.Minutes, b.Status, feeArg(b.Fee), b.Memo, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	b.ID = id
	return nil
}

// GetBooking returns a booking by id, or ErrNotFound.
func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %d: %w", id, err)
	}
	return b, nil
}

// UpdateBookingStatus sets the status and fee of a booking. A nil fee clears
// the stored value. Returns ErrNotFound when the id does not exist.
func (db *DB) UpdateBookingStatus(ctx context.Context, id int64, status string, fee *int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE bookings SET status = ?, fee = ? WHERE id = ?`,
		status, feeArg(fee), id,
	)
	if err != nil {
		return fmt.Errorf("update booking %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteBooking permanently removes a booking.
func (db *DB) DeleteBooking(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete booking %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListBookings returns bookings matching the filter ordered by start_at
// ascending.
func (db *DB) ListBookings(ctx context.Context, f ListFilter) ([]models.Booking, error) {
	var conds []string
	var args []any
	if f.From != nil {
		conds = append(conds, "start_at >= ?")
		args = append(args, *f.From)
	}
	if f.To != nil {
		conds = append(conds, "start_at <= ?")
		args = append(args, *f.To)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY start_at ASC`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	return db.queryBookings(ctx, query, args...)
}

// ActiveBookings returns all bookings whose status is not Cancel.
func (db *DB) ActiveBookings(ctx context.Context) ([]models.Booking, error) {
	return db.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE status != ? ORDER BY start_at ASC`,
		models.StatusCancel,
	)
}

// AllBookingsDesc returns every booking ordered by start_at descending.
// Feed for the export handlers.
func (db *DB) AllBookingsDesc(ctx context.Context) ([]models.Booking, error) {
	return db.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings ORDER BY start_at DESC`)
}

// MonthlyStats counts Done bookings whose start_at falls in [from, to) and
// sums their fees, missing fees counted as zero.
func (db *DB) MonthlyStats(ctx context.Context, from, to time.Time) (models.MonthlyStats, error) {
	var stats models.MonthlyStats
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(COALESCE(fee, 0)), 0)
		FROM bookings
		WHERE status = ? AND start_at >= ? AND start_at < ?`,
		models.StatusDone, from, to,
	).Scan(&stats.DoneCount, &stats.TotalFee)
	if err != nil {
		return models.MonthlyStats{}, fmt.Errorf("monthly stats: %w", err)
	}
	return stats, nil
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...any) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var fee sql.NullInt64
	var memo sql.NullString
	if err := row.Scan(
		&b.ID, &b.Name, &b.StartAt, &b.EndAt, &b.Minutes,
		&b.Status, &fee, &memo, &b.CreatedAt,
	); err != nil {
		return nil, err
	}
	if fee.Valid {
		v := fee.Int64
		b.Fee = &v
	}
	b.Memo = memo.String
	return &b, nil
}

func feeArg(fee *int64) any {
	if fee == nil {
		return nil
	}
	return *fee
}
