package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/essenza/room-booking/internal/model"
)

// BookingRepo provides data access to the bookings table. Each row is one
// held (room, date, period) slot; there is no separate reservation table —
// a reservation is the set of rows sharing a stripe_session_id. Rows are
// never deleted: status transitions preserve the audit history, so
// compensation and cancellation both go through UpdateStatus.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying handle for callers that need it.
func (r *BookingRepo) DB() *sql.DB { return r.db }

// mysqlDuplicateEntry is the server error number MySQL reports when a
// uniqueness constraint is violated.
const mysqlDuplicateEntry = 1062

func isDuplicateEntry(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// ListHeld returns every slot for the room whose status is pending or
// confirmed and whose date falls in the closed interval [from, to]. It
// never returns cancelled or completed rows; those do not block new
// bookings. Read-only, used by both the availability endpoint and the
// engine's pre-check path.
func (r *BookingRepo) ListHeld(ctx context.Context, roomID, from, to string) ([]model.AvailabilityEntry, error) {
	const q = `SELECT DATE_FORMAT(date, '%Y-%m-%d'), period, status
	           FROM bookings
	           WHERE room_id = ? AND date >= ? AND date <= ?
	             AND status IN ('pending', 'confirmed')
	           ORDER BY date, period`
	rows, err := r.db.QueryContext(ctx, q, roomID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]model.AvailabilityEntry, 0)
	for rows.Next() {
		var e model.AvailabilityEntry
		if err := rows.Scan(&e.Date, &e.Period, &e.Status); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// HasActiveSlot reports whether a non-cancelled booking already holds the
// exact (room, date, period) key. This is the fast-path conflict check; the
// uniqueness constraint at insertion time remains authoritative.
func (r *BookingRepo) HasActiveSlot(ctx context.Context, roomID, date string, period model.Period) (bool, error) {
	const q = `SELECT 1 FROM bookings
	           WHERE room_id = ? AND date = ? AND period = ?
	             AND status IN ('pending', 'confirmed')
	           LIMIT 1`
	var one int
	err := r.db.QueryRowContext(ctx, q, roomID, date, string(period)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// InsertPending inserts a single pending booking row. Two concurrent
// requests racing past the read-side check cannot both succeed here: the
// unique index over (room_id, date, period) scoped to non-cancelled rows
// rejects the loser, which is surfaced as ErrSlotTaken.
func (r *BookingRepo) InsertPending(ctx context.Context, b *model.Booking) error {
	const q = `INSERT INTO bookings (id, room_id, user_id, date, period, total_price, status, notes)
	           VALUES (?, ?, ?, ?, ?, ?, 'pending', ?)`
	_, err := r.db.ExecContext(ctx, q,
		b.ID, b.RoomID, b.UserID, b.Date, string(b.Period), b.TotalPrice, b.Notes,
	)
	if isDuplicateEntry(err) {
		return ErrSlotTaken
	}
	return err
}

// UpdateStatus sets a new status on every booking in ids. It backs both
// compensation (pending → cancelled after a failed batch or payment
// initiation) and explicit cancellation. Passing an empty slice has no
// effect and returns nil.
func (r *BookingRepo) UpdateStatus(ctx context.Context, ids []string, status model.Status) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE bookings SET status = ? WHERE id IN (` + placeholders(len(ids)) + `)`
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, string(status))
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// AttachPaymentSession stores the external checkout session id on every
// booking of a batch. The column stays NULL until this step; when the
// update fails the rows remain pending without a session reference and the
// reconciliation sweep picks them up later.
func (r *BookingRepo) AttachPaymentSession(ctx context.Context, ids []string, sessionID string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE bookings SET stripe_session_id = ? WHERE id IN (` + placeholders(len(ids)) + `)`
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, sessionID)
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// GetForUser loads a booking by id and verifies ownership. It returns
// ErrBookingNotFound when no such row exists and ErrForbidden when the
// booking belongs to a different user.
func (r *BookingRepo) GetForUser(ctx context.Context, bookingID, userID string) (*model.Booking, error) {
	const q = `SELECT id, room_id, user_id, DATE_FORMAT(date, '%Y-%m-%d'), period,
	                  total_price, status, notes, stripe_session_id, created_at, updated_at
	           FROM bookings WHERE id = ?`
	var b model.Booking
	var notes, sessionID sql.NullString
	err := r.db.QueryRowContext(ctx, q, bookingID).Scan(
		&b.ID, &b.RoomID, &b.UserID, &b.Date, &b.Period,
		&b.TotalPrice, &b.Status, &notes, &sessionID, &b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, ErrForbidden
	}
	if notes.Valid {
		n := notes.String
		b.Notes = &n
	}
	if sessionID.Valid {
		s := sessionID.String
		b.StripeSessionID = &s
	}
	return &b, nil
}

// UserBooking is one row of a caller's booking list, joined with the room
// fields the client renders next to it.
type UserBooking struct {
	ID          string       `json:"id"`
	RoomID      string       `json:"room_id"`
	Date        string       `json:"date"`
	Period      model.Period `json:"period"`
	Status      model.Status `json:"status"`
	TotalPrice  float64      `json:"total_price"`
	Notes       *string      `json:"notes,omitempty"`
	RoomTitle   string       `json:"room_title"`
	RoomAddress string       `json:"room_address"`
	RoomType    string       `json:"room_type"`
	CreatedAt   string       `json:"created_at"`
}

// ListByUser returns all bookings created by the given user together with
// room details, newest date first. When no bookings exist an empty slice
// is returned.
func (r *BookingRepo) ListByUser(ctx context.Context, userID string) ([]UserBooking, error) {
	const q = `SELECT b.id, b.room_id, DATE_FORMAT(b.date, '%Y-%m-%d'), b.period,
	                  b.status, b.total_price, b.notes,
	                  r.title, r.address, r.room_type,
	                  b.created_at
	           FROM bookings b
	           JOIN rooms r ON r.id = b.room_id
	           WHERE b.user_id = ?
	           ORDER BY b.date DESC, b.period`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]UserBooking, 0)
	for rows.Next() {
		var ub UserBooking
		var notes sql.NullString
		var createdAt time.Time
		if err := rows.Scan(
			&ub.ID, &ub.RoomID, &ub.Date, &ub.Period,
			&ub.Status, &ub.TotalPrice, &notes,
			&ub.RoomTitle, &ub.RoomAddress, &ub.RoomType,
			&createdAt,
		); err != nil {
			return nil, err
		}
		if notes.Valid {
			n := notes.String
			ub.Notes = &n
		}
		ub.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		items = append(items, ub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// ListStalePending returns the ids of bookings still pending that were
// created before the cutoff and never received a payment session
// reference. These are the rows the reconciliation sweep releases.
func (r *BookingRepo) ListStalePending(ctx context.Context, cutoff time.Time) ([]string, error) {
	const q = `SELECT id FROM bookings
	           WHERE status = 'pending' AND stripe_session_id IS NULL AND created_at < ?`
	rows, err := r.db.QueryContext(ctx, q, cutoff.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
