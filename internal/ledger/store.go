package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jilaboon/rafit-sub000/internal/db"
	"github.com/jilaboon/rafit-sub000/internal/membership"
)

var ErrBookingNotFound = errors.New("booking not found")

// Store persists charges on booking rows and the balance journal.
type Store interface {
	GetCharge(ctx context.Context, bookingID int) (*Charge, error)
	RecordCharge(ctx context.Context, bookingID int, unit membership.Unit, amount int) error
	MarkRestored(ctx context.Context, bookingID int, at time.Time) (bool, error)
	InsertEntry(ctx context.Context, e *Entry) error
	ListEntries(ctx context.Context, membershipID, limit, offset int) ([]Entry, error)
}

type store struct {
	db db.Querier
}

func NewStore(q db.Querier) Store {
	return &store{db: q}
}

func (s *store) GetCharge(ctx context.Context, bookingID int) (*Charge, error) {
	var c struct {
		ID           int            `db:"id"`
		MembershipID int            `db:"membership_id"`
		Unit         sql.NullString `db:"charge_unit"`
		Amount       int            `db:"charge_amount"`
		RestoredAt   sql.NullTime   `db:"balance_restored_at"`
	}
	err := db.Executor(ctx, s.db).GetContext(ctx, &c, `
		SELECT id, membership_id, charge_unit, charge_amount, balance_restored_at
		FROM bookings
		WHERE id = $1
		FOR UPDATE
	`, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}

	charge := &Charge{
		BookingID:    c.ID,
		MembershipID: c.MembershipID,
		Unit:         membership.Unit(c.Unit.String),
		Amount:       c.Amount,
	}
	if c.RestoredAt.Valid {
		at := c.RestoredAt.Time
		charge.RestoredAt = &at
	}
	return charge, nil
}

func (s *store) RecordCharge(ctx context.Context, bookingID int, unit membership.Unit, amount int) error {
	result, err := db.Executor(ctx, s.db).ExecContext(ctx, `
		UPDATE bookings
		SET charge_unit = $2, charge_amount = $3, balance_restored_at = NULL
		WHERE id = $1
	`, bookingID, string(unit), amount)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// MarkRestored stamps the booking once. It reports false when the booking was
// already restored, which makes a second restore a no-op.
func (s *store) MarkRestored(ctx context.Context, bookingID int, at time.Time) (bool, error) {
	result, err := db.Executor(ctx, s.db).ExecContext(ctx, `
		UPDATE bookings
		SET balance_restored_at = $2
		WHERE id = $1 AND balance_restored_at IS NULL
	`, bookingID, at)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (s *store) InsertEntry(ctx context.Context, e *Entry) error {
	return db.Executor(ctx, s.db).GetContext(ctx, e, `
		INSERT INTO balance_entries (membership_id, booking_id, unit, delta, balance_after, kind)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, membership_id, booking_id, unit, delta, balance_after, kind, created_at
	`, e.MembershipID, e.BookingID, string(e.Unit), e.Delta, e.BalanceAfter, string(e.Kind))
}

func (s *store) ListEntries(ctx context.Context, membershipID, limit, offset int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	entries := []Entry{}
	err := db.Executor(ctx, s.db).SelectContext(ctx, &entries, `
		SELECT id, membership_id, booking_id, unit, delta, balance_after, kind, created_at
		FROM balance_entries
		WHERE membership_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, membershipID, limit, offset)
	if err != nil {
		return nil, err
	}
	return entries, nil
}
