package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jilaboon/rafit-sub000/internal/apperror"
	"github.com/jilaboon/rafit-sub000/internal/db"
	"github.com/jilaboon/rafit-sub000/internal/waitlist"

	"github.com/Masterminds/squirrel"
)

var (
	ErrNotFound = errors.New("booking not found")
	// ErrStaleState means the row no longer had the status the caller locked it with.
	ErrStaleState = errors.New("booking status changed concurrently")
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var bookingColumns = []string{
	"id", "class_instance_id", "customer_id", "membership_id", "status", "waitlist_position", "source",
	"booked_at", "checked_in_at", "cancelled_at", "cancel_reason", "cancelled_by", "no_show_at",
	"charge_unit", "charge_amount", "balance_restored_at",
}

// row mirrors the bookings table, nullable columns included.
type row struct {
	ID                int            `db:"id"`
	ClassInstanceID   int            `db:"class_instance_id"`
	CustomerID        int            `db:"customer_id"`
	MembershipID      int            `db:"membership_id"`
	Status            string         `db:"status"`
	WaitlistPosition  sql.NullInt64  `db:"waitlist_position"`
	Source            string         `db:"source"`
	BookedAt          time.Time      `db:"booked_at"`
	CheckedInAt       sql.NullTime   `db:"checked_in_at"`
	CancelledAt       sql.NullTime   `db:"cancelled_at"`
	CancelReason      sql.NullString `db:"cancel_reason"`
	CancelledBy       sql.NullString `db:"cancelled_by"`
	NoShowAt          sql.NullTime   `db:"no_show_at"`
	ChargeUnit        sql.NullString `db:"charge_unit"`
	ChargeAmount      int            `db:"charge_amount"`
	BalanceRestoredAt sql.NullTime   `db:"balance_restored_at"`
}

func (r row) toBooking() (*Booking, error) {
	b := &Booking{
		ID:              r.ID,
		ClassInstanceID: r.ClassInstanceID,
		CustomerID:      r.CustomerID,
		MembershipID:    r.MembershipID,
		Source:          r.Source,
		BookedAt:        r.BookedAt,
		ChargeUnit:      r.ChargeUnit.String,
		ChargeAmount:    r.ChargeAmount,
	}
	if r.BalanceRestoredAt.Valid {
		at := r.BalanceRestoredAt.Time
		b.BalanceRestoredAt = &at
	}

	switch Status(r.Status) {
	case StatusConfirmed:
		b.State = Confirmed{}
	case StatusWaitlisted:
		if !r.WaitlistPosition.Valid {
			return nil, fmt.Errorf("booking %d is waitlisted without a position", r.ID)
		}
		b.State = Waitlisted{Position: int(r.WaitlistPosition.Int64)}
	case StatusCancelled:
		b.State = Cancelled{At: r.CancelledAt.Time, Reason: r.CancelReason.String, By: Actor(r.CancelledBy.String)}
	case StatusNoShow:
		b.State = NoShow{At: r.NoShowAt.Time}
	case StatusCompleted:
		b.State = Completed{CheckedInAt: r.CheckedInAt.Time}
	default:
		return nil, fmt.Errorf("booking %d has unknown status %q", r.ID, r.Status)
	}
	return b, nil
}

// stateColumns is the full set of status-dependent columns for s. Columns that
// s does not carry are set to NULL.
func stateColumns(s State) map[string]interface{} {
	cols := map[string]interface{}{
		"status":            string(s.Status()),
		"waitlist_position": nil,
		"checked_in_at":     nil,
		"cancelled_at":      nil,
		"cancel_reason":     nil,
		"cancelled_by":      nil,
		"no_show_at":        nil,
	}
	switch v := s.(type) {
	case Waitlisted:
		cols["waitlist_position"] = v.Position
	case Cancelled:
		cols["cancelled_at"] = v.At
		cols["cancel_reason"] = v.Reason
		cols["cancelled_by"] = string(v.By)
	case NoShow:
		cols["no_show_at"] = v.At
	case Completed:
		cols["checked_in_at"] = v.CheckedInAt
	}
	return cols
}

type repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) Repository {
	return &repository{db: q}
}

func (r *repository) Create(ctx context.Context, b *Booking) error {
	cols := stateColumns(b.State)
	query, args, err := psql.Insert("bookings").
		Columns("class_instance_id", "customer_id", "membership_id", "source", "status", "waitlist_position").
		Values(b.ClassInstanceID, b.CustomerID, b.MembershipID, b.Source, cols["status"], cols["waitlist_position"]).
		Suffix("RETURNING id, booked_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	var created struct {
		ID       int       `db:"id"`
		BookedAt time.Time `db:"booked_at"`
	}
	if err := db.Executor(ctx, r.db).GetContext(ctx, &created, query, args...); err != nil {
		if errors.Is(db.Classify(err), db.ErrUniqueViolation) {
			return apperror.ErrAlreadyBooked.Wrap(err)
		}
		return err
	}

	b.ID = created.ID
	b.BookedAt = created.BookedAt
	return nil
}

func (r *repository) GetByID(ctx context.Context, id int) (*Booking, error) {
	return r.getOne(ctx, psql.Select(bookingColumns...).From("bookings").Where(squirrel.Eq{"id": id}))
}

func (r *repository) GetForUpdate(ctx context.Context, id int) (*Booking, error) {
	return r.getOne(ctx, psql.Select(bookingColumns...).From("bookings").Where(squirrel.Eq{"id": id}).Suffix("FOR UPDATE"))
}

func (r *repository) getOne(ctx context.Context, sb squirrel.SelectBuilder) (*Booking, error) {
	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var rw row
	err = db.Executor(ctx, r.db).GetContext(ctx, &rw, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rw.toBooking()
}

func (r *repository) HasActiveBooking(ctx context.Context, customerID, classID int) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM bookings
			WHERE customer_id = $1 AND class_instance_id = $2 AND status IN ('CONFIRMED', 'WAITLISTED')
		)
	`
	return db.Exists(ctx, db.Executor(ctx, r.db), query, customerID, classID)
}

// UpdateState writes to and every column it implies, but only while the row
// still has status from.
func (r *repository) UpdateState(ctx context.Context, id int, from Status, to State) error {
	query, args, err := psql.Update("bookings").
		SetMap(stateColumns(to)).
		Where(squirrel.Eq{"id": id, "status": string(from)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := db.Executor(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}

// ListActiveByClass locks and returns every CONFIRMED or WAITLISTED booking of a class.
func (r *repository) ListActiveByClass(ctx context.Context, classID int) ([]Booking, error) {
	return r.selectMany(ctx, psql.Select(bookingColumns...).
		From("bookings").
		Where(squirrel.Eq{"class_instance_id": classID, "status": []string{string(StatusConfirmed), string(StatusWaitlisted)}}).
		OrderBy("id ASC").
		Suffix("FOR UPDATE"))
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Booking, error) {
	sb := psql.Select(bookingColumns...).From("bookings")

	if filter.CustomerID != 0 {
		sb = sb.Where(squirrel.Eq{"customer_id": filter.CustomerID})
	}
	if filter.ClassInstanceID != 0 {
		sb = sb.Where(squirrel.Eq{"class_instance_id": filter.ClassInstanceID})
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		sb = sb.Where(squirrel.Eq{"status": statuses})
	}
	if filter.TenantID != 0 {
		sb = sb.Where("class_instance_id IN (SELECT id FROM class_instances WHERE tenant_id = ?)", filter.TenantID)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	sb = sb.OrderBy("booked_at DESC", "id DESC").Limit(uint64(limit))
	if filter.Offset > 0 {
		sb = sb.Offset(uint64(filter.Offset))
	}

	return r.selectMany(ctx, sb)
}

func (r *repository) selectMany(ctx context.Context, sb squirrel.SelectBuilder) ([]Booking, error) {
	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var rows []row
	if err := db.Executor(ctx, r.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	bookings := make([]Booking, 0, len(rows))
	for _, rw := range rows {
		b, err := rw.toBooking()
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, nil
}

func (r *repository) CountConfirmed(ctx context.Context, classID int) (int, error) {
	return r.count(ctx, classID, StatusConfirmed)
}

func (r *repository) CountWaitlisted(ctx context.Context, classID int) (int, error) {
	return r.count(ctx, classID, StatusWaitlisted)
}

func (r *repository) count(ctx context.Context, classID int, status Status) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM bookings
		WHERE class_instance_id = $1 AND status = $2
	`

	var count int
	if err := db.Executor(ctx, r.db).GetContext(ctx, &count, query, classID, string(status)); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repository) MaxWaitlistPosition(ctx context.Context, classID int) (int, error) {
	query := `
		SELECT COALESCE(MAX(waitlist_position), 0)
		FROM bookings
		WHERE class_instance_id = $1 AND status = 'WAITLISTED'
	`

	var max int
	if err := db.Executor(ctx, r.db).GetContext(ctx, &max, query, classID); err != nil {
		return 0, err
	}
	return max, nil
}

func (r *repository) ListWaitlisted(ctx context.Context, classID int) ([]waitlist.Entry, error) {
	query := `
		SELECT id, customer_id, membership_id, waitlist_position
		FROM bookings
		WHERE class_instance_id = $1 AND status = 'WAITLISTED'
		ORDER BY waitlist_position ASC
	`

	entries := []waitlist.Entry{}
	if err := db.Executor(ctx, r.db).SelectContext(ctx, &entries, query, classID); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ShiftWaitlistAfter(ctx context.Context, classID, position int) error {
	query := `
		UPDATE bookings
		SET waitlist_position = waitlist_position - 1
		WHERE class_instance_id = $1 AND status = 'WAITLISTED' AND waitlist_position > $2
	`

	_, err := db.Executor(ctx, r.db).ExecContext(ctx, query, classID, position)
	return err
}
