package classinstance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jilaboon/rafit-sub000/internal/db"
)

var ErrNotFound = errors.New("class instance not found")

const classColumns = `id, tenant_id, title, starts_at, ends_at, capacity, waitlist_limit, credit_cost,
		is_cancelled, cancelled_at, cancel_reason, created_at`

type repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) Repository {
	return &repository{db: q}
}

func (r *repository) Create(ctx context.Context, req CreateClassRequest) (*ClassInstance, error) {
	creditCost := req.CreditCost
	if creditCost == 0 {
		creditCost = 1
	}

	query := `
		INSERT INTO class_instances (tenant_id, title, starts_at, ends_at, capacity, waitlist_limit, credit_cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + classColumns

	var c ClassInstance
	err := db.Executor(ctx, r.db).GetContext(ctx, &c, query,
		req.TenantID, req.Title, req.StartsAt, req.EndsAt, req.Capacity, req.WaitlistLimit, creditCost)
	if err != nil {
		return nil, err
	}

	return &c, nil
}

func (r *repository) GetByID(ctx context.Context, id int) (*ClassInstance, error) {
	return r.get(ctx, `SELECT `+classColumns+` FROM class_instances WHERE id = $1`, id)
}

// GetForUpdate locks the class row until the surrounding transaction ends.
// Every seat or waitlist mutation for the class takes this lock first.
func (r *repository) GetForUpdate(ctx context.Context, id int) (*ClassInstance, error) {
	return r.get(ctx, `SELECT `+classColumns+` FROM class_instances WHERE id = $1 FOR UPDATE`, id)
}

func (r *repository) get(ctx context.Context, query string, id int) (*ClassInstance, error) {
	var c ClassInstance
	err := db.Executor(ctx, r.db).GetContext(ctx, &c, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) MarkCancelled(ctx context.Context, id int, at time.Time, reason string) error {
	query := `
		UPDATE class_instances
		SET is_cancelled = TRUE, cancelled_at = $2, cancel_reason = $3
		WHERE id = $1
	`

	result, err := db.Executor(ctx, r.db).ExecContext(ctx, query, id, at, reason)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) GetWithAvailability(ctx context.Context, id int) (*WithAvailability, error) {
	query := `
		SELECT ` + classColumns + `,
			(SELECT COUNT(*) FROM bookings b WHERE b.class_instance_id = c.id AND b.status = 'CONFIRMED')  AS confirmed_count,
			(SELECT COUNT(*) FROM bookings b WHERE b.class_instance_id = c.id AND b.status = 'WAITLISTED') AS waitlisted_count
		FROM class_instances c
		WHERE c.id = $1
	`

	var c WithAvailability
	err := db.Executor(ctx, r.db).GetContext(ctx, &c, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	c.FreeSeats = c.Capacity - c.ConfirmedCount
	if c.FreeSeats < 0 || c.IsCancelled {
		c.FreeSeats = 0
	}
	c.WaitlistOpen = !c.IsCancelled && c.WaitlistedCount < c.WaitlistLimit
	return &c, nil
}

func (r *repository) ListUpcoming(ctx context.Context, tenantID int, from time.Time) ([]ClassInstance, error) {
	query := `
		SELECT ` + classColumns + `
		FROM class_instances
		WHERE tenant_id = $1 AND starts_at >= $2 AND is_cancelled = FALSE
		ORDER BY starts_at ASC
	`

	classes := []ClassInstance{}
	if err := db.Executor(ctx, r.db).SelectContext(ctx, &classes, query, tenantID, from); err != nil {
		return nil, err
	}
	return classes, nil
}
