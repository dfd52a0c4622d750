package membership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jilaboon/rafit-sub000/internal/db"
)

var (
	ErrNotFound      = errors.New("membership not found")
	ErrUnmeteredUnit = errors.New("membership does not meter this unit")
)

const membershipColumns = `id, tenant_id, customer_id, status, sessions_remaining, credits_remaining, created_at, updated_at`

type repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) Repository {
	return &repository{db: q}
}

func (r *repository) GetByID(ctx context.Context, id int) (*Membership, error) {
	return r.get(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE id = $1`, id)
}

// GetForUpdate locks the membership row so balance checks and writes cannot interleave.
func (r *repository) GetForUpdate(ctx context.Context, id int) (*Membership, error) {
	return r.get(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE id = $1 FOR UPDATE`, id)
}

// GetActiveForCustomer picks the plan a new booking at the tenant's studio is
// charged to: unlimited plans first, then metered plans with balance left
// (sessions, then credits), oldest first.
func (r *repository) GetActiveForCustomer(ctx context.Context, tenantID, customerID int) (*Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM memberships
		WHERE tenant_id = $1
		  AND customer_id = $2
		  AND status = 'ACTIVE'
		ORDER BY
		  (sessions_remaining IS NULL AND credits_remaining IS NULL) DESC,
		  (COALESCE(sessions_remaining, credits_remaining, 0) > 0) DESC,
		  sessions_remaining IS NULL,
		  created_at ASC
		LIMIT 1
	`
	return r.get(ctx, query, tenantID, customerID)
}

func (r *repository) get(ctx context.Context, query string, args ...interface{}) (*Membership, error) {
	var m Membership
	err := db.Executor(ctx, r.db).GetContext(ctx, &m, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// AdjustBalance adds delta to the metered unit and returns the new balance.
// The CHECK constraint on the table keeps balances non-negative.
func (r *repository) AdjustBalance(ctx context.Context, id int, unit Unit, delta int) (int, error) {
	var column string
	switch unit {
	case UnitSessions:
		column = "sessions_remaining"
	case UnitCredits:
		column = "credits_remaining"
	default:
		return 0, fmt.Errorf("adjust balance: unknown unit %q", unit)
	}

	query := fmt.Sprintf(`
		UPDATE memberships
		SET %[1]s = %[1]s + $2, updated_at = NOW()
		WHERE id = $1 AND %[1]s IS NOT NULL
		RETURNING %[1]s
	`, column)

	var balance int
	err := db.Executor(ctx, r.db).GetContext(ctx, &balance, query, id, delta)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUnmeteredUnit
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}
