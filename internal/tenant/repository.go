package tenant

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jilaboon/rafit-sub000/internal/clock"
	"github.com/jilaboon/rafit-sub000/internal/db"
)

var ErrNotFound = errors.New("tenant policy not found")

const policyColumns = `tenant_id, cancellation_policy_hours, checkin_window_minutes, no_show_boundary, no_show_grace_minutes, updated_at`

type Repository interface {
	Get(ctx context.Context, tenantID int) (*Policy, error)
	Upsert(ctx context.Context, tenantID int, req UpdatePolicyRequest) (*Policy, error)
}

type repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) Repository {
	return &repository{db: q}
}

func (r *repository) Get(ctx context.Context, tenantID int) (*Policy, error) {
	var p Policy
	err := db.Executor(ctx, r.db).GetContext(ctx, &p,
		`SELECT `+policyColumns+` FROM tenant_policies WHERE tenant_id = $1`, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) Upsert(ctx context.Context, tenantID int, req UpdatePolicyRequest) (*Policy, error) {
	boundary := req.NoShowBoundary
	if boundary == "" {
		boundary = string(clock.NoShowFromStart)
	}

	query := `
		INSERT INTO tenant_policies (tenant_id, cancellation_policy_hours, checkin_window_minutes, no_show_boundary, no_show_grace_minutes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id) DO UPDATE SET
			cancellation_policy_hours = EXCLUDED.cancellation_policy_hours,
			checkin_window_minutes    = EXCLUDED.checkin_window_minutes,
			no_show_boundary          = EXCLUDED.no_show_boundary,
			no_show_grace_minutes     = EXCLUDED.no_show_grace_minutes,
			updated_at                = NOW()
		RETURNING ` + policyColumns

	var p Policy
	err := db.Executor(ctx, r.db).GetContext(ctx, &p, query,
		tenantID, req.CancellationPolicyHours, req.CheckinWindowMinutes, boundary, req.NoShowGraceMinutes)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// PolicyLookup resolves the clock policy of a tenant, falling back to the
// process-wide defaults for tenants without a row.
type PolicyLookup struct {
	repo     Repository
	defaults clock.Policy
}

func NewPolicyLookup(repo Repository, defaults clock.Policy) *PolicyLookup {
	return &PolicyLookup{repo: repo, defaults: defaults}
}

func (l *PolicyLookup) PolicyFor(ctx context.Context, tenantID int) (clock.Policy, error) {
	p, err := l.repo.Get(ctx, tenantID)
	if errors.Is(err, ErrNotFound) {
		return l.defaults, nil
	}
	if err != nil {
		return clock.Policy{}, err
	}
	return p.Clock(), nil
}
