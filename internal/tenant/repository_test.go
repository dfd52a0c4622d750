package tenant

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jilaboon/rafit-sub000/internal/clock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var policyCols = []string{"tenant_id", "cancellation_policy_hours", "checkin_window_minutes", "no_show_boundary", "no_show_grace_minutes", "updated_at"}

func setupPolicyMock(t *testing.T) (Repository, sqlmock.Sqlmock, func()) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(mockDB, "sqlmock")
	closer := func() { sqlxDB.Close() }
	return NewRepository(sqlxDB), mock, closer
}

func TestGetPolicy(t *testing.T) {
	repo, mock, close := setupPolicyMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM tenant_policies WHERE tenant_id = $1")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(policyCols).AddRow(1, 4, 15, "class_end", 10, time.Now()))

	p, err := repo.Get(context.Background(), 1)
	require.NoError(t, err)

	c := p.Clock()
	assert.Equal(t, 4*time.Hour, c.CancellationWindow)
	assert.Equal(t, 15*time.Minute, c.CheckinOpensBefore)
	assert.Equal(t, clock.NoShowFromEnd, c.NoShowBoundary)
	assert.Equal(t, 10*time.Minute, c.NoShowGrace)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertDefaultsBoundary(t *testing.T) {
	repo, mock, close := setupPolicyMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (tenant_id) DO UPDATE")).
		WithArgs(2, 6, 20, "class_start", 0).
		WillReturnRows(sqlmock.NewRows(policyCols).AddRow(2, 6, 20, "class_start", 0, time.Now()))

	p, err := repo.Upsert(context.Background(), 2, UpdatePolicyRequest{CancellationPolicyHours: 6, CheckinWindowMinutes: 20})
	require.NoError(t, err)
	assert.Equal(t, 6, p.CancellationPolicyHours)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPolicyLookupFallsBackToDefaults(t *testing.T) {
	repo, mock, close := setupPolicyMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM tenant_policies")).
		WithArgs(3).
		WillReturnError(sql.ErrNoRows)

	defaults := clock.DefaultPolicy()
	got, err := NewPolicyLookup(repo, defaults).PolicyFor(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, defaults, got)
}

func TestPolicyLookupPropagatesErrors(t *testing.T) {
	repo, mock, close := setupPolicyMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM tenant_policies")).
		WithArgs(3).
		WillReturnError(errors.New("connection refused"))

	_, err := NewPolicyLookup(repo, clock.DefaultPolicy()).PolicyFor(context.Background(), 3)
	assert.Error(t, err)
}

func TestPolicyClockUnknownBoundary(t *testing.T) {
	p := Policy{NoShowBoundary: "midnight"}
	assert.Equal(t, clock.NoShowFromStart, p.Clock().NoShowBoundary)
}
