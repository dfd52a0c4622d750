package tenant

import (
	"time"

	"github.com/jilaboon/rafit-sub000/internal/clock"
)

// Policy is a tenant's stored row. Durations are whole hours and minutes.
type Policy struct {
	TenantID                int       `db:"tenant_id" json:"tenant_id"`
	CancellationPolicyHours int       `db:"cancellation_policy_hours" json:"cancellation_policy_hours"`
	CheckinWindowMinutes    int       `db:"checkin_window_minutes" json:"checkin_window_minutes"`
	NoShowBoundary          string    `db:"no_show_boundary" json:"no_show_boundary"`
	NoShowGraceMinutes      int       `db:"no_show_grace_minutes" json:"no_show_grace_minutes"`
	UpdatedAt               time.Time `db:"updated_at" json:"updated_at"`
}

func (p Policy) Clock() clock.Policy {
	boundary, err := clock.ParseNoShowBoundary(p.NoShowBoundary)
	if err != nil {
		boundary = clock.NoShowFromStart
	}
	return clock.Policy{
		CancellationWindow: time.Duration(p.CancellationPolicyHours) * time.Hour,
		CheckinOpensBefore: time.Duration(p.CheckinWindowMinutes) * time.Minute,
		NoShowBoundary:     boundary,
		NoShowGrace:        time.Duration(p.NoShowGraceMinutes) * time.Minute,
	}
}

type UpdatePolicyRequest struct {
	CancellationPolicyHours int    `json:"cancellation_policy_hours" binding:"min=0,max=720"`
	CheckinWindowMinutes    int    `json:"checkin_window_minutes" binding:"min=0,max=1440"`
	NoShowBoundary          string `json:"no_show_boundary" binding:"omitempty,oneof=class_start class_end"`
	NoShowGraceMinutes      int    `json:"no_show_grace_minutes" binding:"min=0,max=1440"`
}
