package membership

import "time"

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusPaused    Status = "PAUSED"
	StatusExpired   Status = "EXPIRED"
	StatusCancelled Status = "CANCELLED"
)

// Unit is the metered balance a booking draws from.
type Unit string

const (
	UnitSessions Unit = "sessions"
	UnitCredits  Unit = "credits"
)

// Membership is the slice of a customer's plan the booking engine reads and meters.
// A nil remaining field means the plan does not meter that unit.
type Membership struct {
	ID                int       `db:"id" json:"id"`
	TenantID          int       `db:"tenant_id" json:"tenant_id"`
	CustomerID        int       `db:"customer_id" json:"customer_id"`
	Status            Status    `db:"status" json:"status"`
	SessionsRemaining *int      `db:"sessions_remaining" json:"sessions_remaining"`
	CreditsRemaining  *int      `db:"credits_remaining" json:"credits_remaining"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

func (m *Membership) IsActive() bool {
	return m.Status == StatusActive
}

// MeteredUnit returns the unit bookings consume, or false for unlimited plans.
// Session plans take precedence over credit plans.
func (m *Membership) MeteredUnit() (Unit, bool) {
	switch {
	case m.SessionsRemaining != nil:
		return UnitSessions, true
	case m.CreditsRemaining != nil:
		return UnitCredits, true
	}
	return "", false
}

// Remaining is the balance left in unit; unlimited plans report false.
func (m *Membership) Remaining(unit Unit) (int, bool) {
	switch unit {
	case UnitSessions:
		if m.SessionsRemaining != nil {
			return *m.SessionsRemaining, true
		}
	case UnitCredits:
		if m.CreditsRemaining != nil {
			return *m.CreditsRemaining, true
		}
	}
	return 0, false
}
