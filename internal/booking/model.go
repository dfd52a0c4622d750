package booking

import (
	"encoding/json"
	"time"
)

type Booking struct {
	ID                int
	ClassInstanceID   int
	CustomerID        int
	MembershipID      int
	State             State
	Source            string
	BookedAt          time.Time
	ChargeUnit        string
	ChargeAmount      int
	BalanceRestoredAt *time.Time
}

func (b *Booking) Status() Status {
	return b.State.Status()
}

type bookingJSON struct {
	ID                int        `json:"id"`
	ClassInstanceID   int        `json:"class_instance_id"`
	CustomerID        int        `json:"customer_id"`
	MembershipID      int        `json:"membership_id"`
	Status            Status     `json:"status"`
	WaitlistPosition  *int       `json:"waitlist_position,omitempty"`
	Source            string     `json:"source,omitempty"`
	BookedAt          time.Time  `json:"booked_at"`
	CheckedInAt       *time.Time `json:"checked_in_at,omitempty"`
	CancelledAt       *time.Time `json:"cancelled_at,omitempty"`
	CancelReason      string     `json:"cancel_reason,omitempty"`
	CancelledBy       Actor      `json:"cancelled_by,omitempty"`
	NoShowAt          *time.Time `json:"no_show_at,omitempty"`
	ChargeUnit        string     `json:"charge_unit,omitempty"`
	ChargeAmount      int        `json:"charge_amount"`
	BalanceRestoredAt *time.Time `json:"balance_restored_at,omitempty"`
}

func (b Booking) MarshalJSON() ([]byte, error) {
	out := bookingJSON{
		ID:                b.ID,
		ClassInstanceID:   b.ClassInstanceID,
		CustomerID:        b.CustomerID,
		MembershipID:      b.MembershipID,
		Source:            b.Source,
		BookedAt:          b.BookedAt,
		ChargeUnit:        b.ChargeUnit,
		ChargeAmount:      b.ChargeAmount,
		BalanceRestoredAt: b.BalanceRestoredAt,
	}
	if b.State != nil {
		out.Status = b.State.Status()
	}

	switch s := b.State.(type) {
	case Waitlisted:
		out.WaitlistPosition = &s.Position
	case Cancelled:
		out.CancelledAt = &s.At
		out.CancelReason = s.Reason
		out.CancelledBy = s.By
	case NoShow:
		out.NoShowAt = &s.At
	case Completed:
		out.CheckedInAt = &s.CheckedInAt
	}
	return json.Marshal(out)
}

type CreateBookingRequest struct {
	CustomerID int    `json:"customer_id" binding:"omitempty,min=1"`
	Source     string `json:"source" binding:"omitempty,max=32"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

type CancelClassRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// ListFilter narrows booking listings. Zero values mean "any". TenantID keeps
// bookings of classes run by that tenant.
type ListFilter struct {
	TenantID        int
	CustomerID      int
	ClassInstanceID int
	Statuses        []Status
	Limit           int
	Offset          int
}

// ClassCancellation summarises a studio-side class cancellation.
type ClassCancellation struct {
	ClassInstanceID  int       `json:"class_instance_id"`
	AlreadyCancelled bool      `json:"already_cancelled"`
	Cancelled        []Booking `json:"cancelled_bookings"`
	Restored         int       `json:"restored_count"`
}
