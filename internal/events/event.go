// Package events publishes booking domain events after the owning transaction commits.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	BookingCreated   Type = "booking.created"
	BookingCancelled Type = "booking.cancelled"
	BookingCheckedIn Type = "booking.checked_in"
	BookingNoShow    Type = "booking.no_show"
	BookingPromoted  Type = "booking.promoted"
	ClassCancelled   Type = "class.cancelled"
)

type Event struct {
	ID              string    `json:"id"`
	Type            Type      `json:"type"`
	BookingID       int       `json:"booking_id,omitempty"`
	ClassInstanceID int       `json:"class_instance_id"`
	CustomerID      int       `json:"customer_id,omitempty"`
	Status          string    `json:"status"`
	OccurredAt      time.Time `json:"occurred_at"`
	Tries           int       `json:"tries,omitempty"`
}

func New(typ Type, bookingID, classInstanceID, customerID int, status string) Event {
	return Event{
		ID:              uuid.NewString(),
		Type:            typ,
		BookingID:       bookingID,
		ClassInstanceID: classInstanceID,
		CustomerID:      customerID,
		Status:          status,
		OccurredAt:      time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
