package booking

import (
	"fmt"
	"time"

	"github.com/jilaboon/rafit-sub000/internal/apperror"
)

type Status string

const (
	StatusConfirmed  Status = "CONFIRMED"
	StatusWaitlisted Status = "WAITLISTED"
	StatusCancelled  Status = "CANCELLED"
	StatusNoShow     Status = "NO_SHOW"
	StatusCompleted  Status = "COMPLETED"
)

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := transitions[st]; !ok {
		return "", apperror.ErrInvalidInput.Withf("unknown booking status %q", s)
	}
	return st, nil
}

// Actor records who cancelled a booking.
type Actor string

const (
	ActorCustomer Actor = "customer"
	ActorStaff    Actor = "staff"
	ActorSystem   Actor = "system"
)

// State is the status of a booking together with the data only that status carries.
type State interface {
	Status() Status
	isState()
}

type Confirmed struct{}

type Waitlisted struct {
	Position int
}

type Cancelled struct {
	At     time.Time
	Reason string
	By     Actor
}

type NoShow struct {
	At time.Time
}

type Completed struct {
	CheckedInAt time.Time
}

func (Confirmed) Status() Status  { return StatusConfirmed }
func (Waitlisted) Status() Status { return StatusWaitlisted }
func (Cancelled) Status() Status  { return StatusCancelled }
func (NoShow) Status() Status     { return StatusNoShow }
func (Completed) Status() Status  { return StatusCompleted }

func (Confirmed) isState()  {}
func (Waitlisted) isState() {}
func (Cancelled) isState()  {}
func (NoShow) isState()     {}
func (Completed) isState()  {}

var transitions = map[Status][]Status{
	StatusWaitlisted: {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusCancelled, StatusNoShow, StatusCompleted},
	StatusCancelled:  {},
	StatusNoShow:     {},
	StatusCompleted:  {},
}

func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// IsActive reports whether the booking holds a seat or a waitlist place.
func (s Status) IsActive() bool {
	return s == StatusConfirmed || s == StatusWaitlisted
}

// Transition validates moving from current to next.
func Transition(current, next State) (State, error) {
	if !CanTransition(current.Status(), next.Status()) {
		return nil, apperror.ErrInvalidTransition.Withf("booking cannot go from %s to %s", current.Status(), next.Status())
	}
	if w, ok := next.(Waitlisted); ok && w.Position < 1 {
		return nil, fmt.Errorf("waitlist position must be positive, got %d", w.Position)
	}
	return next, nil
}
