// Package capacity decides whether a class instance still has a free seat.
// Seats are never counted in a stored column; the CONFIRMED rows are the count.
package capacity

import (
	"context"
	"fmt"

	"github.com/jilaboon/rafit-sub000/internal/classinstance"
)

type Result int

const (
	Reserved Result = iota + 1
	Full
)

func (r Result) String() string {
	switch r {
	case Reserved:
		return "reserved"
	case Full:
		return "full"
	}
	return "unknown"
}

// Counter counts CONFIRMED bookings of a class inside the caller's transaction.
type Counter interface {
	CountConfirmed(ctx context.Context, classID int) (int, error)
}

type Allocator struct {
	counter Counter
}

func NewAllocator(counter Counter) *Allocator {
	return &Allocator{counter: counter}
}

// TryReserveSeat reports whether one more CONFIRMED booking fits. The caller must
// hold the class row lock so the answer stays true until its booking row is written.
func (a *Allocator) TryReserveSeat(ctx context.Context, class *classinstance.ClassInstance) (Result, error) {
	free, err := a.FreeSeats(ctx, class)
	if err != nil {
		return 0, err
	}
	if free > 0 {
		return Reserved, nil
	}
	return Full, nil
}

func (a *Allocator) FreeSeats(ctx context.Context, class *classinstance.ClassInstance) (int, error) {
	if class.IsCancelled {
		return 0, nil
	}
	confirmed, err := a.counter.CountConfirmed(ctx, class.ID)
	if err != nil {
		return 0, fmt.Errorf("count confirmed: %w", err)
	}
	free := class.Capacity - confirmed
	if free < 0 {
		free = 0
	}
	return free, nil
}
