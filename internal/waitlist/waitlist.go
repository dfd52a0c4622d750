// Package waitlist keeps the FIFO queue of WAITLISTED bookings per class.
// Positions of a class always form 1..N.
package waitlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jilaboon/rafit-sub000/internal/apperror"
	"github.com/jilaboon/rafit-sub000/internal/classinstance"
	"github.com/jilaboon/rafit-sub000/internal/logger"
	"github.com/jilaboon/rafit-sub000/internal/metrics"
)

// ErrSkipCandidate tells PromoteNext to leave the candidate queued and try the next one.
var ErrSkipCandidate = errors.New("waitlist: skip candidate")

type Entry struct {
	BookingID    int `db:"id"`
	CustomerID   int `db:"customer_id"`
	MembershipID int `db:"membership_id"`
	Position     int `db:"waitlist_position"`
}

// Store reads and renumbers queue positions inside the caller's transaction.
type Store interface {
	CountWaitlisted(ctx context.Context, classID int) (int, error)
	MaxWaitlistPosition(ctx context.Context, classID int) (int, error)
	ListWaitlisted(ctx context.Context, classID int) ([]Entry, error)
	ShiftWaitlistAfter(ctx context.Context, classID, position int) error
}

type Queue struct {
	store Store
}

func NewQueue(store Store) *Queue {
	return &Queue{store: store}
}

// Enqueue returns the position a new waitlisted booking takes.
func (q *Queue) Enqueue(ctx context.Context, class *classinstance.ClassInstance) (int, error) {
	if class.WaitlistLimit <= 0 {
		return 0, apperror.ErrWaitlistFull.Withf("class %d has no waitlist", class.ID)
	}

	count, err := q.store.CountWaitlisted(ctx, class.ID)
	if err != nil {
		return 0, fmt.Errorf("count waitlisted: %w", err)
	}
	if count >= class.WaitlistLimit {
		return 0, apperror.ErrWaitlistFull
	}

	last, err := q.store.MaxWaitlistPosition(ctx, class.ID)
	if err != nil {
		return 0, fmt.Errorf("max waitlist position: %w", err)
	}
	return last + 1, nil
}

// PromoteNext offers the freed seat to candidates in position order. promote
// moves the candidate out of the queue; when it returns ErrSkipCandidate the
// candidate keeps its place and the next one is tried. It returns the promoted
// entry, or nil when nobody could take the seat.
func (q *Queue) PromoteNext(ctx context.Context, classID int, promote func(ctx context.Context, e Entry) error) (*Entry, error) {
	candidates, err := q.store.ListWaitlisted(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("list waitlisted: %w", err)
	}

	for _, c := range candidates {
		err := promote(ctx, c)
		if errors.Is(err, ErrSkipCandidate) {
			logger.Warn("waitlist candidate skipped",
				"class_instance_id", classID,
				"booking_id", c.BookingID,
				"position", c.Position,
				"reason", err,
			)
			metrics.RecordPromotionSkip()
			continue
		}
		if err != nil {
			return nil, err
		}

		if err := q.store.ShiftWaitlistAfter(ctx, classID, c.Position); err != nil {
			return nil, fmt.Errorf("renumber waitlist: %w", err)
		}
		metrics.RecordPromotion()
		promoted := c
		return &promoted, nil
	}
	return nil, nil
}

// Dequeue closes the gap left by a booking that already left the queue at position.
func (q *Queue) Dequeue(ctx context.Context, classID, position int) error {
	if err := q.store.ShiftWaitlistAfter(ctx, classID, position); err != nil {
		return fmt.Errorf("renumber waitlist: %w", err)
	}
	return nil
}
