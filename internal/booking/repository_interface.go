package booking

import (
	"context"

	"github.com/jilaboon/rafit-sub000/internal/waitlist"
)

// Repository is the booking store. Besides plain CRUD it serves as the seat
// counter for capacity and the position store for the waitlist.
type Repository interface {
	Create(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id int) (*Booking, error)
	GetForUpdate(ctx context.Context, id int) (*Booking, error)
	HasActiveBooking(ctx context.Context, customerID, classID int) (bool, error)
	UpdateState(ctx context.Context, id int, from Status, to State) error
	ListActiveByClass(ctx context.Context, classID int) ([]Booking, error)
	List(ctx context.Context, filter ListFilter) ([]Booking, error)

	CountConfirmed(ctx context.Context, classID int) (int, error)
	CountWaitlisted(ctx context.Context, classID int) (int, error)
	MaxWaitlistPosition(ctx context.Context, classID int) (int, error)
	ListWaitlisted(ctx context.Context, classID int) ([]waitlist.Entry, error)
	ShiftWaitlistAfter(ctx context.Context, classID, position int) error
}
