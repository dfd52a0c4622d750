package ledger

import (
	"time"

	"github.com/jilaboon/rafit-sub000/internal/membership"
)

type EntryKind string

const (
	KindConsume EntryKind = "consume"
	KindRestore EntryKind = "restore"
)

// Entry is one movement on a membership balance.
type Entry struct {
	ID           int             `db:"id" json:"id"`
	MembershipID int             `db:"membership_id" json:"membership_id"`
	BookingID    int             `db:"booking_id" json:"booking_id"`
	Unit         membership.Unit `db:"unit" json:"unit"`
	Delta        int             `db:"delta" json:"delta"`
	BalanceAfter int             `db:"balance_after" json:"balance_after"`
	Kind         EntryKind       `db:"kind" json:"kind"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// Charge is what a booking recorded when it consumed balance. Unlimited plans
// leave Unit empty and Amount zero.
type Charge struct {
	BookingID    int
	MembershipID int
	Unit         membership.Unit
	Amount       int
	RestoredAt   *time.Time
}

func (c Charge) Metered() bool {
	return c.Unit != "" && c.Amount > 0
}
