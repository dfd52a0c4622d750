// Package ledger consumes and restores metered membership balance for bookings.
// Every consumption is recorded on the booking so a restore gives back exactly
// what was taken, to the same membership, at most once.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jilaboon/rafit-sub000/internal/apperror"
	"github.com/jilaboon/rafit-sub000/internal/membership"
	"github.com/jilaboon/rafit-sub000/internal/metrics"
)

// Memberships is the part of the membership repository the ledger writes through.
type Memberships interface {
	GetForUpdate(ctx context.Context, id int) (*membership.Membership, error)
	AdjustBalance(ctx context.Context, id int, unit membership.Unit, delta int) (int, error)
}

type Ledger struct {
	memberships Memberships
	store       Store
	now         func() time.Time
}

func New(memberships Memberships, store Store) *Ledger {
	return &Ledger{memberships: memberships, store: store, now: time.Now}
}

// Consume charges the booking against the membership. Session plans cost one
// session, credit plans cost creditCost credits and unlimited plans cost nothing.
// All checks run before the first write.
func (l *Ledger) Consume(ctx context.Context, membershipID, bookingID, creditCost int) (Charge, error) {
	m, err := l.memberships.GetForUpdate(ctx, membershipID)
	if errors.Is(err, membership.ErrNotFound) {
		return Charge{}, apperror.ErrNotFound.Withf("membership %d not found", membershipID)
	}
	if err != nil {
		return Charge{}, fmt.Errorf("lock membership: %w", err)
	}
	if !m.IsActive() {
		return Charge{}, apperror.ErrPolicyViolation.Withf("membership is %s", m.Status)
	}

	charge := Charge{BookingID: bookingID, MembershipID: membershipID}
	unit, metered := m.MeteredUnit()
	if !metered {
		return charge, nil
	}

	cost := 1
	if unit == membership.UnitCredits {
		cost = creditCost
		if cost < 1 {
			cost = 1
		}
	}

	remaining, _ := m.Remaining(unit)
	if remaining < cost {
		return Charge{}, apperror.ErrInsufficientBalance.Withf("need %d %s, %d left", cost, unit, remaining)
	}

	balance, err := l.memberships.AdjustBalance(ctx, membershipID, unit, -cost)
	if err != nil {
		return Charge{}, fmt.Errorf("debit membership: %w", err)
	}
	if err := l.store.RecordCharge(ctx, bookingID, unit, cost); err != nil {
		return Charge{}, fmt.Errorf("record charge: %w", err)
	}
	if err := l.store.InsertEntry(ctx, &Entry{
		MembershipID: membershipID,
		BookingID:    bookingID,
		Unit:         unit,
		Delta:        -cost,
		BalanceAfter: balance,
		Kind:         KindConsume,
	}); err != nil {
		return Charge{}, fmt.Errorf("journal consume: %w", err)
	}

	metrics.RecordBalanceMovement(string(unit), string(KindConsume), cost)
	charge.Unit = unit
	charge.Amount = cost
	return charge, nil
}

// Restore returns the recorded charge of a booking to its membership. It
// reports false without writing when there was nothing to restore or the
// booking was already restored.
func (l *Ledger) Restore(ctx context.Context, bookingID int) (bool, error) {
	charge, err := l.store.GetCharge(ctx, bookingID)
	if errors.Is(err, ErrBookingNotFound) {
		return false, apperror.ErrNotFound.Withf("booking %d not found", bookingID)
	}
	if err != nil {
		return false, fmt.Errorf("load charge: %w", err)
	}
	if !charge.Metered() || charge.RestoredAt != nil {
		return false, nil
	}

	marked, err := l.store.MarkRestored(ctx, bookingID, l.now())
	if err != nil {
		return false, fmt.Errorf("mark restored: %w", err)
	}
	if !marked {
		return false, nil
	}

	balance, err := l.memberships.AdjustBalance(ctx, charge.MembershipID, charge.Unit, charge.Amount)
	if err != nil {
		return false, fmt.Errorf("credit membership: %w", err)
	}
	if err := l.store.InsertEntry(ctx, &Entry{
		MembershipID: charge.MembershipID,
		BookingID:    bookingID,
		Unit:         charge.Unit,
		Delta:        charge.Amount,
		BalanceAfter: balance,
		Kind:         KindRestore,
	}); err != nil {
		return false, fmt.Errorf("journal restore: %w", err)
	}

	metrics.RecordBalanceMovement(string(charge.Unit), string(KindRestore), charge.Amount)
	return true, nil
}

func (l *Ledger) Entries(ctx context.Context, membershipID, limit, offset int) ([]Entry, error) {
	return l.store.ListEntries(ctx, membershipID, limit, offset)
}
