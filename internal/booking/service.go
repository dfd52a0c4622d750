package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jilaboon/rafit-sub000/internal/apperror"
	"github.com/jilaboon/rafit-sub000/internal/auth"
	"github.com/jilaboon/rafit-sub000/internal/capacity"
	"github.com/jilaboon/rafit-sub000/internal/classinstance"
	"github.com/jilaboon/rafit-sub000/internal/clock"
	"github.com/jilaboon/rafit-sub000/internal/db"
	"github.com/jilaboon/rafit-sub000/internal/events"
	"github.com/jilaboon/rafit-sub000/internal/ledger"
	"github.com/jilaboon/rafit-sub000/internal/logger"
	"github.com/jilaboon/rafit-sub000/internal/membership"
	"github.com/jilaboon/rafit-sub000/internal/metrics"
	"github.com/jilaboon/rafit-sub000/internal/waitlist"
)

type Service interface {
	CreateBooking(ctx context.Context, p auth.Principal, classID int, req CreateBookingRequest) (*Booking, error)
	CancelBooking(ctx context.Context, p auth.Principal, bookingID int, reason string) (*Booking, error)
	CheckIn(ctx context.Context, p auth.Principal, bookingID int) (*Booking, error)
	MarkNoShow(ctx context.Context, p auth.Principal, bookingID int) (*Booking, error)
	CancelClassInstance(ctx context.Context, p auth.Principal, classID int, reason string) (*ClassCancellation, error)

	GetBooking(ctx context.Context, p auth.Principal, bookingID int) (*Booking, error)
	ListCustomerBookings(ctx context.Context, p auth.Principal, filter ListFilter) ([]Booking, error)
	ListClassBookings(ctx context.Context, p auth.Principal, classID int, statuses []Status) ([]Booking, error)
}

type Authorizer interface {
	Authorize(ctx context.Context, p auth.Principal, perm auth.Permission, ownerID int) error
}

type MembershipLookup interface {
	GetActiveForCustomer(ctx context.Context, tenantID, customerID int) (*membership.Membership, error)
}

type PolicyLookup interface {
	PolicyFor(ctx context.Context, tenantID int) (clock.Policy, error)
}

type Ledger interface {
	Consume(ctx context.Context, membershipID, bookingID, creditCost int) (ledger.Charge, error)
	Restore(ctx context.Context, bookingID int) (bool, error)
}

type TxManager interface {
	DoSerializable(ctx context.Context, fn func(ctx context.Context) error) error
}

type service struct {
	repo        Repository
	classes     classinstance.Repository
	memberships MembershipLookup
	policies    PolicyLookup
	ledger      Ledger
	authz       Authorizer
	tx          TxManager
	publisher   events.Publisher
	seats       *capacity.Allocator
	queue       *waitlist.Queue
	now         func() time.Time
}

func NewService(
	repo Repository,
	classes classinstance.Repository,
	memberships MembershipLookup,
	policies PolicyLookup,
	ledger Ledger,
	authz Authorizer,
	tx TxManager,
	publisher events.Publisher,
) Service {
	return &service{
		repo:        repo,
		classes:     classes,
		memberships: memberships,
		policies:    policies,
		ledger:      ledger,
		authz:       authz,
		tx:          tx,
		publisher:   publisher,
		seats:       capacity.NewAllocator(repo),
		queue:       waitlist.NewQueue(repo),
		now:         time.Now,
	}
}

// run executes fn in a serializable transaction and retries it once when it
// loses a serialization race. fn must reset any state it collects.
func (s *service) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := s.tx.DoSerializable(ctx, fn)
	if errors.Is(err, db.ErrConflict) {
		metrics.RecordTxConflict(op, "retried")
		logger.Warn("booking transaction conflict, retrying", "operation", op, "error", err)
		err = s.tx.DoSerializable(ctx, fn)
		if errors.Is(err, db.ErrConflict) {
			metrics.RecordTxConflict(op, "surfaced")
			return apperror.ErrConflict.Wrap(err)
		}
	}
	if appErr, ok := apperror.As(err); ok {
		metrics.RecordRejection(op, string(appErr.Code))
	}
	return err
}

func (s *service) publish(ctx context.Context, evs []events.Event) {
	for _, e := range evs {
		if err := s.publisher.Publish(ctx, e); err != nil {
			logger.Error("failed to publish event", "event_id", e.ID, "type", e.Type, "error", err)
		}
	}
}

func bookingEvent(typ events.Type, b *Booking) events.Event {
	return events.New(typ, b.ID, b.ClassInstanceID, b.CustomerID, string(b.Status()))
}

// lockClass locks the class row and hides classes of other tenants.
func (s *service) lockClass(ctx context.Context, p auth.Principal, classID int) (*classinstance.ClassInstance, error) {
	class, err := s.classes.GetForUpdate(ctx, classID)
	return s.checkClass(p, classID, class, err)
}

func (s *service) readClass(ctx context.Context, p auth.Principal, classID int) (*classinstance.ClassInstance, error) {
	class, err := s.classes.GetByID(ctx, classID)
	return s.checkClass(p, classID, class, err)
}

func (s *service) checkClass(p auth.Principal, classID int, class *classinstance.ClassInstance, err error) (*classinstance.ClassInstance, error) {
	if errors.Is(err, classinstance.ErrNotFound) {
		return nil, apperror.ErrNotFound.Withf("class instance %d not found", classID)
	}
	if err != nil {
		return nil, fmt.Errorf("load class: %w", err)
	}
	if p.TenantID != 0 && class.TenantID != p.TenantID {
		return nil, apperror.ErrNotFound.Withf("class instance %d not found", classID)
	}
	return class, nil
}

func (s *service) loadBooking(ctx context.Context, id int, lock bool) (*Booking, error) {
	var (
		b   *Booking
		err error
	)
	if lock {
		b, err = s.repo.GetForUpdate(ctx, id)
	} else {
		b, err = s.repo.GetByID(ctx, id)
	}
	if errors.Is(err, ErrNotFound) {
		return nil, apperror.ErrNotFound.Withf("booking %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	return b, nil
}

func (s *service) setState(ctx context.Context, b *Booking, next State) error {
	if _, err := Transition(b.State, next); err != nil {
		return err
	}
	if err := s.repo.UpdateState(ctx, b.ID, b.Status(), next); err != nil {
		if errors.Is(err, ErrStaleState) {
			return fmt.Errorf("booking %d: %w", b.ID, db.ErrConflict)
		}
		return fmt.Errorf("update booking: %w", err)
	}
	b.State = next
	return nil
}

func (s *service) CreateBooking(ctx context.Context, p auth.Principal, classID int, req CreateBookingRequest) (*Booking, error) {
	customerID := req.CustomerID
	if customerID == 0 {
		customerID = p.UserID
	}
	if err := s.authz.Authorize(ctx, p, auth.PermBookingCreate, customerID); err != nil {
		return nil, err
	}

	var (
		result *Booking
		evs    []events.Event
	)
	err := s.run(ctx, "create", func(ctx context.Context) error {
		result, evs = nil, nil

		class, err := s.lockClass(ctx, p, classID)
		if err != nil {
			return err
		}
		now := s.now()
		if class.IsCancelled {
			return apperror.ErrPolicyViolation.Withf("class instance %d is cancelled", classID)
		}
		if clock.HasStarted(now, class.StartsAt) {
			return apperror.ErrPolicyViolation.Withf("class instance %d has already started", classID)
		}

		m, err := s.memberships.GetActiveForCustomer(ctx, class.TenantID, customerID)
		if errors.Is(err, membership.ErrNotFound) {
			return apperror.ErrPolicyViolation.Withf("customer %d has no active membership at this studio", customerID)
		}
		if err != nil {
			return fmt.Errorf("load membership: %w", err)
		}

		booked, err := s.repo.HasActiveBooking(ctx, customerID, classID)
		if err != nil {
			return fmt.Errorf("check existing booking: %w", err)
		}
		if booked {
			return apperror.ErrAlreadyBooked
		}

		b := &Booking{
			ClassInstanceID: classID,
			CustomerID:      customerID,
			MembershipID:    m.ID,
			Source:          req.Source,
		}

		seat, err := s.seats.TryReserveSeat(ctx, class)
		if err != nil {
			return err
		}

		switch seat {
		case capacity.Reserved:
			b.State = Confirmed{}
			if err := s.repo.Create(ctx, b); err != nil {
				return err
			}
			charge, err := s.ledger.Consume(ctx, m.ID, b.ID, class.CreditCost)
			if err != nil {
				return err
			}
			b.ChargeUnit = string(charge.Unit)
			b.ChargeAmount = charge.Amount
		default:
			pos, err := s.queue.Enqueue(ctx, class)
			if errors.Is(err, apperror.ErrWaitlistFull) {
				return apperror.ErrClassFull.Withf("class instance %d is full", classID)
			}
			if err != nil {
				return err
			}
			b.State = Waitlisted{Position: pos}
			if err := s.repo.Create(ctx, b); err != nil {
				return err
			}
		}

		result = b
		evs = append(evs, bookingEvent(events.BookingCreated, b))
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordBooking(string(result.Status()), result.Source)
	logger.Info("booking created",
		"booking_id", result.ID,
		"class_instance_id", classID,
		"customer_id", customerID,
		"status", result.Status(),
	)
	s.publish(ctx, evs)
	return result, nil
}

// promoter builds the callback the waitlist uses to hand a freed seat to a
// candidate. Candidates whose membership cannot pay are skipped.
func (s *service) promoter(class *classinstance.ClassInstance, promoted **Booking) func(ctx context.Context, e waitlist.Entry) error {
	return func(ctx context.Context, e waitlist.Entry) error {
		b, err := s.loadBooking(ctx, e.BookingID, true)
		if err != nil {
			return err
		}

		charge, err := s.ledger.Consume(ctx, b.MembershipID, b.ID, class.CreditCost)
		if errors.Is(err, apperror.ErrInsufficientBalance) ||
			errors.Is(err, apperror.ErrPolicyViolation) ||
			errors.Is(err, apperror.ErrNotFound) {
			return fmt.Errorf("%w: %v", waitlist.ErrSkipCandidate, err)
		}
		if err != nil {
			return err
		}

		if err := s.setState(ctx, b, Confirmed{}); err != nil {
			return err
		}
		b.ChargeUnit = string(charge.Unit)
		b.ChargeAmount = charge.Amount
		*promoted = b
		return nil
	}
}

// promoteIfSeatFree fills a freed seat from the waitlist. It returns nil when
// nobody was promoted.
func (s *service) promoteIfSeatFree(ctx context.Context, class *classinstance.ClassInstance) (*Booking, error) {
	seat, err := s.seats.TryReserveSeat(ctx, class)
	if err != nil || seat != capacity.Reserved {
		return nil, err
	}

	var promoted *Booking
	if _, err := s.queue.PromoteNext(ctx, class.ID, s.promoter(class, &promoted)); err != nil {
		return nil, err
	}
	return promoted, nil
}

func actorFor(p auth.Principal, customerID int) Actor {
	if p.UserID == customerID {
		return ActorCustomer
	}
	return ActorStaff
}

func (s *service) CancelBooking(ctx context.Context, p auth.Principal, bookingID int, reason string) (*Booking, error) {
	current, err := s.loadBooking(ctx, bookingID, false)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(ctx, p, auth.PermBookingCancel, current.CustomerID); err != nil {
		return nil, err
	}

	var (
		result   *Booking
		refunded bool
		evs      []events.Event
	)
	err = s.run(ctx, "cancel", func(ctx context.Context) error {
		result, refunded, evs = nil, false, nil

		class, err := s.lockClass(ctx, p, current.ClassInstanceID)
		if err != nil {
			return err
		}
		b, err := s.loadBooking(ctx, bookingID, true)
		if err != nil {
			return err
		}

		now := s.now()
		next := Cancelled{At: now, Reason: reason, By: actorFor(p, b.CustomerID)}

		switch st := b.State.(type) {
		case Waitlisted:
			if err := s.setState(ctx, b, next); err != nil {
				return err
			}
			if err := s.queue.Dequeue(ctx, class.ID, st.Position); err != nil {
				return err
			}

		case Confirmed:
			policy, err := s.policies.PolicyFor(ctx, class.TenantID)
			if err != nil {
				return fmt.Errorf("load tenant policy: %w", err)
			}
			if clock.IsCancelableWithoutPenalty(now, class.StartsAt, policy.CancellationWindow) {
				if refunded, err = s.ledger.Restore(ctx, b.ID); err != nil {
					return err
				}
				if refunded {
					b.BalanceRestoredAt = &now
				}
			}
			if err := s.setState(ctx, b, next); err != nil {
				return err
			}
			if !clock.HasStarted(now, class.StartsAt) {
				promoted, err := s.promoteIfSeatFree(ctx, class)
				if err != nil {
					return err
				}
				if promoted != nil {
					evs = append(evs, bookingEvent(events.BookingPromoted, promoted))
				}
			}

		default:
			return apperror.ErrInvalidTransition.Withf("booking %d is %s and cannot be cancelled", b.ID, b.Status())
		}

		result = b
		evs = append([]events.Event{bookingEvent(events.BookingCancelled, b)}, evs...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordBookingCancellation(string(actorFor(p, result.CustomerID)), refunded)
	logger.Info("booking cancelled", "booking_id", result.ID, "refunded", refunded, "promotions", len(evs)-1)
	s.publish(ctx, evs)
	return result, nil
}

func (s *service) CheckIn(ctx context.Context, p auth.Principal, bookingID int) (*Booking, error) {
	if err := s.authz.Authorize(ctx, p, auth.PermBookingCheck, 0); err != nil {
		return nil, err
	}

	var (
		result  *Booking
		changed bool
	)
	err := s.run(ctx, "check_in", func(ctx context.Context) error {
		result, changed = nil, false

		b, err := s.loadBooking(ctx, bookingID, true)
		if err != nil {
			return err
		}
		class, err := s.readClass(ctx, p, b.ClassInstanceID)
		if err != nil {
			return err
		}

		switch b.State.(type) {
		case Completed:
			result = b
			return nil
		case Confirmed:
		default:
			return apperror.ErrInvalidTransition.Withf("booking %d is %s and cannot be checked in", b.ID, b.Status())
		}

		policy, err := s.policies.PolicyFor(ctx, class.TenantID)
		if err != nil {
			return fmt.Errorf("load tenant policy: %w", err)
		}
		now := s.now()
		if !clock.IsWithinCheckinWindow(now, class.StartsAt, class.EndsAt, policy.CheckinOpensBefore) {
			return apperror.ErrPolicyViolation.Withf("check-in is open from %s until %s",
				class.StartsAt.Add(-policy.CheckinOpensBefore).Format(time.RFC3339), class.EndsAt.Format(time.RFC3339))
		}

		if err := s.setState(ctx, b, Completed{CheckedInAt: now}); err != nil {
			return err
		}
		result, changed = b, true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		metrics.RecordCheckin()
		s.publish(ctx, []events.Event{bookingEvent(events.BookingCheckedIn, result)})
	}
	return result, nil
}

func (s *service) MarkNoShow(ctx context.Context, p auth.Principal, bookingID int) (*Booking, error) {
	if err := s.authz.Authorize(ctx, p, auth.PermBookingCheck, 0); err != nil {
		return nil, err
	}

	var (
		result  *Booking
		changed bool
	)
	err := s.run(ctx, "no_show", func(ctx context.Context) error {
		result, changed = nil, false

		b, err := s.loadBooking(ctx, bookingID, true)
		if err != nil {
			return err
		}
		class, err := s.readClass(ctx, p, b.ClassInstanceID)
		if err != nil {
			return err
		}

		switch b.State.(type) {
		case NoShow:
			result = b
			return nil
		case Confirmed:
		default:
			return apperror.ErrInvalidTransition.Withf("booking %d is %s and cannot be marked as no-show", b.ID, b.Status())
		}

		policy, err := s.policies.PolicyFor(ctx, class.TenantID)
		if err != nil {
			return fmt.Errorf("load tenant policy: %w", err)
		}
		now := s.now()
		if !clock.IsEligibleForNoShow(now, class.StartsAt, class.EndsAt, policy) {
			return apperror.ErrPolicyViolation.Withf("no-show can be marked from %s",
				clock.NoShowEligibleAt(class.StartsAt, class.EndsAt, policy).Format(time.RFC3339))
		}

		if err := s.setState(ctx, b, NoShow{At: now}); err != nil {
			return err
		}
		result, changed = b, true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		metrics.RecordNoShow()
		s.publish(ctx, []events.Event{bookingEvent(events.BookingNoShow, result)})
	}
	return result, nil
}

func (s *service) CancelClassInstance(ctx context.Context, p auth.Principal, classID int, reason string) (*ClassCancellation, error) {
	if err := s.authz.Authorize(ctx, p, auth.PermClassManage, 0); err != nil {
		return nil, err
	}

	var (
		result *ClassCancellation
		evs    []events.Event
	)
	err := s.run(ctx, "cancel_class", func(ctx context.Context) error {
		result, evs = &ClassCancellation{ClassInstanceID: classID, Cancelled: []Booking{}}, nil

		class, err := s.lockClass(ctx, p, classID)
		if err != nil {
			return err
		}
		if class.IsCancelled {
			result.AlreadyCancelled = true
			return nil
		}

		active, err := s.repo.ListActiveByClass(ctx, classID)
		if err != nil {
			return fmt.Errorf("list active bookings: %w", err)
		}

		now := s.now()
		for i := range active {
			b := &active[i]
			if _, ok := b.State.(Confirmed); ok {
				restored, err := s.ledger.Restore(ctx, b.ID)
				if err != nil {
					return err
				}
				if restored {
					result.Restored++
					b.BalanceRestoredAt = &now
				}
			}
			if err := s.setState(ctx, b, Cancelled{At: now, Reason: reason, By: ActorSystem}); err != nil {
				return err
			}
			result.Cancelled = append(result.Cancelled, *b)
			evs = append(evs, bookingEvent(events.BookingCancelled, b))
		}

		if err := s.classes.MarkCancelled(ctx, classID, now, reason); err != nil {
			return fmt.Errorf("mark class cancelled: %w", err)
		}
		evs = append(evs, events.New(events.ClassCancelled, 0, classID, 0, string(StatusCancelled)))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.AlreadyCancelled {
		metrics.RecordClassCancellation()
		logger.Info("class instance cancelled",
			"class_instance_id", classID,
			"bookings_cancelled", len(result.Cancelled),
			"balances_restored", result.Restored,
		)
	}
	s.publish(ctx, evs)
	return result, nil
}

func (s *service) GetBooking(ctx context.Context, p auth.Principal, bookingID int) (*Booking, error) {
	b, err := s.loadBooking(ctx, bookingID, false)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(ctx, p, auth.PermBookingRead, b.CustomerID); err != nil {
		return nil, err
	}
	if _, err := s.readClass(ctx, p, b.ClassInstanceID); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *service) ListCustomerBookings(ctx context.Context, p auth.Principal, filter ListFilter) ([]Booking, error) {
	if filter.CustomerID == 0 {
		filter.CustomerID = p.UserID
	}
	if err := s.authz.Authorize(ctx, p, auth.PermBookingRead, filter.CustomerID); err != nil {
		return nil, err
	}
	filter.TenantID = p.TenantID
	return s.repo.List(ctx, filter)
}

func (s *service) ListClassBookings(ctx context.Context, p auth.Principal, classID int, statuses []Status) ([]Booking, error) {
	if err := s.authz.Authorize(ctx, p, auth.PermBookingRead, 0); err != nil {
		return nil, err
	}
	if _, err := s.readClass(ctx, p, classID); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, ListFilter{ClassInstanceID: classID, Statuses: statuses, Limit: 200})
}
