package booking

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jilaboon/rafit-sub000/internal/apperror"
	"github.com/jilaboon/rafit-sub000/internal/classinstance"
	"github.com/jilaboon/rafit-sub000/internal/db"
	"github.com/jilaboon/rafit-sub000/internal/events"
	"github.com/jilaboon/rafit-sub000/internal/ledger"
	"github.com/jilaboon/rafit-sub000/internal/membership"
	"github.com/jilaboon/rafit-sub000/internal/waitlist"
)

// world is an in-memory database. memTx serializes transactions on mu and
// rolls the whole world back when a transaction fails.
type world struct {
	mu          sync.Mutex
	classes     map[int]classinstance.ClassInstance
	bookings    map[int]Booking
	memberships map[int]membership.Membership
	entries     []ledger.Entry
	nextBooking int
}

func newWorld() *world {
	return &world{
		classes:     map[int]classinstance.ClassInstance{},
		bookings:    map[int]Booking{},
		memberships: map[int]membership.Membership{},
	}
}

type inTxKey struct{}

// with runs fn under the world lock unless ctx already belongs to a transaction.
func (w *world) with(ctx context.Context, fn func()) {
	if ctx.Value(inTxKey{}) != nil {
		fn()
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	fn()
}

type snapshot struct {
	classes     map[int]classinstance.ClassInstance
	bookings    map[int]Booking
	memberships map[int]membership.Membership
	entries     []ledger.Entry
	nextBooking int
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (w *world) snapshot() snapshot {
	s := snapshot{
		classes:     make(map[int]classinstance.ClassInstance, len(w.classes)),
		bookings:    make(map[int]Booking, len(w.bookings)),
		memberships: make(map[int]membership.Membership, len(w.memberships)),
		entries:     append([]ledger.Entry(nil), w.entries...),
		nextBooking: w.nextBooking,
	}
	for k, v := range w.classes {
		s.classes[k] = v
	}
	for k, v := range w.bookings {
		s.bookings[k] = v
	}
	for k, v := range w.memberships {
		v.SessionsRemaining = copyInt(v.SessionsRemaining)
		v.CreditsRemaining = copyInt(v.CreditsRemaining)
		s.memberships[k] = v
	}
	return s
}

func (w *world) restore(s snapshot) {
	w.classes = s.classes
	w.bookings = s.bookings
	w.memberships = s.memberships
	w.entries = s.entries
	w.nextBooking = s.nextBooking
}

func (w *world) addClass(c classinstance.ClassInstance) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if c.CreditCost == 0 {
		c.CreditCost = 1
	}
	w.classes[c.ID] = c
}

func (w *world) addMembership(id, customerID int, sessions *int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.memberships[id] = membership.Membership{ID: id, TenantID: 1, CustomerID: customerID, Status: membership.StatusActive, SessionsRemaining: sessions}
}

func (w *world) sessionsLeft(membershipID int) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	m := w.memberships[membershipID]
	if m.SessionsRemaining == nil {
		return -1
	}
	return *m.SessionsRemaining
}

func (w *world) booking(id int) Booking {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bookings[id]
}

func (w *world) classBookings(classID int) []Booking {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []Booking
	for _, b := range w.bookings {
		if b.ClassInstanceID == classID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memTx struct {
	w *world
	// conflicts makes the next N transactions fail as serialization conflicts.
	conflicts int
	attempts  int
}

func (m *memTx) DoSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(inTxKey{}) != nil {
		return fn(ctx)
	}

	m.w.mu.Lock()
	defer m.w.mu.Unlock()

	m.attempts++
	snap := m.w.snapshot()
	err := fn(context.WithValue(ctx, inTxKey{}, true))
	if err == nil && m.conflicts > 0 {
		m.conflicts--
		err = fmt.Errorf("%w: injected", db.ErrConflict)
	}
	if err != nil {
		m.w.restore(snap)
	}
	return err
}

type memBookings struct{ w *world }

func (r memBookings) Create(ctx context.Context, b *Booking) error {
	var err error
	r.w.with(ctx, func() {
		for _, existing := range r.w.bookings {
			if existing.CustomerID == b.CustomerID && existing.ClassInstanceID == b.ClassInstanceID && existing.Status().IsActive() {
				err = apperror.ErrAlreadyBooked
				return
			}
		}
		r.w.nextBooking++
		b.ID = r.w.nextBooking
		b.BookedAt = time.Now()
		r.w.bookings[b.ID] = *b
	})
	return err
}

func (r memBookings) GetByID(ctx context.Context, id int) (*Booking, error) {
	var (
		b  Booking
		ok bool
	)
	r.w.with(ctx, func() { b, ok = r.w.bookings[id] })
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (r memBookings) GetForUpdate(ctx context.Context, id int) (*Booking, error) {
	return r.GetByID(ctx, id)
}

func (r memBookings) HasActiveBooking(ctx context.Context, customerID, classID int) (bool, error) {
	var found bool
	r.w.with(ctx, func() {
		for _, b := range r.w.bookings {
			if b.CustomerID == customerID && b.ClassInstanceID == classID && b.Status().IsActive() {
				found = true
			}
		}
	})
	return found, nil
}

func (r memBookings) UpdateState(ctx context.Context, id int, from Status, to State) error {
	var err error
	r.w.with(ctx, func() {
		b, ok := r.w.bookings[id]
		if !ok || b.Status() != from {
			err = ErrStaleState
			return
		}
		b.State = to
		r.w.bookings[id] = b
	})
	return err
}

func (r memBookings) ListActiveByClass(ctx context.Context, classID int) ([]Booking, error) {
	var out []Booking
	r.w.with(ctx, func() {
		for _, b := range r.w.bookings {
			if b.ClassInstanceID == classID && b.Status().IsActive() {
				out = append(out, b)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memBookings) List(ctx context.Context, filter ListFilter) ([]Booking, error) {
	out := []Booking{}
	r.w.with(ctx, func() {
		for _, b := range r.w.bookings {
			if filter.CustomerID != 0 && b.CustomerID != filter.CustomerID {
				continue
			}
			if filter.TenantID != 0 && r.w.classes[b.ClassInstanceID].TenantID != filter.TenantID {
				continue
			}
			if filter.ClassInstanceID != 0 && b.ClassInstanceID != filter.ClassInstanceID {
				continue
			}
			if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, b.Status()) {
				continue
			}
			out = append(out, b)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (r memBookings) count(ctx context.Context, classID int, status Status) int {
	n := 0
	r.w.with(ctx, func() {
		for _, b := range r.w.bookings {
			if b.ClassInstanceID == classID && b.Status() == status {
				n++
			}
		}
	})
	return n
}

func (r memBookings) CountConfirmed(ctx context.Context, classID int) (int, error) {
	return r.count(ctx, classID, StatusConfirmed), nil
}

func (r memBookings) CountWaitlisted(ctx context.Context, classID int) (int, error) {
	return r.count(ctx, classID, StatusWaitlisted), nil
}

func (r memBookings) MaxWaitlistPosition(ctx context.Context, classID int) (int, error) {
	entries, _ := r.ListWaitlisted(ctx, classID)
	if len(entries) == 0 {
		return 0, nil
	}
	return entries[len(entries)-1].Position, nil
}

func (r memBookings) ListWaitlisted(ctx context.Context, classID int) ([]waitlist.Entry, error) {
	entries := []waitlist.Entry{}
	r.w.with(ctx, func() {
		for _, b := range r.w.bookings {
			if w, ok := b.State.(Waitlisted); ok && b.ClassInstanceID == classID {
				entries = append(entries, waitlist.Entry{
					BookingID:    b.ID,
					CustomerID:   b.CustomerID,
					MembershipID: b.MembershipID,
					Position:     w.Position,
				})
			}
		}
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].Position < entries[j].Position })
	return entries, nil
}

func (r memBookings) ShiftWaitlistAfter(ctx context.Context, classID, position int) error {
	r.w.with(ctx, func() {
		for id, b := range r.w.bookings {
			if w, ok := b.State.(Waitlisted); ok && b.ClassInstanceID == classID && w.Position > position {
				b.State = Waitlisted{Position: w.Position - 1}
				r.w.bookings[id] = b
			}
		}
	})
	return nil
}

type memClasses struct{ w *world }

func (r memClasses) Create(ctx context.Context, req classinstance.CreateClassRequest) (*classinstance.ClassInstance, error) {
	return nil, fmt.Errorf("not supported")
}

func (r memClasses) GetByID(ctx context.Context, id int) (*classinstance.ClassInstance, error) {
	var (
		c  classinstance.ClassInstance
		ok bool
	)
	r.w.with(ctx, func() { c, ok = r.w.classes[id] })
	if !ok {
		return nil, classinstance.ErrNotFound
	}
	return &c, nil
}

func (r memClasses) GetForUpdate(ctx context.Context, id int) (*classinstance.ClassInstance, error) {
	return r.GetByID(ctx, id)
}

func (r memClasses) MarkCancelled(ctx context.Context, id int, at time.Time, reason string) error {
	r.w.with(ctx, func() {
		c := r.w.classes[id]
		c.IsCancelled = true
		c.CancelledAt = &at
		c.CancelReason = &reason
		r.w.classes[id] = c
	})
	return nil
}

func (r memClasses) GetWithAvailability(ctx context.Context, id int) (*classinstance.WithAvailability, error) {
	c, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &classinstance.WithAvailability{ClassInstance: *c}, nil
}

func (r memClasses) ListUpcoming(ctx context.Context, tenantID int, from time.Time) ([]classinstance.ClassInstance, error) {
	return nil, nil
}

type memMemberships struct{ w *world }

func (r memMemberships) GetForUpdate(ctx context.Context, id int) (*membership.Membership, error) {
	var (
		m  membership.Membership
		ok bool
	)
	r.w.with(ctx, func() {
		m, ok = r.w.memberships[id]
		m.SessionsRemaining = copyInt(m.SessionsRemaining)
		m.CreditsRemaining = copyInt(m.CreditsRemaining)
	})
	if !ok {
		return nil, membership.ErrNotFound
	}
	return &m, nil
}

// GetActiveForCustomer mirrors the SQL ranking: unlimited first, then metered
// plans with balance left, lowest id on ties.
func (r memMemberships) GetActiveForCustomer(ctx context.Context, tenantID, customerID int) (*membership.Membership, error) {
	rank := func(m membership.Membership) int {
		unit, metered := m.MeteredUnit()
		if !metered {
			return 0
		}
		if left, _ := m.Remaining(unit); left > 0 {
			return 1
		}
		return 2
	}

	id, best := 0, 0
	r.w.with(ctx, func() {
		for _, m := range r.w.memberships {
			if m.TenantID != tenantID || m.CustomerID != customerID || !m.IsActive() {
				continue
			}
			if id == 0 || rank(m) < best || (rank(m) == best && m.ID < id) {
				id, best = m.ID, rank(m)
			}
		}
	})
	if id == 0 {
		return nil, membership.ErrNotFound
	}
	return r.GetForUpdate(ctx, id)
}

func (r memMemberships) AdjustBalance(ctx context.Context, id int, unit membership.Unit, delta int) (int, error) {
	var (
		balance int
		err     error
	)
	r.w.with(ctx, func() {
		m := r.w.memberships[id]
		field := m.SessionsRemaining
		if unit == membership.UnitCredits {
			field = m.CreditsRemaining
		}
		if field == nil {
			err = membership.ErrUnmeteredUnit
			return
		}
		*field += delta
		balance = *field
	})
	return balance, err
}

type memLedgerStore struct{ w *world }

func (s memLedgerStore) GetCharge(ctx context.Context, bookingID int) (*ledger.Charge, error) {
	var (
		b  Booking
		ok bool
	)
	s.w.with(ctx, func() { b, ok = s.w.bookings[bookingID] })
	if !ok {
		return nil, ledger.ErrBookingNotFound
	}
	return &ledger.Charge{
		BookingID:    b.ID,
		MembershipID: b.MembershipID,
		Unit:         membership.Unit(b.ChargeUnit),
		Amount:       b.ChargeAmount,
		RestoredAt:   b.BalanceRestoredAt,
	}, nil
}

func (s memLedgerStore) RecordCharge(ctx context.Context, bookingID int, unit membership.Unit, amount int) error {
	s.w.with(ctx, func() {
		b := s.w.bookings[bookingID]
		b.ChargeUnit = string(unit)
		b.ChargeAmount = amount
		s.w.bookings[bookingID] = b
	})
	return nil
}

func (s memLedgerStore) MarkRestored(ctx context.Context, bookingID int, at time.Time) (bool, error) {
	marked := false
	s.w.with(ctx, func() {
		b := s.w.bookings[bookingID]
		if b.BalanceRestoredAt == nil {
			b.BalanceRestoredAt = &at
			s.w.bookings[bookingID] = b
			marked = true
		}
	})
	return marked, nil
}

func (s memLedgerStore) InsertEntry(ctx context.Context, e *ledger.Entry) error {
	s.w.with(ctx, func() {
		e.ID = len(s.w.entries) + 1
		s.w.entries = append(s.w.entries, *e)
	})
	return nil
}

func (s memLedgerStore) ListEntries(ctx context.Context, membershipID, limit, offset int) ([]ledger.Entry, error) {
	var out []ledger.Entry
	s.w.with(ctx, func() {
		for _, e := range s.w.entries {
			if e.MembershipID == membershipID {
				out = append(out, e)
			}
		}
	})
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
