package service

import (
	"context"
	"errors"
	"maps"
	"sort"
	"sync"
	"testing"
	"time"

	"ticketing/internal/auth"
	bookingserrors "ticketing/internal/bookings/errors"
	"ticketing/internal/bookings/repository"
	eventserrors "ticketing/internal/events/errors"
	"ticketing/pkg/config"
	mongotx "ticketing/pkg/db/mongo"
	apperrors "ticketing/pkg/errors"
	"ticketing/pkg/logger"
	"ticketing/pkg/model"
	"ticketing/pkg/validation"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memInventory mirrors the conditional updates of the event repository.
type memInventory struct {
	mu     sync.Mutex
	events map[string]*model.Event
}

func (m *memInventory) FindByID(_ context.Context, id string) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.events[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, eventserrors.ErrNotFound
}

func (m *memInventory) ReserveTickets(_ context.Context, id string, quantity int) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, eventserrors.ErrNotFound
	}
	if e.Status != model.EventApproved {
		return nil, eventserrors.ErrNotBookable
	}
	if e.BookedCount+quantity > e.Capacity {
		return nil, eventserrors.ErrCapacityExceeded
	}
	e.BookedCount += quantity
	cp := *e
	return &cp, nil
}

func (m *memInventory) ReleaseTickets(_ context.Context, id string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return eventserrors.ErrNotFound
	}
	if e.BookedCount < quantity {
		return eventserrors.ErrCounterUnderflow
	}
	e.BookedCount -= quantity
	return nil
}

func (m *memInventory) booked(t *testing.T, id string) int {
	t.Helper()
	e, err := m.FindByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return e.BookedCount
}

type memBookingRepository struct {
	mu        sync.Mutex
	bookings  map[string]*model.Booking
	createErr error
}

func (m *memBookingRepository) Create(_ context.Context, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	b.ID = primitive.NewObjectID().Hex()
	b.CreatedAt = time.Now()
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

func (m *memBookingRepository) FindByID(_ context.Context, id string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bookings[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, bookingserrors.ErrNotFound
}

func (m *memBookingRepository) filter(keep func(*model.Booking) bool) []*model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Booking{}
	for _, b := range m.bookings {
		if keep(b) {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memBookingRepository) FindByUser(_ context.Context, userID string) ([]*model.Booking, error) {
	return m.filter(func(b *model.Booking) bool { return b.UserID == userID }), nil
}

func (m *memBookingRepository) FindByEvent(_ context.Context, eventID string) ([]*model.Booking, error) {
	return m.filter(func(b *model.Booking) bool { return b.EventID == eventID }), nil
}

func (m *memBookingRepository) MarkCancelled(_ context.Context, id string, at time.Time) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	if b.Status != model.BookingConfirmed {
		return nil, bookingserrors.ErrAlreadyCancelled
	}
	b.Status = model.BookingCancelled
	b.CancelledAt = &at
	cp := *b
	return &cp, nil
}

func (m *memBookingRepository) CancelAllForEvent(_ context.Context, _ string, _ time.Time) ([]*model.Booking, error) {
	return nil, nil
}

func (m *memBookingRepository) SummarizeByEvent(_ context.Context, _ string) (map[model.BookingStatus]repository.StatusTotals, error) {
	return nil, nil
}

func (m *memBookingRepository) confirmedQuantity(eventID string) int {
	total := 0
	for _, b := range m.filter(func(b *model.Booking) bool { return b.EventID == eventID && b.Status == model.BookingConfirmed }) {
		total += b.Quantity
	}
	return total
}

// snapshotTx restores both stores when the transaction body fails.
type snapshotTx struct {
	inv   *memInventory
	repo  *memBookingRepository
	calls int
}

func (s *snapshotTx) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	s.calls++
	events := map[string]model.Event{}
	s.inv.mu.Lock()
	for id, e := range s.inv.events {
		events[id] = *e
	}
	s.inv.mu.Unlock()
	s.repo.mu.Lock()
	bookings := maps.Clone(s.repo.bookings)
	s.repo.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.inv.mu.Lock()
		for id, e := range events {
			cp := e
			s.inv.events[id] = &cp
		}
		s.inv.mu.Unlock()
		s.repo.mu.Lock()
		s.repo.bookings = bookings
		s.repo.mu.Unlock()
		return err
	}
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, _ *model.Booking) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return p.err
}

type fixture struct {
	svc   BookingService
	inv   *memInventory
	repo  *memBookingRepository
	pub   *recordingPublisher
	event *model.Event
}

var (
	alice     = &auth.Identity{UserID: primitive.NewObjectID().Hex(), Role: model.RoleStandard}
	bob       = &auth.Identity{UserID: primitive.NewObjectID().Hex(), Role: model.RoleStandard}
	organizer = &auth.Identity{UserID: primitive.NewObjectID().Hex(), Role: model.RoleOrganizer}
	admin     = &auth.Identity{UserID: primitive.NewObjectID().Hex(), Role: model.RoleAdmin}
)

func newFixture(t *testing.T, capacity int, txFor func(*memInventory, *memBookingRepository) mongotx.TransactionManager) *fixture {
	t.Helper()
	v, err := validation.New()
	if err != nil {
		t.Fatal(err)
	}

	event := &model.Event{
		ID:          primitive.NewObjectID().Hex(),
		Title:       "Concert",
		Price:       25,
		Capacity:    capacity,
		Status:      model.EventApproved,
		OrganizerID: organizer.UserID,
	}
	inv := &memInventory{events: map[string]*model.Event{event.ID: event}}
	repo := &memBookingRepository{bookings: map[string]*model.Booking{}}
	pub := &recordingPublisher{}
	cfg := &config.Config{Log: logger.Discard(), MaxTicketsPerBooking: 100}

	var tx mongotx.TransactionManager = mongotx.NoopTransactionManager{}
	if txFor != nil {
		tx = txFor(inv, repo)
	}

	return &fixture{
		svc:   NewBookingService(repo, inv, tx, pub, v, cfg),
		inv:   inv,
		repo:  repo,
		pub:   pub,
		event: event,
	}
}

func withSnapshots(inv *memInventory, repo *memBookingRepository) mongotx.TransactionManager {
	return &snapshotTx{inv: inv, repo: repo}
}

func (f *fixture) book(identity *auth.Identity, quantity int) (*model.Booking, error) {
	return f.svc.Book(context.Background(), identity, f.event.ID, &model.BookingRequest{Quantity: quantity})
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if !apperrors.HasCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func TestBook_Scenario(t *testing.T) {
	f := newFixture(t, 10, withSnapshots)
	ctx := context.Background()

	first, err := f.book(alice, 7)
	if err != nil {
		t.Fatalf("book 7: %v", err)
	}
	if got := f.inv.booked(t, f.event.ID); got != 7 {
		t.Fatalf("booked = %d, want 7", got)
	}

	_, err = f.book(bob, 5)
	assertCode(t, err, apperrors.CodeCapacityExceeded)
	if got := f.inv.booked(t, f.event.ID); got != 7 {
		t.Fatalf("failed booking changed counter: booked = %d, want 7", got)
	}
	if len(f.repo.bookings) != 1 {
		t.Fatalf("failed booking created a record: %d bookings", len(f.repo.bookings))
	}

	if _, err := f.svc.Cancel(ctx, alice, first.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := f.inv.booked(t, f.event.ID); got != 0 {
		t.Fatalf("booked after cancel = %d, want 0", got)
	}

	if _, err := f.book(bob, 5); err != nil {
		t.Fatalf("book 5 after cancel: %v", err)
	}
	if got := f.inv.booked(t, f.event.ID); got != 5 {
		t.Errorf("booked = %d, want 5", got)
	}
	if got := f.repo.confirmedQuantity(f.event.ID); got != 5 {
		t.Errorf("confirmed quantity = %d, want counter to match", got)
	}
}

func TestBook_ConcurrentRequestsNeverOversell(t *testing.T) {
	f := newFixture(t, 10, nil)

	const workers = 2
	var wg sync.WaitGroup
	errs := make([]error, workers)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.book(&auth.Identity{UserID: primitive.NewObjectID().Hex(), Role: model.RoleStandard}, 6)
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case !apperrors.HasCode(err, apperrors.CodeCapacityExceeded):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("%d bookings succeeded, want exactly 1", succeeded)
	}
	if got := f.inv.booked(t, f.event.ID); got != 6 {
		t.Errorf("booked = %d, want 6", got)
	}
}

func TestBook_ManyConcurrentSmallBookings(t *testing.T) {
	f := newFixture(t, 25, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.book(alice, 1)
		}()
	}
	wg.Wait()

	if got := f.inv.booked(t, f.event.ID); got != 25 {
		t.Errorf("booked = %d, want capacity 25", got)
	}
	if got := f.repo.confirmedQuantity(f.event.ID); got != 25 {
		t.Errorf("confirmed quantity = %d, want 25", got)
	}
}

func TestBook_CapturesPrice(t *testing.T) {
	f := newFixture(t, 10, nil)

	booking, err := f.book(alice, 3)
	if err != nil {
		t.Fatal(err)
	}
	if booking.UnitPrice != 25 || booking.TotalPrice != 75 {
		t.Fatalf("unit=%v total=%v, want 25 and 75", booking.UnitPrice, booking.TotalPrice)
	}
	if booking.Status != model.BookingConfirmed || booking.UserID != alice.UserID {
		t.Errorf("unexpected booking: %+v", booking)
	}

	f.inv.mu.Lock()
	f.inv.events[f.event.ID].Price = 99
	f.inv.mu.Unlock()

	stored, err := f.svc.GetByID(context.Background(), alice, booking.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.TotalPrice != 75 {
		t.Errorf("total price changed after event price update: %v", stored.TotalPrice)
	}
	if len(f.pub.events) != 1 || f.pub.events[0] != "booking.confirmed" {
		t.Errorf("published %v, want one booking.confirmed", f.pub.events)
	}
}

func TestBook_Errors(t *testing.T) {
	f := newFixture(t, 10, nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		identity *auth.Identity
		eventID  string
		quantity int
		code     string
	}{
		{"anonymous", nil, f.event.ID, 1, apperrors.CodeUnauthorized},
		{"zero quantity", alice, f.event.ID, 0, apperrors.CodeValidation},
		{"negative quantity", alice, f.event.ID, -2, apperrors.CodeValidation},
		{"over per-booking max", alice, f.event.ID, 101, apperrors.CodeValidation},
		{"unknown event", alice, primitive.NewObjectID().Hex(), 1, apperrors.CodeNotFound},
		{"over capacity", alice, f.event.ID, 11, apperrors.CodeCapacityExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Book(ctx, tt.identity, tt.eventID, &model.BookingRequest{Quantity: tt.quantity})
			assertCode(t, err, tt.code)
		})
	}
	if got := f.inv.booked(t, f.event.ID); got != 0 {
		t.Errorf("rejected bookings changed counter to %d", got)
	}
}

func TestBook_RequiresApprovedEvent(t *testing.T) {
	for _, status := range []model.EventStatus{model.EventPending, model.EventRejected} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t, 10, nil)
			f.inv.events[f.event.ID].Status = status

			_, err := f.book(alice, 1)
			assertCode(t, err, apperrors.CodeValidation)
		})
	}
}

func TestBook_InsertFailureRollsBackReservation(t *testing.T) {
	f := newFixture(t, 10, withSnapshots)
	f.repo.createErr = errors.New("write conflict")

	_, err := f.book(alice, 4)
	assertCode(t, err, apperrors.CodeInternal)
	if got := f.inv.booked(t, f.event.ID); got != 0 {
		t.Errorf("booked = %d after rollback, want 0", got)
	}
	if len(f.pub.events) != 0 {
		t.Errorf("nothing should be published for a failed booking, got %v", f.pub.events)
	}
}

func TestBook_PublishFailureKeepsBooking(t *testing.T) {
	f := newFixture(t, 10, nil)
	f.pub.err = errors.New("broker down")

	booking, err := f.book(alice, 2)
	if err != nil {
		t.Fatalf("publish failure must not fail the booking: %v", err)
	}
	if _, err := f.svc.GetByID(context.Background(), alice, booking.ID); err != nil {
		t.Errorf("booking should be stored: %v", err)
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t, 10, withSnapshots)
	ctx := context.Background()
	booking, err := f.book(alice, 4)
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.svc.Cancel(ctx, bob, booking.ID)
	assertCode(t, err, apperrors.CodeForbidden)

	cancelled, err := f.svc.Cancel(ctx, alice, booking.ID)
	if err != nil {
		t.Fatalf("Cancel() error: %v", err)
	}
	if cancelled.Status != model.BookingCancelled || cancelled.CancelledAt == nil {
		t.Errorf("unexpected cancelled booking: %+v", cancelled)
	}
	if cancelled.TotalPrice != booking.TotalPrice {
		t.Errorf("cancel changed total price: %v", cancelled.TotalPrice)
	}
	if got := f.inv.booked(t, f.event.ID); got != 0 {
		t.Errorf("booked = %d, want 0", got)
	}

	_, err = f.svc.Cancel(ctx, alice, booking.ID)
	assertCode(t, err, apperrors.CodeAlreadyCancelled)
	if got := f.inv.booked(t, f.event.ID); got != 0 {
		t.Errorf("second cancel released again: booked = %d", got)
	}

	if len(f.pub.events) != 2 || f.pub.events[1] != "booking.cancelled" {
		t.Errorf("published %v", f.pub.events)
	}
}

func TestCancel_ByAdmin(t *testing.T) {
	f := newFixture(t, 10, nil)
	booking, err := f.book(alice, 2)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.Cancel(context.Background(), admin, booking.ID); err != nil {
		t.Errorf("admin cancel: %v", err)
	}
}

func TestCancel_ConcurrentOnlyOnce(t *testing.T) {
	f := newFixture(t, 10, nil)
	booking, err := f.book(alice, 5)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	results := make([]error, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.svc.Cancel(context.Background(), alice, booking.ID)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range results {
		if err == nil {
			ok++
		} else if !apperrors.HasCode(err, apperrors.CodeAlreadyCancelled) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("%d cancels succeeded, want 1", ok)
	}
	if got := f.inv.booked(t, f.event.ID); got != 0 {
		t.Errorf("booked = %d, want 0", got)
	}
}

func TestCancel_DeletedEventIsTolerated(t *testing.T) {
	f := newFixture(t, 10, nil)
	booking, err := f.book(alice, 2)
	if err != nil {
		t.Fatal(err)
	}
	f.inv.mu.Lock()
	delete(f.inv.events, f.event.ID)
	f.inv.mu.Unlock()

	if _, err := f.svc.Cancel(context.Background(), alice, booking.ID); err != nil {
		t.Errorf("cancel after event deletion: %v", err)
	}
}

func TestGetByID_Ownership(t *testing.T) {
	f := newFixture(t, 10, nil)
	ctx := context.Background()
	booking, err := f.book(alice, 1)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.GetByID(ctx, alice, booking.ID); err != nil {
		t.Errorf("owner: %v", err)
	}
	if _, err := f.svc.GetByID(ctx, admin, booking.ID); err != nil {
		t.Errorf("admin: %v", err)
	}
	_, err = f.svc.GetByID(ctx, bob, booking.ID)
	assertCode(t, err, apperrors.CodeForbidden)

	_, err = f.svc.GetByID(ctx, alice, primitive.NewObjectID().Hex())
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestListForUserAndEvent(t *testing.T) {
	f := newFixture(t, 10, nil)
	ctx := context.Background()
	for _, who := range []*auth.Identity{alice, alice, bob} {
		if _, err := f.book(who, 1); err != nil {
			t.Fatal(err)
		}
	}

	mine, err := f.svc.ListForUser(ctx, alice)
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 2 {
		t.Errorf("alice has %d bookings, want 2", len(mine))
	}

	all, err := f.svc.ListForEvent(ctx, organizer, f.event.ID)
	if err != nil {
		t.Fatalf("organizer list: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("event has %d bookings, want 3", len(all))
	}

	_, err = f.svc.ListForEvent(ctx, alice, f.event.ID)
	assertCode(t, err, apperrors.CodeForbidden)

	if _, err := f.svc.ListForEvent(ctx, admin, f.event.ID); err != nil {
		t.Errorf("admin list: %v", err)
	}
}
