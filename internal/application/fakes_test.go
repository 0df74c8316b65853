package application

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	bookingDomain "github.com/resbook/service-booking/internal/domain/booking"
	paymentDomain "github.com/resbook/service-booking/internal/domain/payment"
	"github.com/resbook/service-booking/internal/domain/principal"
	resourceDomain "github.com/resbook/service-booking/internal/domain/resource"
	userDomain "github.com/resbook/service-booking/internal/domain/user"
	"github.com/resbook/service-booking/internal/provider"
	"github.com/resbook/service-booking/pkg/domain"
	"github.com/resbook/service-booking/pkg/kafka"
)

// memDB is an in-memory database shared by the fake stores. Transactions
// are serialized and roll back by restoring a snapshot. Stored aggregates
// are private clones, so callers never mutate stored state directly.
type memDB struct {
	txMu sync.Mutex

	mu        sync.Mutex
	resources map[uuid.UUID]*resourceDomain.Resource
	bookings  map[uuid.UUID]*bookingDomain.Booking
	payments  map[uuid.UUID]*paymentDomain.Payment
	users     map[uuid.UUID]*userDomain.User

	bookingUpdates int
	resourceLocks  int
}

func newMemDB() *memDB {
	return &memDB{
		resources: map[uuid.UUID]*resourceDomain.Resource{},
		bookings:  map[uuid.UUID]*bookingDomain.Booking{},
		payments:  map[uuid.UUID]*paymentDomain.Payment{},
		users:     map[uuid.UUID]*userDomain.User{},
	}
}

type memTxKey struct{}

func (db *memDB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	// Beginning a transaction on a cancelled context fails, as BeginTx does.
	if err := ctx.Err(); err != nil {
		return err
	}
	db.txMu.Lock()
	defer db.txMu.Unlock()

	restore := db.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		restore()
		return err
	}
	return nil
}

func (db *memDB) snapshot() func() {
	db.mu.Lock()
	defer db.mu.Unlock()
	resources := copyMap(db.resources)
	bookings := copyMap(db.bookings)
	payments := copyMap(db.payments)
	return func() {
		db.mu.Lock()
		defer db.mu.Unlock()
		db.resources = resources
		db.bookings = bookings
		db.payments = payments
	}
}

func copyMap[V any](m map[uuid.UUID]V) map[uuid.UUID]V {
	out := make(map[uuid.UUID]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// --- clones ---

func cloneBooking(b *bookingDomain.Booking) *bookingDomain.Booking {
	var paidAt *time.Time
	if b.PaidAt() != nil {
		t := *b.PaidAt()
		paidAt = &t
	}
	var paidBy *string
	if b.PaidBy() != nil {
		s := *b.PaidBy()
		paidBy = &s
	}
	return bookingDomain.ReconstructBooking(
		b.ID(), b.UserID(), b.ResourceID(),
		b.StartTime(), b.EndTime(),
		b.Status(), paidAt, paidBy,
		b.Version(),
		b.CreatedAt(), b.CreatedBy(), b.UpdatedAt(), b.UpdatedBy(),
	)
}

func cloneResource(r *resourceDomain.Resource) *resourceDomain.Resource {
	var desc *string
	if r.Description() != nil {
		d := *r.Description()
		desc = &d
	}
	return resourceDomain.Reconstruct(
		r.ID(), r.Name(), desc, r.IsActive(), r.Version(),
		r.CreatedAt(), r.CreatedBy(), r.UpdatedAt(), r.UpdatedBy(),
	)
}

func clonePayment(p *paymentDomain.Payment) *paymentDomain.Payment {
	var payload json.RawMessage
	if p.Payload() != nil {
		payload = append(json.RawMessage(nil), p.Payload()...)
	}
	return paymentDomain.Reconstruct(
		p.ID(), p.BookingID(), p.Provider(), p.Type(), p.Status(),
		p.Amount(), p.Currency(), payload, p.Version(),
		p.CreatedAt(), p.UpdatedAt(),
	)
}

// --- booking store ---

type memBookings struct{ db *memDB }

func (s memBookings) FindByID(_ context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	b, ok := s.db.bookings[id]
	if !ok {
		return nil, bookingDomain.NewNotFoundError(id)
	}
	return cloneBooking(b), nil
}

func (s memBookings) FindByUserID(_ context.Context, userID uuid.UUID) ([]*bookingDomain.Booking, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*bookingDomain.Booking
	for _, b := range s.db.bookings {
		if b.UserID() == userID {
			out = append(out, cloneBooking(b))
		}
	}
	sortByStartDesc(out)
	return out, nil
}

func (s memBookings) FindAllOrderByStartDesc(_ context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	all := make([]*bookingDomain.Booking, 0, len(s.db.bookings))
	for _, b := range s.db.bookings {
		all = append(all, cloneBooking(b))
	}
	sortByStartDesc(all)

	total := int64(len(all))
	from := (page - 1) * limit
	if from >= len(all) {
		return []*bookingDomain.Booking{}, total, nil
	}
	to := from + limit
	if to > len(all) {
		to = len(all)
	}
	return all[from:to], total, nil
}

func (s memBookings) FindConflicts(_ context.Context, resourceID uuid.UUID, start, end time.Time, statuses []bookingDomain.BookingStatus) ([]*bookingDomain.Booking, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*bookingDomain.Booking
	for _, b := range s.db.bookings {
		if b.ResourceID() != resourceID || !b.Overlaps(start, end) {
			continue
		}
		for _, st := range statuses {
			if b.Status() == st {
				out = append(out, cloneBooking(b))
				break
			}
		}
	}
	return out, nil
}

func (s memBookings) CountByStatus(context.Context) (map[string]int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	counts := map[string]int64{}
	for _, b := range s.db.bookings {
		counts[b.Status().String()]++
	}
	return counts, nil
}

func (s memBookings) Save(_ context.Context, b *bookingDomain.Booking) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.checkOverlap(b); err != nil {
		return err
	}
	s.db.bookings[b.ID()] = cloneBooking(b)
	return nil
}

func (s memBookings) Update(_ context.Context, b *bookingDomain.Booking) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	stored, ok := s.db.bookings[b.ID()]
	if !ok || stored.Version() != b.Version()-1 {
		return domain.NewConflictError("booking was modified by another transaction")
	}
	if err := s.checkOverlap(b); err != nil {
		return err
	}
	s.db.bookings[b.ID()] = cloneBooking(b)
	s.db.bookingUpdates++
	return nil
}

// checkOverlap mirrors the database exclusion constraint.
func (s memBookings) checkOverlap(b *bookingDomain.Booking) error {
	if !b.Status().Blocks() {
		return nil
	}
	for id, other := range s.db.bookings {
		if id == b.ID() || other.ResourceID() != b.ResourceID() || !other.Status().Blocks() {
			continue
		}
		if other.Overlaps(b.StartTime(), b.EndTime()) {
			return bookingDomain.ErrOverlapViolation
		}
	}
	return nil
}

func sortByStartDesc(bs []*bookingDomain.Booking) {
	sort.Slice(bs, func(i, j int) bool { return bs[i].StartTime().After(bs[j].StartTime()) })
}

// --- resource store ---

type memResources struct{ db *memDB }

func (s memResources) FindByID(_ context.Context, id uuid.UUID) (*resourceDomain.Resource, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	r, ok := s.db.resources[id]
	if !ok {
		return nil, resourceDomain.NewNotFoundError(id)
	}
	return cloneResource(r), nil
}

func (s memResources) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*resourceDomain.Resource, error) {
	s.db.mu.Lock()
	s.db.resourceLocks++
	s.db.mu.Unlock()
	return s.FindByID(ctx, id)
}

func (s memResources) FindByActive(_ context.Context, active bool) ([]*resourceDomain.Resource, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*resourceDomain.Resource
	for _, r := range s.db.resources {
		if r.IsActive() == active {
			out = append(out, cloneResource(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

func (s memResources) FindAll(_ context.Context) ([]*resourceDomain.Resource, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := make([]*resourceDomain.Resource, 0, len(s.db.resources))
	for _, r := range s.db.resources {
		out = append(out, cloneResource(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

func (s memResources) Save(_ context.Context, r *resourceDomain.Resource) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.resources[r.ID()] = cloneResource(r)
	return nil
}

func (s memResources) Update(_ context.Context, r *resourceDomain.Resource) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	stored, ok := s.db.resources[r.ID()]
	if !ok || stored.Version() != r.Version()-1 {
		return domain.NewConflictError("resource was modified by another transaction")
	}
	s.db.resources[r.ID()] = cloneResource(r)
	return nil
}

// --- payment store ---

type memPayments struct{ db *memDB }

func (s memPayments) FindByID(_ context.Context, id uuid.UUID) (*paymentDomain.Payment, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.payments[id]
	if !ok {
		return nil, domain.NewNotFoundError("Payment", id.String())
	}
	return clonePayment(p), nil
}

func (s memPayments) FindByBookingID(_ context.Context, bookingID uuid.UUID) ([]*paymentDomain.Payment, error) {
	return s.filter(func(p *paymentDomain.Payment) bool { return p.BookingID() == bookingID }), nil
}

func (s memPayments) FindByUserID(_ context.Context, userID uuid.UUID) ([]*paymentDomain.Payment, error) {
	s.db.mu.Lock()
	owners := map[uuid.UUID]uuid.UUID{}
	for id, b := range s.db.bookings {
		owners[id] = b.UserID()
	}
	s.db.mu.Unlock()
	return s.filter(func(p *paymentDomain.Payment) bool { return owners[p.BookingID()] == userID }), nil
}

func (s memPayments) FindAll(context.Context) ([]*paymentDomain.Payment, error) {
	return s.filter(func(*paymentDomain.Payment) bool { return true }), nil
}

func (s memPayments) filter(keep func(*paymentDomain.Payment) bool) []*paymentDomain.Payment {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*paymentDomain.Payment
	for _, p := range s.db.payments {
		if keep(p) {
			out = append(out, clonePayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().Before(out[j].CreatedAt()) })
	return out
}

func (s memPayments) Save(_ context.Context, p *paymentDomain.Payment) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.payments[p.ID()] = clonePayment(p)
	return nil
}

func (s memPayments) Update(_ context.Context, p *paymentDomain.Payment) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	stored, ok := s.db.payments[p.ID()]
	if !ok || stored.Version() != p.Version()-1 {
		return domain.NewConflictError("payment was modified by another transaction")
	}
	s.db.payments[p.ID()] = clonePayment(p)
	return nil
}

// --- user store ---

type memUsers struct{ db *memDB }

func (s memUsers) FindByID(_ context.Context, id uuid.UUID) (*userDomain.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return nil, domain.NewNotFoundError("User", id.String())
	}
	return u, nil
}

func (s memUsers) FindByEmail(_ context.Context, email string) (*userDomain.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.users {
		if u.Email() == email {
			return u, nil
		}
	}
	return nil, domain.NewNotFoundError("User", email)
}

// --- publisher ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.CloudEvent
	topics []string
}

func (p *recordingPublisher) PublishEvent(_ context.Context, topic string, event kafka.CloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// --- provider ---

// scriptedClient returns a fixed outcome and can run a hook mid-charge.
type scriptedClient struct {
	provider paymentDomain.Provider
	ok       bool
	err      error
	onCharge func(ctx context.Context)

	mu    sync.Mutex
	calls int
}

func (c *scriptedClient) Provider() paymentDomain.Provider { return c.provider }

func (c *scriptedClient) Charge(ctx context.Context, _ decimal.Decimal, _ string, _ json.RawMessage) (bool, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.onCharge != nil {
		c.onCharge(ctx)
	}
	return c.ok, c.err
}

func (c *scriptedClient) Cancel(context.Context, json.RawMessage) (bool, error) { return true, nil }

// --- fixture ---

type fixture struct {
	db        *memDB
	publisher *recordingPublisher
	bookings  *BookingService
	payments  *PaymentService
	resources *ResourceService

	alice principal.Principal
	bob   principal.Principal
	admin principal.Principal
}

func newFixture(clients ...paymentDomain.ProviderClient) *fixture {
	db := newMemDB()
	pub := &recordingPublisher{}
	log := zap.NewNop()

	if len(clients) == 0 {
		clients = []paymentDomain.ProviderClient{provider.NewCardClient(), provider.NewPaypalClient()}
	}
	registry := provider.NewRegistry(log, clients...)

	engine := NewBookingService(db, memBookings{db}, memResources{db}, memUsers{db}, pub, log)
	f := &fixture{
		db:        db,
		publisher: pub,
		bookings:  engine,
		payments:  NewPaymentService(db, memPayments{db}, memBookings{db}, engine, registry, pub, log),
		resources: NewResourceService(memResources{db}, log),
		alice:     principal.New(uuid.New(), "alice@example.com", false),
		bob:       principal.New(uuid.New(), "bob@example.com", false),
		admin:     principal.New(uuid.New(), "admin@example.com", true),
	}
	f.addUser(f.alice, userDomain.RoleUser)
	f.addUser(f.bob, userDomain.RoleUser)
	f.addUser(f.admin, userDomain.RoleAdmin)
	return f
}

func (f *fixture) addUser(p principal.Principal, role userDomain.Role) {
	f.db.users[p.UserID] = userDomain.Reconstruct(p.UserID, p.Email, role)
}

func (f *fixture) addResource(active bool) uuid.UUID {
	r, err := resourceDomain.NewResource("Room "+uuid.NewString()[:8], nil, "seed")
	if err != nil {
		panic(err)
	}
	if !active {
		r.Deactivate("seed")
	}
	f.db.resources[r.ID()] = cloneResource(r)
	return r.ID()
}

func (f *fixture) bookingStatus(id uuid.UUID) bookingDomain.BookingStatus {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.bookings[id].Status()
}

func (f *fixture) storedBooking(id uuid.UUID) *bookingDomain.Booking {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return cloneBooking(f.db.bookings[id])
}

func (f *fixture) paymentsFor(bookingID uuid.UUID) []*paymentDomain.Payment {
	return memPayments{f.db}.filter(func(p *paymentDomain.Payment) bool { return p.BookingID() == bookingID })
}

var slotStart = time.Date(2030, 1, 10, 9, 0, 0, 0, time.UTC)

func slot(offsetHours, lengthHours int) (time.Time, time.Time) {
	start := slotStart.Add(time.Duration(offsetHours) * time.Hour)
	return start, start.Add(time.Duration(lengthHours) * time.Hour)
}

func (f *fixture) draft(p principal.Principal, resourceID uuid.UUID, offsetHours, lengthHours int) *BookingDTO {
	start, end := slot(offsetHours, lengthHours)
	dto, err := f.bookings.CreateDraft(context.Background(), p, CreateBookingRequest{
		ResourceID: resourceID,
		StartTime:  start,
		EndTime:    end,
	})
	if err != nil {
		panic(err)
	}
	return dto
}

func cardPayment(bookingID uuid.UUID, payload string) StartPaymentRequest {
	return StartPaymentRequest{
		BookingID: bookingID,
		Provider:  "CARD",
		Type:      "INSTANT",
		Amount:    "100.00",
		Currency:  "USD",
		Payload:   payload,
	}
}
