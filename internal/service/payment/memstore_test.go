package payment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Domenick1991/skybooking/internal/audit"
	"github.com/Domenick1991/skybooking/internal/database"
	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/kafka"
)

// memStore is an in-memory stand-in for the three tables touched by settlement.
// InTx serializes units of work and restores a snapshot when fn fails.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	bookings map[string]*domain.Booking
	payments map[string]*domain.Payment
	promos   map[string]*domain.PromoCode

	failSetPromoStatus error
}

func newMemStore() *memStore {
	return &memStore{
		bookings: map[string]*domain.Booking{},
		payments: map[string]*domain.Payment{},
		promos:   map[string]*domain.PromoCode{},
	}
}

func (s *memStore) InTx(ctx context.Context, fn func(q database.TxQuerier) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	bookings, payments, promos := cloneMap(s.bookings), cloneMap(s.payments), cloneMap(s.promos)
	s.mu.Unlock()

	if err := fn(nil); err != nil {
		s.mu.Lock()
		s.bookings, s.payments, s.promos = bookings, payments, promos
		s.mu.Unlock()
		return err
	}
	return nil
}

func cloneMap[T any](m map[string]*T) map[string]*T {
	out := make(map[string]*T, len(m))
	for k, v := range m {
		c := *v
		out[k] = &c
	}
	return out
}

func (s *memStore) booking(id string) domain.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.bookings[id]
}

func (s *memStore) payment(orderID string) domain.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.payments[orderID]
}

func (s *memStore) promo(code string) domain.PromoCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.promos[code]
}

type memBookings struct{ *memStore }

func (r memBookings) Create(ctx context.Context, q database.TxQuerier, b *domain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *b
	r.bookings[b.ID] = &c
	return nil
}

func (r memBookings) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	c := *b
	return &c, nil
}

func (r memBookings) Search(ctx context.Context, f domain.BookingFilter) (*domain.BookingPage, error) {
	return &domain.BookingPage{}, nil
}

func (r memBookings) CompareAndSwap(ctx context.Context, q database.TxQuerier, current, next *domain.Booking) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[current.ID]
	if !ok || b.Status != current.Status || b.PaymentStatus != current.PaymentStatus || b.PromoStatus != current.PromoStatus {
		return nil, domain.ErrBookingModified
	}
	c := *next
	r.bookings[c.ID] = &c
	out := c
	return &out, nil
}

func (r memBookings) MarkPaid(ctx context.Context, q database.TxQuerier, id string) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok || b.PaymentStatus != domain.PaymentStatusUnpaid || b.Status == domain.BookingStatusCancelled {
		return nil, domain.ErrBookingNotPayable
	}
	b.PaymentStatus = domain.PaymentStatusPaid
	if b.Status == domain.BookingStatusPending {
		b.Status = domain.BookingStatusConfirmed
	}
	c := *b
	return &c, nil
}

func (r memBookings) SetPromoStatus(ctx context.Context, q database.TxQuerier, id string, status domain.PromoStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSetPromoStatus != nil {
		return r.failSetPromoStatus
	}
	b, ok := r.bookings[id]
	if !ok {
		return domain.ErrBookingNotFound
	}
	b.PromoStatus = status
	return nil
}

func (r memBookings) Purge(ctx context.Context, id string) error {
	return nil
}

type memPayments struct{ *memStore }

func (r memPayments) Create(ctx context.Context, p *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.payments[p.OrderID]; ok {
		return domain.ErrDuplicateOrderID
	}
	p.CreatedAt = time.Now()
	c := *p
	r.payments[p.OrderID] = &c
	return nil
}

func (r memPayments) GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[orderID]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	c := *p
	return &c, nil
}

func (r memPayments) LockByOrderID(ctx context.Context, q database.TxQuerier, orderID string) (*domain.Payment, error) {
	return r.GetByOrderID(ctx, orderID)
}

func (r memPayments) Settle(ctx context.Context, q database.TxQuerier, p *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.payments[p.OrderID]
	if !ok || stored.Status != domain.PaymentPending {
		return domain.ErrPaymentSettled
	}
	c := *p
	r.payments[p.OrderID] = &c
	return nil
}

func (r memPayments) ListByBooking(ctx context.Context, bookingID string) ([]domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Payment, 0)
	for _, p := range r.payments {
		if p.BookingID == bookingID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out, nil
}

func (r memPayments) ListUnreconciled(ctx context.Context, limit int) ([]domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Payment, 0)
	for _, p := range r.payments {
		b := r.bookings[p.BookingID]
		if p.Status == domain.PaymentSuccess && b != nil && b.PaymentStatus == domain.PaymentStatusUnpaid && b.Status != domain.BookingStatusCancelled {
			out = append(out, *p)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type memPromos struct{ *memStore }

func (r memPromos) Insert(ctx context.Context, code *domain.PromoCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *code
	r.promos[code.Code] = &c
	return nil
}

func (r memPromos) GetByID(ctx context.Context, id string) (*domain.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.promos {
		if p.ID == id {
			c := *p
			return &c, nil
		}
	}
	return nil, domain.ErrPromoCodeNotFound
}

func (r memPromos) FindValid(ctx context.Context, code string, now time.Time) (*domain.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.promos[code]
	if !ok || !p.Redeemable(now) {
		return nil, domain.ErrPromoCodeNotFound
	}
	c := *p
	return &c, nil
}

func (r memPromos) Redeem(ctx context.Context, q database.TxQuerier, code string, now time.Time) (*domain.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.promos[code]
	if !ok || !p.Redeemable(now) {
		return nil, domain.ErrPromoCodeNotFound
	}
	p.UsedCount++
	c := *p
	return &c, nil
}

func (r memPromos) SetActive(ctx context.Context, id string, active bool) (*domain.PromoCode, error) {
	return nil, domain.ErrPromoCodeNotFound
}

func (r memPromos) Update(ctx context.Context, id string, patch domain.PromoPatch) (*domain.PromoCode, error) {
	return nil, domain.ErrPromoCodeNotFound
}

type recordingProducer struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := value.(kafka.PaymentEvent); ok {
		p.events = append(p.events, e.Type)
	}
	return nil
}

func (p *recordingProducer) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

type memAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (a *memAudit) Record(ctx context.Context, e audit.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

func (a *memAudit) ListByOrderID(ctx context.Context, orderID string) ([]audit.Entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]audit.Entry, 0)
	for _, e := range a.entries {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (a *memAudit) outcomes() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Outcome)
	}
	return out
}
