package booking

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/skybooking/internal/database"
	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/kafka"
	"github.com/Domenick1991/skybooking/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type BookingUseCase interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error)
	GetBooking(ctx context.Context, id string) (*domain.Booking, error)
	SearchBookings(ctx context.Context, filter domain.BookingFilter) (*domain.BookingPage, error)
	UpdateBooking(ctx context.Context, id string, input UpdateBookingInput) (*domain.Booking, error)
	CancelBooking(ctx context.Context, id string) (*domain.Booking, error)
	DeleteBooking(ctx context.Context, id string) (*domain.Booking, error)
	PurgeBooking(ctx context.Context, id string) error
	ListPayments(ctx context.Context, id string) ([]domain.Payment, error)
}

// PromoValidator is the read-only side of the promo ledger.
type PromoValidator interface {
	Validate(ctx context.Context, code string) (*domain.PromoCode, error)
}

type Cache interface {
	InvalidateFlights(ctx context.Context, flightID int64) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type BookingService struct {
	tx                 database.Transactor
	bookings           repository.BookingRepository
	flights            repository.FlightRepository
	payments           repository.PaymentRepository
	promos             PromoValidator
	cache              Cache
	producer           Producer
	bookingTopic       string
	notificationsTopic string
	minCharge          int64
	now                func() time.Time
}

type CreateBookingInput struct {
	UserID     string
	FlightID   int64
	TotalPrice int64
	PromoCode  string
}

// UpdateBookingInput is a partial update. Nil fields are left unchanged.
type UpdateBookingInput struct {
	Status        *domain.BookingStatus
	PaymentStatus *domain.PaymentStatus
	TotalPrice    *int64
}

type BookingServiceOption func(*BookingService)

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

func WithCache(cache Cache) BookingServiceOption {
	return func(s *BookingService) {
		s.cache = cache
	}
}

// WithMinChargeAmount rejects promo codes that discount a booking below the smallest chargeable amount.
func WithMinChargeAmount(amount int64) BookingServiceOption {
	return func(s *BookingService) {
		s.minCharge = amount
	}
}

func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		s.now = now
	}
}

func NewBookingService(
	tx database.Transactor,
	bookings repository.BookingRepository,
	flights repository.FlightRepository,
	payments repository.PaymentRepository,
	promos PromoValidator,
	producer Producer,
	bookingTopic string,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		tx:           tx,
		bookings:     bookings,
		flights:      flights,
		payments:     payments,
		promos:       promos,
		producer:     producer,
		bookingTopic: bookingTopic,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// CreateBooking reserves a seat and stores a Pending/Unpaid booking. A promo code is
// validated and priced in, but only redeemed once the payment succeeds.
func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	if input.UserID == "" {
		return nil, domain.Validation("user id is required")
	}
	if input.FlightID <= 0 {
		return nil, domain.Validation("flight id must be positive")
	}
	if input.TotalPrice < 0 {
		return nil, domain.Validation("total price must not be negative")
	}

	now := s.now()
	booking := &domain.Booking{
		ID:            uuid.NewString(),
		UserID:        input.UserID,
		FlightID:      input.FlightID,
		BookingTime:   now,
		OriginalPrice: input.TotalPrice,
		TotalPrice:    input.TotalPrice,
		PromoStatus:   domain.PromoStatusNone,
		Status:        domain.BookingStatusPending,
		PaymentStatus: domain.PaymentStatusUnpaid,
	}

	if code := domain.NormalizeCode(input.PromoCode); code != "" {
		promo, err := s.promos.Validate(ctx, code)
		if err != nil {
			return nil, err
		}
		booking.PromoCode = promo.Code
		booking.PromoStatus = domain.PromoStatusPending
		booking.TotalPrice = promo.DiscountedPrice(input.TotalPrice)
		if booking.TotalPrice < s.minCharge {
			return nil, domain.ErrDiscountBelowMinimum
		}
	}

	err := s.tx.InTx(ctx, func(q database.TxQuerier) error {
		if err := s.flights.ReserveSeat(ctx, q, booking.FlightID); err != nil {
			return err
		}
		return s.bookings.Create(ctx, q, booking)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, booking.FlightID)
	s.publish(ctx, kafka.EventBookingCreated, booking)
	log.Info().Str("booking_id", booking.ID).Int64("flight_id", booking.FlightID).Int64("total_price", booking.TotalPrice).Msg("booking created")
	return booking, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	return s.bookings.GetByID(ctx, id)
}

func (s *BookingService) SearchBookings(ctx context.Context, filter domain.BookingFilter) (*domain.BookingPage, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, domain.Validation("to must not be before from")
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MaxPrice < *filter.MinPrice {
		return nil, domain.Validation("maxPrice must not be below minPrice")
	}
	if filter.SortBy != "" {
		if _, ok := domain.BookingSortColumns[filter.SortBy]; !ok {
			return nil, domain.Validation("unsupported sort field " + filter.SortBy)
		}
	}
	return s.bookings.Search(ctx, filter)
}

// UpdateBooking applies status, paymentStatus and price changes through the state machine.
// Paid is reserved for payment settlement; cancellation goes through the cancel path.
func (s *BookingService) UpdateBooking(ctx context.Context, id string, input UpdateBookingInput) (*domain.Booking, error) {
	current, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Status != nil && *input.Status == domain.BookingStatusCancelled && current.Status != domain.BookingStatusCancelled {
		if input.PaymentStatus != nil || input.TotalPrice != nil {
			return nil, domain.Validation("cancellation cannot be combined with other changes")
		}
		return s.cancel(ctx, current)
	}

	next := *current
	if input.Status != nil && *input.Status != current.Status {
		if !input.Status.Valid() {
			return nil, domain.Validation("unknown booking status " + string(*input.Status))
		}
		if !current.Status.CanTransitionTo(*input.Status) {
			return nil, domain.ErrIllegalTransition
		}
		next.Status = *input.Status
	}
	if input.PaymentStatus != nil && *input.PaymentStatus != current.PaymentStatus {
		if !input.PaymentStatus.Valid() {
			return nil, domain.Validation("unknown payment status " + string(*input.PaymentStatus))
		}
		if !current.PaymentStatus.CanTransitionTo(*input.PaymentStatus) || *input.PaymentStatus == domain.PaymentStatusPaid {
			return nil, domain.ErrIllegalTransition
		}
		next.PaymentStatus = *input.PaymentStatus
	}
	if input.TotalPrice != nil && *input.TotalPrice != current.TotalPrice {
		if *input.TotalPrice < 0 {
			return nil, domain.Validation("total price must not be negative")
		}
		if !current.Payable() {
			return nil, domain.ErrBookingNotPayable
		}
		next.TotalPrice = *input.TotalPrice
	}
	if next == *current {
		return current, nil
	}

	updated, err := s.bookings.CompareAndSwap(ctx, nil, current, &next)
	if err != nil {
		return nil, err
	}
	eventType := kafka.EventBookingUpdated
	if updated.Status == domain.BookingStatusConfirmed && current.Status != domain.BookingStatusConfirmed {
		eventType = kafka.EventBookingConfirmed
	}
	s.publish(ctx, eventType, updated)
	return updated, nil
}

// CancelBooking is idempotent. A paid booking moves to Refunded.
func (s *BookingService) CancelBooking(ctx context.Context, id string) (*domain.Booking, error) {
	current, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == domain.BookingStatusCancelled {
		return current, nil
	}
	return s.cancel(ctx, current)
}

// DeleteBooking removes the booking from active views by cancelling it. History is kept.
func (s *BookingService) DeleteBooking(ctx context.Context, id string) (*domain.Booking, error) {
	return s.CancelBooking(ctx, id)
}

// PurgeBooking physically deletes a cancelled booking that never had a successful payment.
func (s *BookingService) PurgeBooking(ctx context.Context, id string) error {
	if err := s.bookings.Purge(ctx, id); err != nil {
		return err
	}
	log.Info().Str("booking_id", id).Msg("booking purged")
	return nil
}

func (s *BookingService) ListPayments(ctx context.Context, id string) ([]domain.Payment, error) {
	if _, err := s.bookings.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.payments.ListByBooking(ctx, id)
}

func (s *BookingService) cancel(ctx context.Context, current *domain.Booking) (*domain.Booking, error) {
	next := *current
	next.Status = domain.BookingStatusCancelled
	if current.PaymentStatus == domain.PaymentStatusPaid {
		next.PaymentStatus = domain.PaymentStatusRefunded
	}

	var updated *domain.Booking
	err := s.tx.InTx(ctx, func(q database.TxQuerier) error {
		var err error
		updated, err = s.bookings.CompareAndSwap(ctx, q, current, &next)
		if err != nil {
			return err
		}
		return s.flights.ReleaseSeat(ctx, q, current.FlightID)
	})
	if err != nil {
		if errors.Is(err, domain.ErrBookingModified) {
			log.Warn().Str("booking_id", current.ID).Msg("cancel lost a race with a concurrent update")
		}
		return nil, err
	}

	s.invalidate(ctx, updated.FlightID)
	s.publish(ctx, kafka.EventBookingCancelled, updated)
	if updated.PaymentStatus == domain.PaymentStatusRefunded {
		s.publish(ctx, kafka.EventBookingRefunded, updated)
	}
	return updated, nil
}

func (s *BookingService) invalidate(ctx context.Context, flightID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateFlights(ctx, flightID); err != nil {
		log.Warn().Err(err).Int64("flight_id", flightID).Msg("failed to invalidate flights cache")
	}
}

func (s *BookingService) publish(ctx context.Context, eventType string, booking *domain.Booking) {
	if s.producer == nil || s.bookingTopic == "" {
		return
	}
	event := kafka.BookingEvent{
		Type:          eventType,
		BookingID:     booking.ID,
		UserID:        booking.UserID,
		FlightID:      booking.FlightID,
		TotalPrice:    booking.TotalPrice,
		PromoCode:     booking.PromoCode,
		PromoStatus:   string(booking.PromoStatus),
		Status:        string(booking.Status),
		PaymentStatus: string(booking.PaymentStatus),
		OccurredAt:    s.now(),
	}
	if err := s.producer.Publish(ctx, s.bookingTopic, booking.ID, event); err != nil {
		log.Warn().Err(err).Str("booking_id", booking.ID).Str("event", eventType).Msg("failed to publish booking event")
		return
	}
	if s.notificationsTopic != "" {
		if err := s.producer.Publish(ctx, s.notificationsTopic, booking.ID, event); err != nil {
			log.Warn().Err(err).Str("booking_id", booking.ID).Str("event", eventType).Msg("failed to publish notification")
		}
	}
}

var _ BookingUseCase = (*BookingService)(nil)
