package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Domenick1991/skybooking/internal/audit"
	"github.com/Domenick1991/skybooking/internal/database"
	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/gateway"
	"github.com/Domenick1991/skybooking/internal/kafka"
	"github.com/Domenick1991/skybooking/internal/metrics"
	"github.com/Domenick1991/skybooking/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

type PaymentUseCase interface {
	InitiateCharge(ctx context.Context, input ChargeInput) (*ChargeOutcome, error)
	HandleCallback(ctx context.Context, method domain.PaymentMethod, payload map[string]any) (*CallbackResult, error)
	GetPayment(ctx context.Context, orderID string) (*domain.Payment, error)
	ListCallbacks(ctx context.Context, orderID string) ([]audit.Entry, error)
	RepairPaidBookings(ctx context.Context, limit int) (int, error)
}

type Gateways interface {
	Get(method domain.PaymentMethod) (gateway.Gateway, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

// retryPublisher is implemented by producers that can retry a write.
type retryPublisher interface {
	PublishWithRetry(ctx context.Context, topic, key string, value interface{}, maxRetries int) error
}

const followUpPublishRetries = 3

type ChargeInput struct {
	BookingID string
	// UserID restricts the charge to the booking owner. Empty skips the check.
	UserID    string
	Method    domain.PaymentMethod
	OrderInfo string
	Lang      string
}

type ChargeOutcome struct {
	Payment   *domain.Payment
	PayURL    string
	ShortLink string
}

// CallbackResult is what the IPN endpoint acknowledges. PromoErr is set when the payment
// succeeded but the attached promo code could no longer be redeemed.
type CallbackResult struct {
	OrderID    string
	Status     domain.PaymentRecordStatus
	ResultCode int
	Replayed   bool
	PromoErr   error
}

type Config struct {
	ReturnURL  string
	IPNBaseURL string
	Limits     domain.AmountLimits
	Topic      string
	// NotificationsTopic receives a copy of every payment event when set.
	NotificationsTopic string
	SweepWorkers       int
}

type PaymentService struct {
	tx       database.Transactor
	bookings repository.BookingRepository
	payments repository.PaymentRepository
	promos   repository.PromoCodeRepository
	gateways Gateways
	producer Producer
	audit    audit.Recorder
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	cfg      Config
	now      func() time.Time

	orderMu   sync.Mutex
	lastOrder int64
}

type Option func(*PaymentService)

func WithAudit(r audit.Recorder) Option {
	return func(s *PaymentService) {
		s.audit = r
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *PaymentService) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *PaymentService) {
		s.now = now
	}
}

func NewPaymentService(
	tx database.Transactor,
	bookings repository.BookingRepository,
	payments repository.PaymentRepository,
	promos repository.PromoCodeRepository,
	gateways Gateways,
	producer Producer,
	cfg Config,
	opts ...Option,
) *PaymentService {
	if cfg.Limits == (domain.AmountLimits{}) {
		cfg.Limits = domain.DefaultAmountLimits
	}
	if cfg.SweepWorkers <= 0 {
		cfg.SweepWorkers = 4
	}
	s := &PaymentService{
		tx:       tx,
		bookings: bookings,
		payments: payments,
		promos:   promos,
		gateways: gateways,
		producer: producer,
		audit:    audit.NopRecorder{},
		metrics:  metrics.New(nil),
		tracer:   otel.Tracer("skybooking/payment"),
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InitiateCharge records a PENDING attempt and asks the gateway for a redirect URL.
// Every call is a new attempt with a fresh orderId; a failed or timed out gateway call
// leaves the attempt PENDING and is reported as ErrUpstream.
func (s *PaymentService) InitiateCharge(ctx context.Context, input ChargeInput) (*ChargeOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "payment.initiate_charge")
	defer span.End()
	span.SetAttributes(attribute.String("booking.id", input.BookingID), attribute.String("payment.method", string(input.Method)))

	gw, err := s.gateways.Get(input.Method)
	if err != nil {
		return nil, err
	}
	booking, err := s.bookings.GetByID(ctx, input.BookingID)
	if err != nil {
		return nil, err
	}
	if input.UserID != "" && booking.UserID != input.UserID {
		return nil, domain.ErrBookingNotFound
	}
	if !booking.Payable() {
		return nil, domain.ErrBookingNotPayable
	}
	if err := s.cfg.Limits.Check(booking.TotalPrice); err != nil {
		return nil, err
	}

	p := &domain.Payment{
		ID:        uuid.NewString(),
		BookingID: booking.ID,
		UserID:    booking.UserID,
		Amount:    booking.TotalPrice,
		Method:    input.Method,
		Status:    domain.PaymentPending,
	}
	for attempt := 0; ; attempt++ {
		p.OrderID = s.nextOrderID(gw.OrderPrefix())
		err = s.payments.Create(ctx, p)
		if !errors.Is(err, domain.ErrDuplicateOrderID) || attempt == 2 {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("payment.order_id", p.OrderID))
	s.publish(ctx, kafka.EventPaymentInitiated, p, "")

	orderInfo := input.OrderInfo
	if orderInfo == "" {
		orderInfo = "Payment for booking " + booking.ID
	}
	res, err := gw.Charge(ctx, gateway.ChargeRequest{
		OrderID:   p.OrderID,
		Amount:    p.Amount,
		OrderInfo: orderInfo,
		ReturnURL: s.cfg.ReturnURL,
		IPNURL:    s.ipnURL(input.Method),
		Lang:      input.Lang,
	})
	if err != nil {
		s.metrics.ChargesInitiated.WithLabelValues(string(input.Method), "upstream_error").Inc()
		log.Error().Err(err).Str("order_id", p.OrderID).Str("booking_id", booking.ID).Msg("gateway charge failed, payment left pending")
		if !errors.Is(err, domain.ErrUpstream) {
			err = fmt.Errorf("%w: %v", domain.ErrUpstream, err)
		}
		return nil, err
	}

	s.metrics.ChargesInitiated.WithLabelValues(string(input.Method), "ok").Inc()
	log.Info().Str("order_id", p.OrderID).Str("booking_id", booking.ID).Int64("amount", p.Amount).Msg("charge initiated")
	return &ChargeOutcome{Payment: p, PayURL: res.PayURL, ShortLink: res.ShortLink}, nil
}

// HandleCallback verifies and applies a gateway notification. Replays of a settled
// orderId return the stored outcome. Nothing is written when the signature is invalid.
func (s *PaymentService) HandleCallback(ctx context.Context, method domain.PaymentMethod, payload map[string]any) (*CallbackResult, error) {
	ctx, span := s.tracer.Start(ctx, "payment.handle_callback")
	defer span.End()

	gw, err := s.gateways.Get(method)
	if err != nil {
		return nil, err
	}
	cb, err := gw.VerifyCallback(payload)
	if err != nil {
		s.metrics.Callbacks.WithLabelValues(string(method), "invalid").Inc()
		log.Warn().Err(err).Str("method", string(method)).Msg("rejected payment callback")
		raw := audit.Flatten(payload)
		s.record(ctx, audit.Entry{
			Method:  string(method),
			OrderID: raw["orderId"],
			Outcome: audit.OutcomeInvalidSignature,
			Error:   err.Error(),
			Payload: raw,
		})
		return nil, err
	}
	span.SetAttributes(attribute.String("payment.order_id", cb.OrderID), attribute.Int("payment.result_code", cb.ResultCode))

	var (
		result  *CallbackResult
		settled *domain.Payment
		booking *domain.Booking
	)
	err = s.tx.InTx(ctx, func(q database.TxQuerier) error {
		result, settled, booking = nil, nil, nil

		p, err := s.payments.LockByOrderID(ctx, q, cb.OrderID)
		if err != nil {
			return err
		}
		if p.Method != method {
			return domain.ErrPaymentNotFound
		}
		if p.Status.Terminal() {
			result = &CallbackResult{OrderID: p.OrderID, Status: p.Status, ResultCode: cb.ResultCode, Replayed: true}
			if p.ResultCode != nil {
				result.ResultCode = *p.ResultCode
			}
			return nil
		}

		now := s.now()
		code := cb.ResultCode
		p.TransactionID = cb.TransactionID
		p.ResultCode = &code
		p.PaymentDate = &now
		p.Status = domain.StatusForResultCode(code)
		if p.Status == domain.PaymentSuccess && cb.Amount != p.Amount {
			log.Warn().Str("order_id", p.OrderID).Int64("expected", p.Amount).Int64("got", cb.Amount).Msg("callback amount mismatch")
			p.Status = domain.PaymentFailed
		}

		if p.Status == domain.PaymentSuccess {
			booking, err = s.bookings.MarkPaid(ctx, q, p.BookingID)
			if errors.Is(err, domain.ErrBookingNotPayable) {
				log.Warn().Str("order_id", p.OrderID).Str("booking_id", p.BookingID).Msg("payment succeeded for a booking that is no longer payable")
				p.Status = domain.PaymentFailed
				p.RefundRequired = true
				booking, err = nil, nil
			}
			if err != nil {
				return err
			}
		}

		if err := s.payments.Settle(ctx, q, p); err != nil {
			return err
		}
		result = &CallbackResult{OrderID: p.OrderID, Status: p.Status, ResultCode: code}
		settled = p

		if booking != nil {
			rejected, err := s.redeemAttachedPromo(ctx, q, booking, now)
			if err != nil {
				return err
			}
			if rejected {
				result.PromoErr = domain.ErrPromoCodeExhausted
			}
		}
		return nil
	})

	entry := audit.Entry{
		Method:     string(method),
		OrderID:    cb.OrderID,
		Verified:   true,
		ResultCode: &cb.ResultCode,
		Payload:    cb.Raw,
	}
	if err != nil {
		s.metrics.Callbacks.WithLabelValues(string(method), "error").Inc()
		entry.Outcome = audit.OutcomeRejected
		entry.Error = err.Error()
		s.record(ctx, entry)
		return nil, err
	}

	if result.Replayed {
		entry.Outcome = audit.OutcomeReplayed
		s.record(ctx, entry)
		s.metrics.Callbacks.WithLabelValues(string(method), "replayed").Inc()
		log.Info().Str("order_id", result.OrderID).Str("status", string(result.Status)).Msg("callback replay ignored")
		return result, nil
	}

	entry.Outcome = audit.OutcomeSettled
	s.record(ctx, entry)
	s.metrics.Callbacks.WithLabelValues(string(method), strings.ToLower(string(result.Status))).Inc()
	log.Info().Str("order_id", result.OrderID).Int("result_code", result.ResultCode).Str("status", string(result.Status)).Msg("payment settled")
	s.announceSettlement(ctx, settled, booking, result.PromoErr)
	return result, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, orderID string) (*domain.Payment, error) {
	return s.payments.GetByOrderID(ctx, orderID)
}

func (s *PaymentService) ListCallbacks(ctx context.Context, orderID string) ([]audit.Entry, error) {
	if _, err := s.payments.GetByOrderID(ctx, orderID); err != nil {
		return nil, err
	}
	return s.audit.ListByOrderID(ctx, orderID)
}

// RepairPaidBookings finds SUCCESS payments whose booking is still unpaid and applies the
// booking side of settlement. Safe to run repeatedly and from several workers.
func (s *PaymentService) RepairPaidBookings(ctx context.Context, limit int) (int, error) {
	stale, err := s.payments.ListUnreconciled(ctx, limit)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	var (
		mu       sync.Mutex
		repaired int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.SweepWorkers)
	for i := range stale {
		p := stale[i]
		g.Go(func() error {
			var (
				booking  *domain.Booking
				rejected bool
			)
			err := s.tx.InTx(gctx, func(q database.TxQuerier) error {
				var err error
				booking, err = s.bookings.MarkPaid(gctx, q, p.BookingID)
				if err != nil {
					return err
				}
				rejected, err = s.redeemAttachedPromo(gctx, q, booking, s.now())
				return err
			})
			if errors.Is(err, domain.ErrBookingNotPayable) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("repair booking %s: %w", p.BookingID, err)
			}
			mu.Lock()
			repaired++
			mu.Unlock()
			log.Info().Str("order_id", p.OrderID).Str("booking_id", p.BookingID).Msg("reconciled paid booking")
			var promoErr error
			if rejected {
				promoErr = domain.ErrPromoCodeExhausted
			}
			s.announceSettlement(gctx, &p, booking, promoErr)
			return nil
		})
	}
	err = g.Wait()
	s.metrics.SweepRepaired.Add(float64(repaired))
	return repaired, err
}

// redeemAttachedPromo consumes the booking's pending promo code. An exhausted code does not fail
// the unit of work: the booking keeps its price, is marked REJECTED and rejected is true.
func (s *PaymentService) redeemAttachedPromo(ctx context.Context, q database.TxQuerier, booking *domain.Booking, now time.Time) (rejected bool, err error) {
	if booking.PromoStatus != domain.PromoStatusPending || booking.PromoCode == "" {
		return false, nil
	}
	_, err = s.promos.Redeem(ctx, q, booking.PromoCode, now)
	switch {
	case err == nil:
		booking.PromoStatus = domain.PromoStatusRedeemed
		s.metrics.PromoRedemptions.WithLabelValues("redeemed").Inc()
	case errors.Is(err, domain.ErrPromoCodeNotFound):
		booking.PromoStatus = domain.PromoStatusRejected
		s.metrics.PromoRedemptions.WithLabelValues("rejected").Inc()
		log.Warn().Str("booking_id", booking.ID).Str("code", booking.PromoCode).Msg("promo code exhausted between checkout and payment")
	default:
		return false, err
	}
	if err := s.bookings.SetPromoStatus(ctx, q, booking.ID, booking.PromoStatus); err != nil {
		return false, err
	}
	return booking.PromoStatus == domain.PromoStatusRejected, nil
}

func (s *PaymentService) announceSettlement(ctx context.Context, p *domain.Payment, booking *domain.Booking, promoErr error) {
	switch {
	case p.RefundRequired:
		s.publish(ctx, kafka.EventPaymentRefundRequired, p, "")
	case p.Status == domain.PaymentSuccess:
		code := ""
		if booking != nil {
			code = booking.PromoCode
		}
		s.publish(ctx, kafka.EventPaymentSucceeded, p, code)
	default:
		s.publish(ctx, kafka.EventPaymentFailed, p, "")
	}
	if promoErr != nil && booking != nil {
		s.publish(ctx, kafka.EventPromoRedemptionRejected, p, booking.PromoCode)
	}
}

func (s *PaymentService) publish(ctx context.Context, eventType string, p *domain.Payment, promoCode string) {
	if s.producer == nil || s.cfg.Topic == "" {
		return
	}
	event := kafka.PaymentEvent{
		Type:           eventType,
		OrderID:        p.OrderID,
		BookingID:      p.BookingID,
		UserID:         p.UserID,
		Method:         string(p.Method),
		Amount:         p.Amount,
		Status:         string(p.Status),
		TransactionID:  p.TransactionID,
		ResultCode:     p.ResultCode,
		RefundRequired: p.RefundRequired,
		PromoCode:      promoCode,
		OccurredAt:     s.now(),
	}
	write := s.producer.Publish
	// Events that need an operator are retried.
	if rp, ok := s.producer.(retryPublisher); ok && needsFollowUp(eventType) {
		write = func(ctx context.Context, topic, key string, value interface{}) error {
			return rp.PublishWithRetry(ctx, topic, key, value, followUpPublishRetries)
		}
	}
	if err := write(ctx, s.cfg.Topic, p.BookingID, event); err != nil {
		log.Warn().Err(err).Str("order_id", p.OrderID).Str("event", eventType).Msg("failed to publish payment event")
		return
	}
	if s.cfg.NotificationsTopic != "" {
		if err := write(ctx, s.cfg.NotificationsTopic, p.BookingID, event); err != nil {
			log.Warn().Err(err).Str("order_id", p.OrderID).Str("event", eventType).Msg("failed to publish notification")
		}
	}
}

func needsFollowUp(eventType string) bool {
	return eventType == kafka.EventPaymentRefundRequired || eventType == kafka.EventPromoRedemptionRejected
}

func (s *PaymentService) record(ctx context.Context, entry audit.Entry) {
	entry.ReceivedAt = s.now()
	if err := s.audit.Record(ctx, entry); err != nil {
		log.Warn().Err(err).Str("order_id", entry.OrderID).Msg("failed to record callback audit entry")
	}
}

// nextOrderID returns prefix + strictly increasing milliseconds + a short random suffix.
func (s *PaymentService) nextOrderID(prefix string) string {
	s.orderMu.Lock()
	ms := s.now().UnixMilli()
	if ms <= s.lastOrder {
		ms = s.lastOrder + 1
	}
	s.lastOrder = ms
	s.orderMu.Unlock()
	return prefix + strconv.FormatInt(ms, 10) + strings.ToUpper(uuid.NewString()[:6])
}

func (s *PaymentService) ipnURL(method domain.PaymentMethod) string {
	return strings.TrimRight(s.cfg.IPNBaseURL, "/") + "/payments/" + strings.ToLower(string(method)) + "/ipn"
}

var _ PaymentUseCase = (*PaymentService)(nil)
