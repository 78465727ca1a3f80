package promo

import (
	"context"
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/metrics"
	"github.com/Domenick1991/skybooking/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type PromoUseCase interface {
	Validate(ctx context.Context, code string) (*domain.PromoCode, error)
	Redeem(ctx context.Context, code string) (*domain.PromoCode, error)
	Create(ctx context.Context, input CreatePromoInput) (*domain.PromoCode, error)
	Get(ctx context.Context, id string) (*domain.PromoCode, error)
	Update(ctx context.Context, id string, patch domain.PromoPatch) (*domain.PromoCode, error)
	Activate(ctx context.Context, id string) (*domain.PromoCode, error)
	Deactivate(ctx context.Context, id string) (*domain.PromoCode, error)
}

type CreatePromoInput struct {
	Code               string
	DiscountPercentage *int
	DiscountAmount     *int64
	StartDate          time.Time
	EndDate            time.Time
	MaxUsage           *int
	IsActive           *bool
}

type PromoService struct {
	codes   repository.PromoCodeRepository
	now     func() time.Time
	metrics *metrics.Metrics
}

type PromoServiceOption func(*PromoService)

func WithClock(now func() time.Time) PromoServiceOption {
	return func(s *PromoService) {
		s.now = now
	}
}

func WithMetrics(m *metrics.Metrics) PromoServiceOption {
	return func(s *PromoService) {
		s.metrics = m
	}
}

func NewPromoService(codes repository.PromoCodeRepository, opts ...PromoServiceOption) *PromoService {
	s := &PromoService{codes: codes, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate is the read-only pre-checkout check.
func (s *PromoService) Validate(ctx context.Context, code string) (*domain.PromoCode, error) {
	return s.codes.FindValid(ctx, domain.NormalizeCode(code), s.now())
}

// Redeem consumes one use outside the payment path.
func (s *PromoService) Redeem(ctx context.Context, code string) (*domain.PromoCode, error) {
	redeemed, err := s.codes.Redeem(ctx, nil, domain.NormalizeCode(code), s.now())
	s.observe(err)
	if err != nil {
		return nil, err
	}
	log.Info().Str("code", redeemed.Code).Int("used_count", redeemed.UsedCount).Msg("promo code redeemed")
	return redeemed, nil
}

func (s *PromoService) Create(ctx context.Context, input CreatePromoInput) (*domain.PromoCode, error) {
	code := domain.NormalizeCode(input.Code)
	if code == "" {
		return nil, domain.Validation("code is required")
	}
	if err := domain.CheckDiscount(input.DiscountPercentage, input.DiscountAmount); err != nil {
		return nil, err
	}
	if err := domain.CheckWindow(input.StartDate, input.EndDate); err != nil {
		return nil, err
	}
	if input.MaxUsage != nil && *input.MaxUsage < 0 {
		return nil, domain.Validation("maxUsage must not be negative")
	}

	promo := &domain.PromoCode{
		ID:                 uuid.NewString(),
		Code:               code,
		DiscountPercentage: input.DiscountPercentage,
		DiscountAmount:     input.DiscountAmount,
		StartDate:          input.StartDate,
		EndDate:            input.EndDate,
		MaxUsage:           input.MaxUsage,
		IsActive:           input.IsActive == nil || *input.IsActive,
	}
	if err := s.codes.Insert(ctx, promo); err != nil {
		return nil, err
	}
	log.Info().Str("code", promo.Code).Str("promo_id", promo.ID).Msg("promo code created")
	return promo, nil
}

func (s *PromoService) Get(ctx context.Context, id string) (*domain.PromoCode, error) {
	return s.codes.GetByID(ctx, id)
}

// Update validates the merged result, then defers to the repository's conditional write,
// which rejects value changes once the code has been used.
func (s *PromoService) Update(ctx context.Context, id string, patch domain.PromoPatch) (*domain.PromoCode, error) {
	if patch.DiscountPercentage != nil && patch.DiscountAmount != nil {
		return nil, domain.Validation("discountPercentage and discountAmount are mutually exclusive")
	}
	if patch.MaxUsage != nil && *patch.MaxUsage < 0 {
		return nil, domain.Validation("maxUsage must not be negative")
	}
	if patch.MaxUsage != nil && patch.ClearMaxUsage {
		return nil, domain.Validation("maxUsage and clearMaxUsage are mutually exclusive")
	}

	current, err := s.codes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.TouchesValue() && current.UsedCount > 0 {
		return nil, domain.ErrPromoCodeInUse
	}
	merged := patch.Apply(*current)
	if err := domain.CheckDiscount(merged.DiscountPercentage, merged.DiscountAmount); err != nil {
		return nil, err
	}
	if err := domain.CheckWindow(merged.StartDate, merged.EndDate); err != nil {
		return nil, err
	}
	if merged.MaxUsage != nil && *merged.MaxUsage < current.UsedCount {
		return nil, domain.Validation("maxUsage cannot be below usedCount")
	}

	return s.codes.Update(ctx, id, patch)
}

func (s *PromoService) Activate(ctx context.Context, id string) (*domain.PromoCode, error) {
	return s.codes.SetActive(ctx, id, true)
}

// Deactivate only flips the flag and is always permitted.
func (s *PromoService) Deactivate(ctx context.Context, id string) (*domain.PromoCode, error) {
	return s.codes.SetActive(ctx, id, false)
}

func (s *PromoService) observe(err error) {
	if s.metrics == nil {
		return
	}
	outcome := "redeemed"
	if err != nil {
		outcome = "rejected"
	}
	s.metrics.PromoRedemptions.WithLabelValues(outcome).Inc()
}

var _ PromoUseCase = (*PromoService)(nil)
