package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/service/promo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func samplePromo() *domain.PromoCode {
	pct := 10
	maxUsage := 1
	return &domain.PromoCode{
		ID:                 "p1",
		Code:               "SALE10",
		DiscountPercentage: &pct,
		StartDate:          time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:            time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		MaxUsage:           &maxUsage,
		IsActive:           true,
	}
}

func TestPromoHandler_validateIsPublic(t *testing.T) {
	s := newTestServer(t)
	s.promos.On("Validate", mock.Anything, "sale10").Return(samplePromo(), nil)
	s.promos.On("Validate", mock.Anything, "GONE").Return(nil, domain.ErrPromoCodeNotFound)

	w := s.do(t, http.MethodGet, "/promo-codes/validate/sale10", nil, "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var body validatePromoResponse
	decodeBody(t, w, &body)
	assert.True(t, body.Valid)
	assert.Equal(t, "SALE10", body.Code)
	assert.Equal(t, 10, *body.DiscountPercentage)

	w = s.do(t, http.MethodGet, "/promo-codes/validate/GONE", nil, "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPromoHandler_useNeedsAdmin(t *testing.T) {
	s := newTestServer(t)
	redeemed := samplePromo()
	redeemed.UsedCount = 1
	s.promos.On("Redeem", mock.Anything, "SALE10").Return(redeemed, nil).Once()
	s.promos.On("Redeem", mock.Anything, "SALE10").Return(nil, domain.ErrPromoCodeNotFound).Once()

	w := s.do(t, http.MethodPost, "/promo-codes/use/SALE10", nil, "u1", RoleUser)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/promo-codes/use/SALE10", nil, "admin-1", RoleAdmin)
	assert.Equal(t, http.StatusOK, w.Code)
	var body promoResponse
	decodeBody(t, w, &body)
	assert.Equal(t, 1, body.UsedCount)

	w = s.do(t, http.MethodPost, "/promo-codes/use/SALE10", nil, "admin-1", RoleAdmin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPromoHandler_create(t *testing.T) {
	s := newTestServer(t)

	// Настройка моков
	amount := int64(50_000)
	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	s.promos.On("Create", mock.Anything, promo.CreatePromoInput{
		Code:           "SUMMER",
		DiscountAmount: &amount,
		StartDate:      start,
		EndDate:        end,
	}).Return(&domain.PromoCode{ID: "p2", Code: "SUMMER", DiscountAmount: &amount, StartDate: start, EndDate: end, IsActive: true}, nil)

	// Выполнение
	w := s.do(t, http.MethodPost, "/promo-codes", map[string]any{
		"code": "SUMMER", "discountAmount": 50_000, "startDate": "2026-07-01T00:00:00Z", "endDate": "2026-08-01T00:00:00Z",
	}, "admin-1", RoleAdmin)

	// Проверки
	assert.Equal(t, http.StatusCreated, w.Code)
	var body promoResponse
	decodeBody(t, w, &body)
	assert.Equal(t, "p2", body.ID)
	assert.True(t, body.IsActive)
}

func TestPromoHandler_createValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    map[string]any
		message string
	}{
		{name: "missing code", body: map[string]any{"discountPercentage": 10, "startDate": "2026-07-01T00:00:00Z", "endDate": "2026-08-01T00:00:00Z"}, message: "invalid request: code is required"},
		{name: "percentage too high", body: map[string]any{"code": "BIG", "discountPercentage": 150, "startDate": "2026-07-01T00:00:00Z", "endDate": "2026-08-01T00:00:00Z"}, message: "invalid request: discountPercentage must be at most 100"},
		{name: "amount too small", body: map[string]any{"code": "TINY", "discountAmount": 10, "startDate": "2026-07-01T00:00:00Z", "endDate": "2026-08-01T00:00:00Z"}, message: "invalid request: discountAmount must be at least 1000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)

			w := s.do(t, http.MethodPost, "/promo-codes", tt.body, "admin-1", RoleAdmin)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.message, errorMessage(t, w))
		})
	}
}

func TestPromoHandler_createDuplicate(t *testing.T) {
	s := newTestServer(t)
	s.promos.On("Create", mock.Anything, mock.Anything).Return(nil, domain.ErrPromoCodeExists)

	w := s.do(t, http.MethodPost, "/promo-codes", map[string]any{
		"code": "SALE10", "discountPercentage": 10, "startDate": "2026-07-01T00:00:00Z", "endDate": "2026-08-01T00:00:00Z",
	}, "admin-1", RoleAdmin)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPromoHandler_update(t *testing.T) {
	s := newTestServer(t)
	maxUsage := 5
	updated := samplePromo()
	updated.MaxUsage = &maxUsage
	s.promos.On("Update", mock.Anything, "p1", domain.PromoPatch{MaxUsage: &maxUsage}).Return(updated, nil)
	s.promos.On("Update", mock.Anything, "p1", mock.MatchedBy(func(p domain.PromoPatch) bool {
		return p.DiscountPercentage != nil
	})).Return(nil, domain.ErrPromoCodeInUse)

	w := s.do(t, http.MethodPatch, "/promo-codes/p1", map[string]any{"maxUsage": 5}, "admin-1", RoleAdmin)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPatch, "/promo-codes/p1", map[string]any{"discountPercentage": 20}, "admin-1", RoleAdmin)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, domain.ErrPromoCodeInUse.Error(), errorMessage(t, w))
}

func TestPromoHandler_updateClearMaxUsage(t *testing.T) {
	s := newTestServer(t)
	unlimited := samplePromo()
	unlimited.MaxUsage = nil
	s.promos.On("Update", mock.Anything, "p1", domain.PromoPatch{ClearMaxUsage: true}).Return(unlimited, nil).Once()

	w := s.do(t, http.MethodPatch, "/promo-codes/p1", map[string]any{"clearMaxUsage": true}, "admin-1", RoleAdmin)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPatch, "/promo-codes/p1", map[string]any{"clearMaxUsage": true, "maxUsage": 3}, "admin-1", RoleAdmin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid request: clearMaxUsage cannot be combined with maxUsage", errorMessage(t, w))
}

func TestPromoHandler_toggle(t *testing.T) {
	s := newTestServer(t)
	inactive := samplePromo()
	inactive.IsActive = false
	s.promos.On("Deactivate", mock.Anything, "p1").Return(inactive, nil)
	s.promos.On("Activate", mock.Anything, "p1").Return(samplePromo(), nil)
	s.promos.On("Get", mock.Anything, "p1").Return(samplePromo(), nil)

	w := s.do(t, http.MethodPost, "/promo-codes/p1/deactivate", nil, "admin-1", RoleAdmin)
	assert.Equal(t, http.StatusOK, w.Code)
	var body promoResponse
	decodeBody(t, w, &body)
	assert.False(t, body.IsActive)

	w = s.do(t, http.MethodPost, "/promo-codes/p1/activate", nil, "admin-1", RoleAdmin)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/promo-codes/p1", nil, "admin-1", RoleAdmin)
	assert.Equal(t, http.StatusOK, w.Code)
}
