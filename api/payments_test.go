package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/Domenick1991/skybooking/internal/audit"
	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/service/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestPaymentHandler_charge(t *testing.T) {
	s := newTestServer(t)

	// Настройка моков
	input := payment.ChargeInput{BookingID: "b1", UserID: "u1", Method: domain.PaymentMethodMoMo, OrderInfo: "Flight SVO-LED", Lang: "en"}
	s.payments.On("InitiateCharge", mock.Anything, input).Return(&payment.ChargeOutcome{
		Payment: &domain.Payment{OrderID: "MOMO1780000000000ABC123"},
		PayURL:  "https://pay.example/1",
	}, nil)

	// Выполнение
	w := s.do(t, http.MethodPost, "/payments/momo", map[string]any{"bookingId": "b1", "orderInfo": "Flight SVO-LED", "lang": "en"}, "u1", RoleUser)

	// Проверки
	assert.Equal(t, http.StatusOK, w.Code)
	var body chargeResponse
	decodeBody(t, w, &body)
	assert.Equal(t, "MOMO1780000000000ABC123", body.OrderID)
	assert.Equal(t, "https://pay.example/1", body.PayURL)
}

func TestPaymentHandler_chargeAsAdminSkipsOwnerCheck(t *testing.T) {
	s := newTestServer(t)
	s.payments.On("InitiateCharge", mock.Anything, mock.MatchedBy(func(in payment.ChargeInput) bool {
		return in.UserID == "" && in.Method == domain.PaymentMethodZaloPay
	})).Return(&payment.ChargeOutcome{Payment: &domain.Payment{OrderID: "ZLP1"}, ShortLink: "https://zlp.example/s"}, nil)

	w := s.do(t, http.MethodPost, "/payments/ZALOPAY", map[string]any{"bookingId": "b1"}, "admin-1", RoleAdmin)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPaymentHandler_chargeErrors(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		body    any
		err     error
		status  int
		message string
	}{
		{name: "unsupported method", path: "/payments/paypal", body: map[string]any{"bookingId": "b1"}, status: http.StatusBadRequest, message: "unsupported payment method"},
		{name: "blank booking", path: "/payments/momo", body: map[string]any{"bookingId": "   "}, status: http.StatusBadRequest, message: "invalid request: bookingId cannot be whitespace only"},
		{name: "bad lang", path: "/payments/momo", body: map[string]any{"bookingId": "b1", "lang": "fr"}, status: http.StatusBadRequest, message: "invalid request: lang must be one of vi en"},
		{name: "not payable", path: "/payments/momo", body: map[string]any{"bookingId": "b1"}, err: domain.ErrBookingNotPayable, status: http.StatusConflict, message: "booking is not awaiting payment"},
		{name: "out of range", path: "/payments/momo", body: map[string]any{"bookingId": "b1"}, err: domain.ErrAmountOutOfRange, status: http.StatusBadRequest, message: "amount out of range"},
		{name: "upstream", path: "/payments/momo", body: map[string]any{"bookingId": "b1"}, err: fmt.Errorf("%w: timeout", domain.ErrUpstream), status: http.StatusBadGateway, message: "payment provider unavailable, please retry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			if tt.err != nil {
				s.payments.On("InitiateCharge", mock.Anything, mock.Anything).Return(nil, tt.err)
			}

			w := s.do(t, http.MethodPost, tt.path, tt.body, "u1", RoleUser)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.message, errorMessage(t, w))
		})
	}
}

func TestPaymentHandler_ipn(t *testing.T) {
	s := newTestServer(t)

	var got map[string]any
	s.payments.On("HandleCallback", mock.Anything, domain.PaymentMethodMoMo, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(2).(map[string]any) }).
		Return(&payment.CallbackResult{OrderID: "MOMO1", Status: domain.PaymentSuccess, ResultCode: 0}, nil)

	// The IPN route is public: no token.
	w := s.do(t, http.MethodPost, "/payments/momo/ipn", `{"orderId":"MOMO1","resultCode":0,"amount":2000000,"signature":"ab"}`, "", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var body ipnResponse
	decodeBody(t, w, &body)
	assert.Equal(t, ipnResponse{Message: "ok", Status: "SUCCESS", ResultCode: 0}, body)
	// Numbers reach the service undecoded so the signature is checked over the exact digits.
	assert.Equal(t, json.Number("2000000"), got["amount"])
}

func TestPaymentHandler_ipnOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		result  *payment.CallbackResult
		err     error
		status  int
		message string
	}{
		{name: "replay", result: &payment.CallbackResult{OrderID: "MOMO1", Status: domain.PaymentSuccess, Replayed: true}, status: http.StatusOK, message: "already processed"},
		{name: "promo exhausted", result: &payment.CallbackResult{OrderID: "MOMO1", Status: domain.PaymentSuccess, PromoErr: domain.ErrPromoCodeExhausted}, status: http.StatusOK, message: domain.ErrPromoCodeExhausted.Error()},
		{name: "failed payment", result: &payment.CallbackResult{OrderID: "MOMO1", Status: domain.PaymentFailed, ResultCode: 1006}, status: http.StatusOK, message: "ok"},
		{name: "bad signature", err: domain.ErrInvalidSignature, status: http.StatusUnauthorized},
		{name: "unknown order", err: domain.ErrPaymentNotFound, status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.payments.On("HandleCallback", mock.Anything, domain.PaymentMethodMoMo, mock.Anything).Return(tt.result, tt.err)

			w := s.do(t, http.MethodPost, "/payments/momo/ipn", `{"orderId":"MOMO1"}`, "", "")

			assert.Equal(t, tt.status, w.Code)
			if tt.result != nil {
				var body ipnResponse
				decodeBody(t, w, &body)
				assert.Equal(t, tt.message, body.Message)
				assert.Equal(t, string(tt.result.Status), body.Status)
			}
		})
	}
}

func TestPaymentHandler_ipnMalformedBody(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/payments/momo/ipn", `not json`, "", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	s.payments.AssertNotCalled(t, "HandleCallback", mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentHandler_get(t *testing.T) {
	s := newTestServer(t)
	s.payments.On("GetPayment", mock.Anything, "MOMO1").Return(&domain.Payment{OrderID: "MOMO1", UserID: "u1", Status: domain.PaymentPending}, nil)

	w := s.do(t, http.MethodGet, "/payments/MOMO1", nil, "u1", RoleUser)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/payments/MOMO1", nil, "u2", RoleUser)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "payment not found", errorMessage(t, w))
}

func TestPaymentHandler_callbacks(t *testing.T) {
	s := newTestServer(t)
	s.payments.On("ListCallbacks", mock.Anything, "MOMO1").Return([]audit.Entry{
		{Method: "MOMO", OrderID: "MOMO1", Verified: false, Outcome: audit.OutcomeInvalidSignature},
		{Method: "MOMO", OrderID: "MOMO1", Verified: true, Outcome: audit.OutcomeSettled},
	}, nil)

	w := s.do(t, http.MethodGet, "/payments/MOMO1/callbacks", nil, "u1", RoleUser)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/payments/MOMO1/callbacks", nil, "admin-1", RoleAdmin)
	assert.Equal(t, http.StatusOK, w.Code)
	var body []audit.Entry
	decodeBody(t, w, &body)
	assert.Len(t, body, 2)
	assert.Equal(t, audit.OutcomeSettled, body[1].Outcome)
}
