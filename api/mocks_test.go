package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Domenick1991/skybooking/internal/audit"
	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/service/booking"
	"github.com/Domenick1991/skybooking/internal/service/flights"
	"github.com/Domenick1991/skybooking/internal/service/payment"
	"github.com/Domenick1991/skybooking/internal/service/promo"
	appvalidator "github.com/Domenick1991/skybooking/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

// Mock структуры

type MockBookingUseCase struct {
	mock.Mock
}

func (m *MockBookingUseCase) CreateBooking(ctx context.Context, input booking.CreateBookingInput) (*domain.Booking, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) SearchBookings(ctx context.Context, filter domain.BookingFilter) (*domain.BookingPage, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BookingPage), args.Error(1)
}

func (m *MockBookingUseCase) UpdateBooking(ctx context.Context, id string, input booking.UpdateBookingInput) (*domain.Booking, error) {
	args := m.Called(ctx, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) CancelBooking(ctx context.Context, id string) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) DeleteBooking(ctx context.Context, id string) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) PurgeBooking(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockBookingUseCase) ListPayments(ctx context.Context, id string) ([]domain.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Payment), args.Error(1)
}

type MockFlightUseCase struct {
	mock.Mock
}

func (m *MockFlightUseCase) List(ctx context.Context) ([]domain.Flight, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Flight), args.Error(1)
}

func (m *MockFlightUseCase) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlightUseCase) SearchFares(ctx context.Context, flightID int64, criteria flights.FareCriteria) ([]domain.Fare, error) {
	args := m.Called(ctx, flightID, criteria)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Fare), args.Error(1)
}

type MockPaymentUseCase struct {
	mock.Mock
}

func (m *MockPaymentUseCase) InitiateCharge(ctx context.Context, input payment.ChargeInput) (*payment.ChargeOutcome, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.ChargeOutcome), args.Error(1)
}

func (m *MockPaymentUseCase) HandleCallback(ctx context.Context, method domain.PaymentMethod, payload map[string]any) (*payment.CallbackResult, error) {
	args := m.Called(ctx, method, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.CallbackResult), args.Error(1)
}

func (m *MockPaymentUseCase) GetPayment(ctx context.Context, orderID string) (*domain.Payment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentUseCase) ListCallbacks(ctx context.Context, orderID string) ([]audit.Entry, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]audit.Entry), args.Error(1)
}

func (m *MockPaymentUseCase) RepairPaidBookings(ctx context.Context, limit int) (int, error) {
	args := m.Called(ctx, limit)
	return args.Int(0), args.Error(1)
}

type MockPromoUseCase struct {
	mock.Mock
}

func (m *MockPromoUseCase) promoResult(args mock.Arguments) (*domain.PromoCode, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PromoCode), args.Error(1)
}

func (m *MockPromoUseCase) Validate(ctx context.Context, code string) (*domain.PromoCode, error) {
	return m.promoResult(m.Called(ctx, code))
}

func (m *MockPromoUseCase) Redeem(ctx context.Context, code string) (*domain.PromoCode, error) {
	return m.promoResult(m.Called(ctx, code))
}

func (m *MockPromoUseCase) Create(ctx context.Context, input promo.CreatePromoInput) (*domain.PromoCode, error) {
	return m.promoResult(m.Called(ctx, input))
}

func (m *MockPromoUseCase) Get(ctx context.Context, id string) (*domain.PromoCode, error) {
	return m.promoResult(m.Called(ctx, id))
}

func (m *MockPromoUseCase) Update(ctx context.Context, id string, patch domain.PromoPatch) (*domain.PromoCode, error) {
	return m.promoResult(m.Called(ctx, id, patch))
}

func (m *MockPromoUseCase) Activate(ctx context.Context, id string) (*domain.PromoCode, error) {
	return m.promoResult(m.Called(ctx, id))
}

func (m *MockPromoUseCase) Deactivate(ctx context.Context, id string) (*domain.PromoCode, error) {
	return m.promoResult(m.Called(ctx, id))
}

type testServer struct {
	router   *gin.Engine
	bookings *MockBookingUseCase
	flights  *MockFlightUseCase
	payments *MockPaymentUseCase
	promos   *MockPromoUseCase
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &testServer{
		bookings: &MockBookingUseCase{},
		flights:  &MockFlightUseCase{},
		payments: &MockPaymentUseCase{},
		promos:   &MockPromoUseCase{},
	}
	validate := appvalidator.New()
	s.router = NewRouter(Handlers{
		Bookings: NewBookingHandler(s.bookings, validate),
		Flights:  NewFlightHandler(s.flights),
		Payments: NewPaymentHandler(s.payments, validate),
		Promos:   NewPromoHandler(s.promos, validate),
	}, testSecret, nil)

	t.Cleanup(func() {
		s.bookings.AssertExpectations(t)
		s.flights.AssertExpectations(t)
		s.payments.AssertExpectations(t)
		s.promos.AssertExpectations(t)
	})
	return s
}

// do sends a request as userID with role. An empty userID sends no token.
func (s *testServer) do(t *testing.T, method, path string, body any, userID, role string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := IssueToken(testSecret, userID, role, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dest any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dest), w.Body.String())
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, w, &body)
	return body.Error
}
