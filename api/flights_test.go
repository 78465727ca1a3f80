package api

import (
	"net/http"
	"testing"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/service/flights"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestFlightHandler_list(t *testing.T) {
	s := newTestServer(t)
	s.flights.On("List", mock.Anything).Return([]domain.Flight{
		{ID: 1, FromAirport: "SVO", ToAirport: "LED", TotalSeats: 100, AvailableSeats: 50, PriceCents: 5000},
	}, nil)

	w := s.do(t, http.MethodGet, "/flights", nil, "", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var body []flightResponse
	decodeBody(t, w, &body)
	assert.Len(t, body, 1)
	assert.Equal(t, "SVO", body[0].FromAirport)
	assert.Equal(t, 50, body[0].AvailableSeats)
}

func TestFlightHandler_get(t *testing.T) {
	s := newTestServer(t)
	s.flights.On("GetByID", mock.Anything, int64(1)).Return(&domain.Flight{ID: 1, FromAirport: "SVO", ToAirport: "LED"}, nil)
	s.flights.On("GetByID", mock.Anything, int64(2)).Return(nil, domain.ErrFlightNotFound)

	w := s.do(t, http.MethodGet, "/flights/1", nil, "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/flights/2", nil, "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "flight not found", errorMessage(t, w))

	w = s.do(t, http.MethodGet, "/flights/abc", nil, "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFlightHandler_fares(t *testing.T) {
	s := newTestServer(t)

	minPrice := int64(100)
	maxSeats := 40
	expected := flights.FareCriteria{
		FareClass:         domain.FareClassBusiness,
		MinPrice:          &minPrice,
		Passengers:        2,
		MaxAvailableSeats: &maxSeats,
	}
	fares := []domain.Fare{{Class: domain.FareClassBusiness, Price: 300, AvailableSeats: 10, Perks: []string{"lounge"}}}
	s.flights.On("SearchFares", mock.Anything, int64(7), expected).Return(fares, nil)

	w := s.do(t, http.MethodGet, "/flights/7/fares?fareClass=Business&minPrice=100&passengers=2&maxAvailableSeats=40", nil, "", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var body []domain.Fare
	decodeBody(t, w, &body)
	assert.Equal(t, fares, body)
}

func TestFlightHandler_faresBadQuery(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/flights/7/fares?minPrice=cheap", nil, "", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "minPrice must be an integer", errorMessage(t, w))
	s.flights.AssertNotCalled(t, "SearchFares", mock.Anything, mock.Anything, mock.Anything)
}

func TestFlightHandler_faresInvalidCriteria(t *testing.T) {
	s := newTestServer(t)
	s.flights.On("SearchFares", mock.Anything, int64(7), mock.Anything).
		Return(nil, domain.Validation("unknown fare class Premium"))

	w := s.do(t, http.MethodGet, "/flights/7/fares?fareClass=Premium", nil, "", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
