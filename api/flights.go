package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/service/flights"
	"github.com/gin-gonic/gin"
)

type FlightHandler struct {
	service flights.FlightUseCase
}

type flightResponse struct {
	ID             int64     `json:"id"`
	FromAirport    string    `json:"fromAirport"`
	ToAirport      string    `json:"toAirport"`
	DepartureTime  time.Time `json:"departureTime"`
	ArrivalTime    time.Time `json:"arrivalTime"`
	TotalSeats     int       `json:"totalSeats"`
	AvailableSeats int       `json:"availableSeats"`
	PriceCents     int64     `json:"priceCents"`
}

func toFlightResponse(f *domain.Flight) flightResponse {
	return flightResponse{
		ID:             f.ID,
		FromAirport:    f.FromAirport,
		ToAirport:      f.ToAirport,
		DepartureTime:  f.DepartureTime,
		ArrivalTime:    f.ArrivalTime,
		TotalSeats:     f.TotalSeats,
		AvailableSeats: f.AvailableSeats,
		PriceCents:     f.PriceCents,
	}
}

func NewFlightHandler(service flights.FlightUseCase) *FlightHandler {
	return &FlightHandler{service: service}
}

func (h *FlightHandler) Register(router *gin.RouterGroup) {
	router.GET("", h.list)
	router.GET("/:id", h.get)
	router.GET("/:id/fares", h.fares)
}

func (h *FlightHandler) list(c *gin.Context) {
	list, err := h.service.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	resp := make([]flightResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toFlightResponse(&list[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *FlightHandler) get(c *gin.Context) {
	id, ok := flightID(c)
	if !ok {
		return
	}
	flight, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toFlightResponse(flight))
}

// fares serves the fare options of one flight filtered and ordered by class then price.
func (h *FlightHandler) fares(c *gin.Context) {
	id, ok := flightID(c)
	if !ok {
		return
	}
	criteria, err := parseFareCriteria(c)
	if err != nil {
		respondError(c, err)
		return
	}
	fares, err := h.service.SearchFares(c.Request.Context(), id, criteria)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fares)
}

func flightID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

func parseFareCriteria(c *gin.Context) (flights.FareCriteria, error) {
	criteria := flights.FareCriteria{FareClass: domain.FareClass(c.Query("fareClass"))}
	var err error

	if criteria.MinPrice, err = queryInt64(c, "minPrice"); err != nil {
		return criteria, err
	}
	if criteria.MaxPrice, err = queryInt64(c, "maxPrice"); err != nil {
		return criteria, err
	}
	if criteria.MaxAvailableSeats, err = queryInt(c, "maxAvailableSeats"); err != nil {
		return criteria, err
	}
	if n, err := queryInt(c, "minSeats"); err != nil {
		return criteria, err
	} else if n != nil {
		criteria.MinSeats = *n
	}
	if n, err := queryInt(c, "passengers"); err != nil {
		return criteria, err
	} else if n != nil {
		criteria.Passengers = *n
	}
	return criteria, nil
}
