package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/service/booking"
	appvalidator "github.com/Domenick1991/skybooking/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type BookingHandler struct {
	service  booking.BookingUseCase
	validate *validator.Validate
}

type createBookingRequest struct {
	// UserID is honoured for admins only; everyone else books for themselves.
	UserID     string `json:"userId"`
	FlightID   int64  `json:"flightId" validate:"required,gt=0"`
	TotalPrice int64  `json:"totalPrice" validate:"gte=0"`
	PromoCode  string `json:"promoCode" validate:"omitempty,promocode"`
}

type updateBookingRequest struct {
	Status        *string `json:"status" validate:"omitempty,oneof=PENDING CONFIRMED CANCELLED"`
	PaymentStatus *string `json:"paymentStatus" validate:"omitempty,oneof=UNPAID PAID REFUNDED"`
	TotalPrice    *int64  `json:"totalPrice" validate:"omitempty,gte=0"`
}

func NewBookingHandler(service booking.BookingUseCase, validate *validator.Validate) *BookingHandler {
	return &BookingHandler{service: service, validate: validate}
}

func (h *BookingHandler) Register(router *gin.RouterGroup, auth, admin gin.HandlerFunc) {
	router.POST("", auth, h.create)
	router.GET("", auth, h.search)
	router.GET("/:id", auth, h.get)
	router.PATCH("/:id", auth, h.update)
	router.POST("/:id/cancel", auth, h.cancel)
	router.GET("/:id/payments", auth, h.payments)
	router.DELETE("/:id", auth, admin, h.delete)
	router.DELETE("/:id/purge", auth, admin, h.purge)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		badRequest(c, appvalidator.FormatError(err))
		return
	}

	userID := currentUser(c)
	if isAdmin(c) && req.UserID != "" {
		userID = req.UserID
	}

	created, err := h.service.CreateBooking(c.Request.Context(), booking.CreateBookingInput{
		UserID:     userID,
		FlightID:   req.FlightID,
		TotalPrice: req.TotalPrice,
		PromoCode:  req.PromoCode,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toBookingResponse(created))
}

func (h *BookingHandler) search(c *gin.Context) {
	filter, err := parseBookingFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if !isAdmin(c) {
		filter.UserID = currentUser(c)
	}

	page, err := h.service.SearchBookings(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := bookingPageResponse{Items: make([]bookingResponse, 0, len(page.Items)), Total: page.Total, Page: page.Page, Limit: page.Limit}
	for i := range page.Items {
		resp.Items = append(resp.Items, toBookingResponse(&page.Items[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *BookingHandler) get(c *gin.Context) {
	b, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) update(c *gin.Context) {
	var req updateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		badRequest(c, appvalidator.FormatError(err))
		return
	}
	if !isAdmin(c) {
		// Customers may only cancel. Price and payment state come from the fare and the gateway.
		switch {
		case req.PaymentStatus != nil:
			c.JSON(http.StatusForbidden, gin.H{"error": "paymentStatus can only be changed by an admin"})
			return
		case req.TotalPrice != nil:
			c.JSON(http.StatusForbidden, gin.H{"error": "totalPrice can only be changed by an admin"})
			return
		case req.Status != nil && domain.BookingStatus(*req.Status) != domain.BookingStatusCancelled:
			c.JSON(http.StatusForbidden, gin.H{"error": "status can only be set to CANCELLED by the booking owner"})
			return
		}
	}
	if _, ok := h.load(c); !ok {
		return
	}

	input := booking.UpdateBookingInput{TotalPrice: req.TotalPrice}
	if req.Status != nil {
		s := domain.BookingStatus(*req.Status)
		input.Status = &s
	}
	if req.PaymentStatus != nil {
		s := domain.PaymentStatus(*req.PaymentStatus)
		input.PaymentStatus = &s
	}

	updated, err := h.service.UpdateBooking(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(updated))
}

func (h *BookingHandler) cancel(c *gin.Context) {
	if _, ok := h.load(c); !ok {
		return
	}
	cancelled, err := h.service.CancelBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(cancelled))
}

func (h *BookingHandler) payments(c *gin.Context) {
	if _, ok := h.load(c); !ok {
		return
	}
	attempts, err := h.service.ListPayments(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	resp := make([]paymentResponse, 0, len(attempts))
	for i := range attempts {
		resp = append(resp, toPaymentResponse(&attempts[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *BookingHandler) delete(c *gin.Context) {
	cancelled, err := h.service.DeleteBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(cancelled))
}

func (h *BookingHandler) purge(c *gin.Context) {
	if err := h.service.PurgeBooking(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// load fetches the booking named in the path and enforces ownership. Foreign bookings look missing.
func (h *BookingHandler) load(c *gin.Context) (*domain.Booking, bool) {
	b, err := h.service.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if !canAccess(c, b.UserID) {
		respondError(c, domain.ErrBookingNotFound)
		return nil, false
	}
	return b, true
}

func parseBookingFilter(c *gin.Context) (domain.BookingFilter, error) {
	f := domain.BookingFilter{UserID: c.Query("userId"), SortBy: c.Query("sort")}
	var err error

	if f.FlightID, err = queryInt64(c, "flightId"); err != nil {
		return f, err
	}
	if f.MinPrice, err = queryInt64(c, "minPrice"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = queryInt64(c, "maxPrice"); err != nil {
		return f, err
	}
	if f.From, err = queryTime(c, "from"); err != nil {
		return f, err
	}
	if f.To, err = queryTime(c, "to"); err != nil {
		return f, err
	}
	if v := c.Query("status"); v != "" {
		s := domain.BookingStatus(v)
		if !s.Valid() {
			return f, domain.Validation("unknown booking status " + v)
		}
		f.Status = &s
	}
	if v := c.Query("paymentStatus"); v != "" {
		s := domain.PaymentStatus(v)
		if !s.Valid() {
			return f, domain.Validation("unknown payment status " + v)
		}
		f.PaymentStatus = &s
	}
	switch c.DefaultQuery("order", "asc") {
	case "asc":
	case "desc":
		f.Descending = true
	default:
		return f, domain.Validation("order must be asc or desc")
	}
	if page, err := queryInt64(c, "page"); err != nil {
		return f, err
	} else if page != nil {
		f.Page = int(*page)
	}
	if limit, err := queryInt64(c, "limit"); err != nil {
		return f, err
	} else if limit != nil {
		if *limit > 100 {
			return f, domain.Validation("limit must be at most 100")
		}
		f.Limit = int(*limit)
	}
	return f, nil
}

func queryInt64(c *gin.Context, name string) (*int64, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, domain.Validation(name + " must be an integer")
	}
	return &n, nil
}

func queryInt(c *gin.Context, name string) (*int, error) {
	n, err := queryInt64(c, name)
	if n == nil || err != nil {
		return nil, err
	}
	v := int(*n)
	return &v, nil
}

func queryTime(c *gin.Context, name string) (*time.Time, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, domain.Validation(name + " must be an RFC 3339 timestamp")
	}
	return &t, nil
}
