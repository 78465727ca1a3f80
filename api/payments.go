package api

import (
	"encoding/json"
	"net/http"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/service/payment"
	appvalidator "github.com/Domenick1991/skybooking/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

type PaymentHandler struct {
	service  payment.PaymentUseCase
	validate *validator.Validate
}

type chargeRequest struct {
	BookingID string `json:"bookingId" validate:"required,notblank"`
	OrderInfo string `json:"orderInfo" validate:"max=255"`
	Lang      string `json:"lang" validate:"omitempty,oneof=vi en"`
}

type chargeResponse struct {
	OrderID   string `json:"orderId"`
	PayURL    string `json:"payUrl,omitempty"`
	ShortLink string `json:"shortLink,omitempty"`
}

type ipnResponse struct {
	Message    string `json:"message"`
	Status     string `json:"status"`
	ResultCode int    `json:"resultCode"`
}

func NewPaymentHandler(service payment.PaymentUseCase, validate *validator.Validate) *PaymentHandler {
	return &PaymentHandler{service: service, validate: validate}
}

func (h *PaymentHandler) Register(router *gin.RouterGroup, auth, admin gin.HandlerFunc) {
	router.POST("/:method", auth, h.charge)
	router.POST("/:method/ipn", h.ipn)
	router.GET("/:orderId", auth, h.get)
	router.GET("/:orderId/callbacks", auth, admin, h.callbacks)
}

func (h *PaymentHandler) charge(c *gin.Context) {
	method, err := domain.ParsePaymentMethod(c.Param("method"))
	if err != nil {
		respondError(c, err)
		return
	}
	var req chargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		badRequest(c, appvalidator.FormatError(err))
		return
	}

	input := payment.ChargeInput{
		BookingID: req.BookingID,
		Method:    method,
		OrderInfo: req.OrderInfo,
		Lang:      req.Lang,
	}
	if !isAdmin(c) {
		input.UserID = currentUser(c)
	}
	outcome, err := h.service.InitiateCharge(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chargeResponse{
		OrderID:   outcome.Payment.OrderID,
		PayURL:    outcome.PayURL,
		ShortLink: outcome.ShortLink,
	})
}

// ipn is the provider's server-to-server notification. It is public; the signature is the auth.
func (h *PaymentHandler) ipn(c *gin.Context) {
	method, err := domain.ParsePaymentMethod(c.Param("method"))
	if err != nil {
		respondError(c, err)
		return
	}

	var payload map[string]any
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil || payload == nil {
		badRequest(c, "invalid callback body")
		return
	}

	result, err := h.service.HandleCallback(c.Request.Context(), method, payload)
	if err != nil {
		respondError(c, err)
		return
	}

	message := "ok"
	if result.Replayed {
		message = "already processed"
	}
	if result.PromoErr != nil {
		log.Warn().Err(result.PromoErr).Str("order_id", result.OrderID).Msg("payment settled without promo redemption")
		message = result.PromoErr.Error()
	}
	c.JSON(http.StatusOK, ipnResponse{Message: message, Status: string(result.Status), ResultCode: result.ResultCode})
}

func (h *PaymentHandler) get(c *gin.Context) {
	p, err := h.service.GetPayment(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !canAccess(c, p.UserID) {
		respondError(c, domain.ErrPaymentNotFound)
		return
	}
	c.JSON(http.StatusOK, toPaymentResponse(p))
}

func (h *PaymentHandler) callbacks(c *gin.Context) {
	entries, err := h.service.ListCallbacks(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
