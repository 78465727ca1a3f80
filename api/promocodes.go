package api

import (
	"context"
	"net/http"
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/service/promo"
	appvalidator "github.com/Domenick1991/skybooking/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type PromoHandler struct {
	service  promo.PromoUseCase
	validate *validator.Validate
}

type createPromoRequest struct {
	Code               string    `json:"code" validate:"required,promocode"`
	DiscountPercentage *int      `json:"discountPercentage" validate:"omitempty,min=1,max=100"`
	DiscountAmount     *int64    `json:"discountAmount" validate:"omitempty,min=1000"`
	StartDate          time.Time `json:"startDate" validate:"required"`
	EndDate            time.Time `json:"endDate" validate:"required"`
	MaxUsage           *int      `json:"maxUsage" validate:"omitempty,min=0"`
	IsActive           *bool     `json:"isActive"`
}

type updatePromoRequest struct {
	DiscountPercentage *int       `json:"discountPercentage" validate:"omitempty,min=1,max=100"`
	DiscountAmount     *int64     `json:"discountAmount" validate:"omitempty,min=1000"`
	StartDate          *time.Time `json:"startDate"`
	EndDate            *time.Time `json:"endDate"`
	MaxUsage           *int       `json:"maxUsage" validate:"omitempty,min=0"`
	ClearMaxUsage      bool       `json:"clearMaxUsage" validate:"excluded_with=MaxUsage"`
	IsActive           *bool      `json:"isActive"`
}

type validatePromoResponse struct {
	Valid              bool   `json:"valid"`
	Code               string `json:"code"`
	DiscountPercentage *int   `json:"discountPercentage,omitempty"`
	DiscountAmount     *int64 `json:"discountAmount,omitempty"`
}

func NewPromoHandler(service promo.PromoUseCase, validate *validator.Validate) *PromoHandler {
	return &PromoHandler{service: service, validate: validate}
}

func (h *PromoHandler) Register(router *gin.RouterGroup, auth, admin gin.HandlerFunc) {
	router.GET("/validate/:code", h.check)
	router.POST("/use/:code", auth, admin, h.use)
	router.POST("", auth, admin, h.create)
	router.GET("/:id", auth, admin, h.get)
	router.PATCH("/:id", auth, admin, h.update)
	router.POST("/:id/activate", auth, admin, h.activate)
	router.POST("/:id/deactivate", auth, admin, h.deactivate)
}

// check answers whether a code would be accepted right now. Nothing is consumed.
func (h *PromoHandler) check(c *gin.Context) {
	code, err := h.service.Validate(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, validatePromoResponse{
		Valid:              true,
		Code:               code.Code,
		DiscountPercentage: code.DiscountPercentage,
		DiscountAmount:     code.DiscountAmount,
	})
}

func (h *PromoHandler) use(c *gin.Context) {
	code, err := h.service.Redeem(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPromoResponse(code))
}

func (h *PromoHandler) create(c *gin.Context) {
	var req createPromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		badRequest(c, appvalidator.FormatError(err))
		return
	}

	code, err := h.service.Create(c.Request.Context(), promo.CreatePromoInput{
		Code:               req.Code,
		DiscountPercentage: req.DiscountPercentage,
		DiscountAmount:     req.DiscountAmount,
		StartDate:          req.StartDate,
		EndDate:            req.EndDate,
		MaxUsage:           req.MaxUsage,
		IsActive:           req.IsActive,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toPromoResponse(code))
}

func (h *PromoHandler) get(c *gin.Context) {
	code, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPromoResponse(code))
}

func (h *PromoHandler) update(c *gin.Context) {
	var req updatePromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		badRequest(c, appvalidator.FormatError(err))
		return
	}

	code, err := h.service.Update(c.Request.Context(), c.Param("id"), domain.PromoPatch{
		DiscountPercentage: req.DiscountPercentage,
		DiscountAmount:     req.DiscountAmount,
		StartDate:          req.StartDate,
		EndDate:            req.EndDate,
		MaxUsage:           req.MaxUsage,
		ClearMaxUsage:      req.ClearMaxUsage,
		IsActive:           req.IsActive,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPromoResponse(code))
}

func (h *PromoHandler) activate(c *gin.Context) {
	h.toggle(c, h.service.Activate)
}

func (h *PromoHandler) deactivate(c *gin.Context) {
	h.toggle(c, h.service.Deactivate)
}

func (h *PromoHandler) toggle(c *gin.Context, fn func(ctx context.Context, id string) (*domain.PromoCode, error)) {
	code, err := fn(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPromoResponse(code))
}
