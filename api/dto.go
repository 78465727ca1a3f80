package api

import (
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
)

type bookingResponse struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	FlightID      int64     `json:"flightId"`
	BookingTime   time.Time `json:"bookingTime"`
	OriginalPrice int64     `json:"originalPrice"`
	TotalPrice    int64     `json:"totalPrice"`
	PromoCode     string    `json:"promoCode,omitempty"`
	PromoStatus   string    `json:"promoStatus"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"paymentStatus"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	return bookingResponse{
		ID:            b.ID,
		UserID:        b.UserID,
		FlightID:      b.FlightID,
		BookingTime:   b.BookingTime,
		OriginalPrice: b.OriginalPrice,
		TotalPrice:    b.TotalPrice,
		PromoCode:     b.PromoCode,
		PromoStatus:   string(b.PromoStatus),
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

type bookingPageResponse struct {
	Items []bookingResponse `json:"items"`
	Total int               `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

type paymentResponse struct {
	ID             string     `json:"id"`
	BookingID      string     `json:"bookingId"`
	UserID         string     `json:"userId"`
	Amount         int64      `json:"amount"`
	Method         string     `json:"paymentMethod"`
	OrderID        string     `json:"orderId"`
	TransactionID  string     `json:"transactionId,omitempty"`
	ResultCode     *int       `json:"resultCode,omitempty"`
	Status         string     `json:"status"`
	RefundRequired bool       `json:"refundRequired"`
	PaymentDate    *time.Time `json:"paymentDate,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func toPaymentResponse(p *domain.Payment) paymentResponse {
	return paymentResponse{
		ID:             p.ID,
		BookingID:      p.BookingID,
		UserID:         p.UserID,
		Amount:         p.Amount,
		Method:         string(p.Method),
		OrderID:        p.OrderID,
		TransactionID:  p.TransactionID,
		ResultCode:     p.ResultCode,
		Status:         string(p.Status),
		RefundRequired: p.RefundRequired,
		PaymentDate:    p.PaymentDate,
		CreatedAt:      p.CreatedAt,
	}
}

type promoResponse struct {
	ID                 string    `json:"id"`
	Code               string    `json:"code"`
	DiscountPercentage *int      `json:"discountPercentage,omitempty"`
	DiscountAmount     *int64    `json:"discountAmount,omitempty"`
	StartDate          time.Time `json:"startDate"`
	EndDate            time.Time `json:"endDate"`
	MaxUsage           *int      `json:"maxUsage,omitempty"`
	UsedCount          int       `json:"usedCount"`
	IsActive           bool      `json:"isActive"`
}

func toPromoResponse(p *domain.PromoCode) promoResponse {
	return promoResponse{
		ID:                 p.ID,
		Code:               p.Code,
		DiscountPercentage: p.DiscountPercentage,
		DiscountAmount:     p.DiscountAmount,
		StartDate:          p.StartDate,
		EndDate:            p.EndDate,
		MaxUsage:           p.MaxUsage,
		UsedCount:          p.UsedCount,
		IsActive:           p.IsActive,
	}
}
