package kafka

import "time"

// Event types published on the booking and payment topics. Every event is mirrored
// onto the notifications topic when one is configured.
const (
	EventBookingCreated          = "booking_created"
	EventBookingUpdated          = "booking_updated"
	EventBookingConfirmed        = "booking_confirmed"
	EventBookingCancelled        = "booking_cancelled"
	EventBookingRefunded         = "booking_refunded"
	EventPaymentInitiated        = "payment_initiated"
	EventPaymentSucceeded        = "payment_succeeded"
	EventPaymentFailed           = "payment_failed"
	EventPaymentRefundRequired   = "payment_refund_required"
	EventPromoRedemptionRejected = "promo_redemption_rejected"
)

type BookingEvent struct {
	Type          string    `json:"type"`
	BookingID     string    `json:"booking_id"`
	UserID        string    `json:"user_id"`
	FlightID      int64     `json:"flight_id"`
	TotalPrice    int64     `json:"total_price"`
	PromoCode     string    `json:"promo_code,omitempty"`
	PromoStatus   string    `json:"promo_status,omitempty"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type PaymentEvent struct {
	Type           string    `json:"type"`
	OrderID        string    `json:"order_id"`
	BookingID      string    `json:"booking_id"`
	UserID         string    `json:"user_id"`
	Method         string    `json:"method"`
	Amount         int64     `json:"amount"`
	Status         string    `json:"status"`
	TransactionID  string    `json:"transaction_id,omitempty"`
	ResultCode     *int      `json:"result_code,omitempty"`
	RefundRequired bool      `json:"refund_required,omitempty"`
	PromoCode      string    `json:"promo_code,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Notification is the subset of fields shared by both event kinds, as read by the worker.
type Notification struct {
	Type      string    `json:"type"`
	BookingID string    `json:"booking_id"`
	UserID    string    `json:"user_id"`
	OrderID   string    `json:"order_id,omitempty"`
	Status    string    `json:"status"`
	Amount    int64     `json:"amount,omitempty"`
	Total     int64     `json:"total_price,omitempty"`
	PromoCode string    `json:"promo_code,omitempty"`
	At        time.Time `json:"occurred_at"`
}
