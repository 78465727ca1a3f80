package email

import (
	"context"
	"fmt"

	"github.com/Domenick1991/skybooking/internal/kafka"
	"github.com/rs/zerolog/log"
)

// DeliverFunc hands a rendered message to the mail transport.
type DeliverFunc func(ctx context.Context, userID, subject, body string) error

type Sender struct {
	deliver DeliverFunc
}

// NewSender logs messages instead of mailing them when deliver is nil.
func NewSender(deliver DeliverFunc) *Sender {
	if deliver == nil {
		deliver = logDelivery
	}
	return &Sender{deliver: deliver}
}

// Send renders n. Event types without a template are ignored.
func (s *Sender) Send(ctx context.Context, n kafka.Notification) error {
	subject, body, ok := Render(n)
	if !ok {
		return nil
	}
	return s.deliver(ctx, n.UserID, subject, body)
}

func Render(n kafka.Notification) (subject, body string, ok bool) {
	switch n.Type {
	case kafka.EventBookingCreated:
		return "Booking received", fmt.Sprintf("Booking %s is awaiting payment of %d.", n.BookingID, n.Total), true
	case kafka.EventPaymentSucceeded:
		return "Payment confirmed", fmt.Sprintf("Payment %s for booking %s succeeded.", n.OrderID, n.BookingID), true
	case kafka.EventPaymentFailed:
		return "Payment failed", fmt.Sprintf("Payment %s for booking %s failed. You can retry from your booking page.", n.OrderID, n.BookingID), true
	case kafka.EventBookingCancelled:
		return "Booking cancelled", fmt.Sprintf("Booking %s was cancelled.", n.BookingID), true
	case kafka.EventBookingRefunded:
		return "Refund on its way", fmt.Sprintf("Booking %s was cancelled and will be refunded.", n.BookingID), true
	case kafka.EventPromoRedemptionRejected:
		return "Promo code not applied", fmt.Sprintf("Promo code %s ran out before your payment for booking %s completed.", n.PromoCode, n.BookingID), true
	}
	return "", "", false
}

func logDelivery(ctx context.Context, userID, subject, body string) error {
	log.Info().Str("user_id", userID).Str("subject", subject).Msg(body)
	return nil
}
