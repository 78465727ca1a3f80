package domain

import "errors"

// Error kinds. Concrete errors wrap one of these so callers can branch with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrValidation       = errors.New("validation error")
	ErrUpstream         = errors.New("upstream error")
)

var (
	ErrBookingNotFound = wrap(ErrNotFound, "booking not found")
	ErrPaymentNotFound = wrap(ErrNotFound, "payment not found")
	ErrFlightNotFound  = wrap(ErrNotFound, "flight not found")
	// ErrPromoCodeNotFound covers unknown, expired, exhausted and inactive codes alike.
	ErrPromoCodeNotFound = wrap(ErrNotFound, "promo code not found")

	ErrIllegalTransition   = wrap(ErrConflict, "illegal status transition")
	ErrBookingNotPayable   = wrap(ErrConflict, "booking is not awaiting payment")
	ErrBookingModified     = wrap(ErrConflict, "booking was modified concurrently")
	ErrPromoCodeExists     = wrap(ErrConflict, "promo code already exists")
	ErrPromoCodeInUse      = wrap(ErrConflict, "promo code discount is locked after first use")
	ErrPromoCodeExhausted  = wrap(ErrConflict, "promo code exhausted between checkout and payment")
	ErrBookingNotPurgeable = wrap(ErrConflict, "only cancelled bookings without a successful payment can be purged")
	ErrDuplicateOrderID    = wrap(ErrConflict, "order id already exists")
	ErrPaymentSettled      = wrap(ErrConflict, "payment already settled")
	ErrNoSeatsAvailable    = wrap(ErrConflict, "no available seats")

	ErrUnsupportedMethod = wrap(ErrValidation, "unsupported payment method")
	ErrAmountOutOfRange  = wrap(ErrValidation, "amount out of range")

	// ErrDiscountBelowMinimum rejects a promo that would leave a total no gateway accepts.
	ErrDiscountBelowMinimum = wrap(ErrValidation, "promo code discount leaves less than the minimum charge")
)

type kindError struct {
	kind error
	msg  string
}

func wrap(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// Validation builds an ad-hoc validation error.
func Validation(msg string) error {
	return wrap(ErrValidation, msg)
}
