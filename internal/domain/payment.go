package domain

import (
	"strings"
	"time"
)

type PaymentMethod string

const (
	PaymentMethodMoMo    PaymentMethod = "MOMO"
	PaymentMethodZaloPay PaymentMethod = "ZALOPAY"
)

// ParsePaymentMethod accepts the method case-insensitively, as it appears in URLs.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case PaymentMethodMoMo, PaymentMethodZaloPay:
		return m, nil
	}
	return "", ErrUnsupportedMethod
}

type PaymentRecordStatus string

const (
	PaymentPending PaymentRecordStatus = "PENDING"
	PaymentSuccess PaymentRecordStatus = "SUCCESS"
	PaymentFailed  PaymentRecordStatus = "FAILED"
)

func (s PaymentRecordStatus) Terminal() bool {
	return s == PaymentSuccess || s == PaymentFailed
}

// Payment is one charge attempt. Attempts are append-only; orderId is the callback idempotency key.
type Payment struct {
	ID             string
	BookingID      string
	UserID         string
	Amount         int64
	Method         PaymentMethod
	OrderID        string
	TransactionID  string
	ResultCode     *int
	Status         PaymentRecordStatus
	RefundRequired bool
	PaymentDate    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AmountLimits bounds a single charge in minor units.
type AmountLimits struct {
	Min int64
	Max int64
}

var DefaultAmountLimits = AmountLimits{Min: 1000, Max: 20_000_000}

func (l AmountLimits) Check(amount int64) error {
	if amount < l.Min || amount > l.Max {
		return ErrAmountOutOfRange
	}
	return nil
}

// StatusForResultCode maps the provider's opaque result code. Only 0 is success.
func StatusForResultCode(code int) PaymentRecordStatus {
	if code == 0 {
		return PaymentSuccess
	}
	return PaymentFailed
}
