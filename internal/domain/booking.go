package domain

import "time"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "UNPAID"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// PromoStatus tracks a promo code attached at checkout until the payment settles.
type PromoStatus string

const (
	PromoStatusNone     PromoStatus = "NONE"
	PromoStatusPending  PromoStatus = "PENDING"
	PromoStatusRedeemed PromoStatus = "REDEEMED"
	PromoStatusRejected PromoStatus = "REJECTED"
)

type Booking struct {
	ID            string
	UserID        string
	FlightID      int64
	BookingTime   time.Time
	OriginalPrice int64
	TotalPrice    int64
	PromoCode     string
	PromoStatus   PromoStatus
	Status        BookingStatus
	PaymentStatus PaymentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusCancelled},
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusUnpaid: {PaymentStatusPaid},
	PaymentStatusPaid:   {PaymentStatusRefunded},
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled:
		return true
	}
	return false
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPaid, PaymentStatusRefunded:
		return true
	}
	return false
}

// CanTransitionTo reports whether the booking status machine allows from -> to.
func (s BookingStatus) CanTransitionTo(to BookingStatus) bool {
	for _, next := range bookingTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether paymentStatus may move from s to to. The order is monotonic.
func (s PaymentStatus) CanTransitionTo(to PaymentStatus) bool {
	for _, next := range paymentTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Payable reports whether a charge may be initiated for the booking. It matches the
// precondition of the repository's MarkPaid, so an admin-confirmed unpaid booking can still be charged.
func (b *Booking) Payable() bool {
	return b.Status != BookingStatusCancelled && b.PaymentStatus == PaymentStatusUnpaid
}

// BookingFilter drives the paginated search. Nil fields are unconstrained.
type BookingFilter struct {
	UserID        string
	FlightID      *int64
	Status        *BookingStatus
	PaymentStatus *PaymentStatus
	From          *time.Time
	To            *time.Time
	MinPrice      *int64
	MaxPrice      *int64
	Page          int
	Limit         int
	SortBy        string
	Descending    bool
}

// BookingSortColumns whitelists sortable columns.
var BookingSortColumns = map[string]string{
	"bookingTime": "booking_time",
	"totalPrice":  "total_price",
	"createdAt":   "created_at",
}

type BookingPage struct {
	Items []Booking
	Total int
	Page  int
	Limit int
}
