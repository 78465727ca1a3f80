package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const MinDiscountAmount = 1000

type PromoCode struct {
	ID                 string
	Code               string
	DiscountPercentage *int
	DiscountAmount     *int64
	StartDate          time.Time
	EndDate            time.Time
	MaxUsage           *int
	UsedCount          int
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NormalizeCode upper-cases and trims a code so lookups are case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Redeemable is the predicate shared by validate and redeem.
func (p *PromoCode) Redeemable(now time.Time) bool {
	if !p.IsActive {
		return false
	}
	if now.Before(p.StartDate) || now.After(p.EndDate) {
		return false
	}
	return p.MaxUsage == nil || p.UsedCount < *p.MaxUsage
}

// CheckDiscount enforces percentage XOR amount and their ranges.
func CheckDiscount(pct *int, amount *int64) error {
	switch {
	case pct != nil && amount != nil:
		return Validation("discountPercentage and discountAmount are mutually exclusive")
	case pct == nil && amount == nil:
		return Validation("either discountPercentage or discountAmount is required")
	case pct != nil && (*pct < 1 || *pct > 100):
		return Validation("discountPercentage must be between 1 and 100")
	case amount != nil && *amount < MinDiscountAmount:
		return Validation("discountAmount must be at least 1000")
	}
	return nil
}

func CheckWindow(start, end time.Time) error {
	if end.Before(start) {
		return Validation("endDate must not be before startDate")
	}
	return nil
}

// PromoPatch is a partial update. Nil fields are left unchanged.
type PromoPatch struct {
	DiscountPercentage *int
	DiscountAmount     *int64
	StartDate          *time.Time
	EndDate            *time.Time
	MaxUsage           *int
	// ClearMaxUsage removes the usage cap. It cannot be combined with MaxUsage.
	ClearMaxUsage      bool
	IsActive           *bool
}

// TouchesValue reports whether the patch changes fields that freeze after first use.
func (p PromoPatch) TouchesValue() bool {
	return p.DiscountPercentage != nil || p.DiscountAmount != nil || p.StartDate != nil || p.EndDate != nil
}

// Apply returns a copy of code with the patch applied.
func (p PromoPatch) Apply(code PromoCode) PromoCode {
	if p.DiscountPercentage != nil {
		code.DiscountPercentage = p.DiscountPercentage
		code.DiscountAmount = nil
	}
	if p.DiscountAmount != nil {
		code.DiscountAmount = p.DiscountAmount
		code.DiscountPercentage = nil
	}
	if p.StartDate != nil {
		code.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		code.EndDate = *p.EndDate
	}
	if p.MaxUsage != nil {
		code.MaxUsage = p.MaxUsage
	}
	if p.ClearMaxUsage {
		code.MaxUsage = nil
	}
	if p.IsActive != nil {
		code.IsActive = *p.IsActive
	}
	return code
}

// DiscountedPrice applies the code's discount to price, never going below zero.
// Percentages round half-up to the minor unit.
func (p *PromoCode) DiscountedPrice(price int64) int64 {
	total := decimal.NewFromInt(price)
	switch {
	case p.DiscountPercentage != nil:
		off := total.Mul(decimal.NewFromInt(int64(*p.DiscountPercentage))).Div(decimal.NewFromInt(100)).Round(0)
		total = total.Sub(off)
	case p.DiscountAmount != nil:
		total = total.Sub(decimal.NewFromInt(*p.DiscountAmount))
	}
	if total.IsNegative() {
		return 0
	}
	return total.IntPart()
}
