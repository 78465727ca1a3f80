package flights

import (
	"sort"

	"github.com/Domenick1991/skybooking/internal/domain"
)

// FareCriteria bounds a fare search. Nil or zero fields are unconstrained.
type FareCriteria struct {
	FareClass         domain.FareClass
	MinPrice          *int64
	MaxPrice          *int64
	MinSeats          int
	Passengers        int
	MaxAvailableSeats *int
}

// Validate rejects bounds that can never match.
func (c FareCriteria) Validate() error {
	if c.FareClass != "" && classRank(c.FareClass) == len(domain.FareClassOrder) {
		return domain.Validation("unknown fare class " + string(c.FareClass))
	}
	if (c.MinPrice != nil && *c.MinPrice < 0) || (c.MaxPrice != nil && *c.MaxPrice < 0) {
		return domain.Validation("price bounds must not be negative")
	}
	if c.MinPrice != nil && c.MaxPrice != nil && *c.MaxPrice < *c.MinPrice {
		return domain.Validation("maxPrice must not be below minPrice")
	}
	if c.MinSeats < 0 || c.Passengers < 0 || (c.MaxAvailableSeats != nil && *c.MaxAvailableSeats < 0) {
		return domain.Validation("seat bounds must not be negative")
	}
	return nil
}

// FilterFares returns the fares matching every bound, ordered Economy, Business, FirstClass.
// Unknown classes sort last. Input order breaks ties and the input slice is not modified.
func FilterFares(fares []domain.Fare, c FareCriteria) []domain.Fare {
	minSeats := c.MinSeats
	if c.Passengers > minSeats {
		minSeats = c.Passengers
	}

	out := make([]domain.Fare, 0, len(fares))
	for _, f := range fares {
		switch {
		case c.FareClass != "" && f.Class != c.FareClass:
		case c.MinPrice != nil && f.Price < *c.MinPrice:
		case c.MaxPrice != nil && f.Price > *c.MaxPrice:
		case f.AvailableSeats < minSeats:
		case c.MaxAvailableSeats != nil && f.AvailableSeats > *c.MaxAvailableSeats:
		default:
			out = append(out, f)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return classRank(out[i].Class) < classRank(out[j].Class)
	})
	return out
}

func classRank(class domain.FareClass) int {
	for i, c := range domain.FareClassOrder {
		if c == class {
			return i
		}
	}
	return len(domain.FareClassOrder)
}
