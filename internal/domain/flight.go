package domain

import "time"

type Flight struct {
	ID             int64
	FromAirport    string
	ToAirport      string
	DepartureTime  time.Time
	ArrivalTime    time.Time
	TotalSeats     int
	AvailableSeats int
	PriceCents     int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type FareClass string

const (
	FareClassEconomy    FareClass = "Economy"
	FareClassBusiness   FareClass = "Business"
	FareClassFirstClass FareClass = "FirstClass"
)

// FareClassOrder is the fixed presentation order of fare classes.
var FareClassOrder = []FareClass{FareClassEconomy, FareClassBusiness, FareClassFirstClass}

type Fare struct {
	Class          FareClass `json:"class"`
	Price          int64     `json:"price"`
	AvailableSeats int       `json:"availableSeats"`
	Perks          []string  `json:"perks"`
}
