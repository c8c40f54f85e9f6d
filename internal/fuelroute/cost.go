package fuelroute

import (
	"fmt"
	"math"
)

const centsPerUnit = 100

// ComputeTotalCost prices the fuel burned between consecutive stops at each stop's
// station price. The result is rounded to cents with round-half-to-even, so an
// exact 0.125 becomes 0.12 and 0.375 becomes 0.38.
func ComputeTotalCost(stops []Stop, milesPerGallon float64) (float64, error) {
	if !(milesPerGallon > 0) || math.IsInf(milesPerGallon, 0) {
		return 0, fmt.Errorf("%w: miles per gallon must be positive, got %v", ErrInvalidConfiguration, milesPerGallon)
	}

	var total float64
	for i, stop := range stops {
		distance := stop.CumulativeDistance
		if i > 0 {
			distance -= stops[i-1].CumulativeDistance
		}
		gallons := distance / milesPerGallon
		total += gallons * stop.Station.Price
	}

	return roundCents(total), nil
}

func roundCents(v float64) float64 {
	return math.RoundToEven(v*centsPerUnit) / centsPerUnit
}
