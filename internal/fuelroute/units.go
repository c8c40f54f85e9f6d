package fuelroute

// MetersPerMile is the divisor used to turn provider distances (meters) into miles.
const MetersPerMile = 1609.34

// MetersToMiles converts a distance reported in meters to miles.
func MetersToMiles(meters float64) float64 {
	return meters / MetersPerMile
}
