package courier

import "math"

// Boxed jewelry parcel dimensions in cm.
const (
	ParcelLength  = 15
	ParcelBreadth = 10
	ParcelHeight  = 5

	minParcelWeightKg = 0.3
	weightPerUnitKg   = 0.1
)

// ParcelWeight is 0.1 kg per unit with a 0.3 kg floor.
func ParcelWeight(units int) float64 {
	w := math.Max(minParcelWeightKg, weightPerUnitKg*float64(units))
	return math.Round(w*100) / 100
}

// StandardParcel sizes the default jewelry box for the given unit count.
func StandardParcel(units int) Package {
	return Package{
		Length:  ParcelLength,
		Breadth: ParcelBreadth,
		Height:  ParcelHeight,
		Weight:  ParcelWeight(units),
	}
}
