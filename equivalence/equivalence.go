// Package equivalence converts carbon quantities to everyday units.
package equivalence

import (
	"math"

	"github.com/omegabytes/carbonboard/apperr"
)

// Grams of CO2eq per unit.
const (
	// LEDGramsPerHour is a 10 W LED bulb on an average grid mix.
	LEDGramsPerHour = 1.3
	// CarGramsPerMeter is a combustion car emitting ~120 g/km.
	CarGramsPerMeter = 0.12
	// SmartphoneGramsPerCharge is one full smartphone charge (US EPA).
	SmartphoneGramsPerCharge = 8.22
)

// Factor describes one equivalence unit.
type Factor struct {
	Name         string  `json:"name"`
	Unit         string  `json:"unit"`
	GramsPerUnit float64 `json:"grams_per_unit"`
}

// Equivalents expresses a carbon quantity in everyday units.
type Equivalents struct {
	CarbonGrams       float64 `json:"carbon_grams"`
	LEDHours          float64 `json:"led_hours"`
	CarMeters         float64 `json:"car_meters"`
	SmartphoneCharges float64 `json:"smartphone_charges"`
}

// Factors returns the conversion factors used by Convert.
func Factors() []Factor {
	return []Factor{
		{Name: "LED bulb (10W)", Unit: "h", GramsPerUnit: LEDGramsPerHour},
		{Name: "Combustion car", Unit: "m", GramsPerUnit: CarGramsPerMeter},
		{Name: "Smartphone charge", Unit: "charges", GramsPerUnit: SmartphoneGramsPerCharge},
	}
}

// Convert expresses totalCarbonGrams in every equivalence unit.
// The quantity must be finite and >= 0.
func Convert(totalCarbonGrams float64) (Equivalents, error) {
	if math.IsNaN(totalCarbonGrams) || math.IsInf(totalCarbonGrams, 0) || totalCarbonGrams < 0 {
		return Equivalents{}, apperr.InvalidInputf("carbon grams must be a finite number >= 0, got %v", totalCarbonGrams)
	}
	return Equivalents{
		CarbonGrams:       totalCarbonGrams,
		LEDHours:          totalCarbonGrams / LEDGramsPerHour,
		CarMeters:         totalCarbonGrams / CarGramsPerMeter,
		SmartphoneCharges: totalCarbonGrams / SmartphoneGramsPerCharge,
	}, nil
}
