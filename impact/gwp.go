package impact

// operationalKg computes the usage impact of the request in kgCO2eq: the power drawn by the
// serving devices, inflated by datacenter overhead, over the request duration.
// The intensity is the grid carbon intensity in kgCO2eq / kWh.
func operationalKg(totalPowerKW, pue, intensity, elapsedHours float64) float64 {
	return totalPowerKW * pue * intensity * elapsedHours
}

// embodiedKg computes the share of the hardware manufacturing impact attributed to the
// request, amortized linearly over the hardware lifetime.
func embodiedKg(hardwareCarbonKg, lifetimeHours, elapsedHours float64) float64 {
	return (elapsedHours / lifetimeHours) * hardwareCarbonKg
}

// totalGrams combines usage and embodied impacts and converts kg to g.
func totalGrams(operational, embodied float64) float64 {
	return (operational + embodied) * 1000
}
