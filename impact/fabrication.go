package impact

import (
	"fmt"
	"math"
	"sort"
)

const (
	// DefaultLifetimeYears is the assumed operational lifetime of serving hardware.
	DefaultLifetimeYears = 4
	// DefaultPUE is the assumed datacenter power usage effectiveness.
	DefaultPUE = 1.1

	hoursPerYear = 365.25 * 24
)

// FabricationCosts maps a hardware component to its one-time manufacturing impact in kgCO2eq.
type FabricationCosts map[string]float64

// DefaultFabrication returns the embodied impacts of one serving node.
func DefaultFabrication() FabricationCosts {
	const (
		cpuKg  = 1.47
		dramKg = 102.4
		ssdKg  = 576.0
		h100Kg = 14.652
	)

	return FabricationCosts{
		"CPU":  cpuKg,
		"DRAM": dramKg,
		"SSD":  ssdKg,
		"H100": h100Kg,
	}
}

// Total returns the sum of all component costs in kgCO2eq. Components are summed in name order
// so the result does not depend on map iteration.
func (f FabricationCosts) Total() float64 {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)

	var total float64
	for _, name := range names {
		total += f[name]
	}
	return total
}

func (f FabricationCosts) validate() error {
	for name, kg := range f {
		if math.IsNaN(kg) || math.IsInf(kg, 0) || kg < 0 {
			return fmt.Errorf("fabrication cost of %q must be a non-negative number, got %v", name, kg)
		}
	}
	return nil
}

// LifetimeHours converts a lifetime in years to hours.
func LifetimeHours(years float64) float64 {
	return years * hoursPerYear
}
