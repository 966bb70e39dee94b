/*
Package impact estimates the carbon footprint of a single generative AI inference call.

The footprint combines two terms that are both linear in the request duration:

	operational = devices * powerKW * PUE * intensity * hours
	embodied    = hours / lifetimeHours * totalHardwareCarbon

and is reported in grams of CO2 equivalent.
*/
package impact

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/omegabytes/carbonboard/apperr"
	"github.com/omegabytes/carbonboard/grid"
	"github.com/omegabytes/carbonboard/hardware"
)

const secondsPerHour = 3600

// Estimate is the breakdown of one carbon computation.
type Estimate struct {
	Model             string           `json:"model"`
	KnownModel        bool             `json:"known_model"`
	Profile           hardware.Profile `json:"profile"`
	Region            string           `json:"region"`
	ElapsedSeconds    float64          `json:"elapsed_seconds"`
	PowerKW           float64          `json:"power_kw"`
	EnergyKWh         float64          `json:"energy_kwh"`
	IntensityKgPerKWh float64          `json:"intensity_kg_per_kwh"`
	OperationalKg     float64          `json:"operational_kg"`
	EmbodiedKg        float64          `json:"embodied_kg"`
	TotalGrams        float64          `json:"total_grams"`
}

// Model computes carbon estimates from static hardware, grid and fabrication data.
// A Model is read-only after construction and safe for concurrent use.
type Model struct {
	catalog       *hardware.Catalog
	grid          *grid.Table
	pue           float64
	lifetimeHours float64
	fabrication   FabricationCosts
	hardwareKg    float64
	logger        *slog.Logger
}

// Option configures a Model.
type Option func(*Model)

// WithPUE sets the datacenter power usage effectiveness.
func WithPUE(pue float64) Option {
	return func(m *Model) { m.pue = pue }
}

// WithLifetimeYears sets the hardware lifetime used to amortize fabrication impacts.
func WithLifetimeYears(years float64) Option {
	return func(m *Model) { m.lifetimeHours = LifetimeHours(years) }
}

// WithFabrication replaces the fabrication cost table.
func WithFabrication(f FabricationCosts) Option {
	return func(m *Model) {
		m.fabrication = make(FabricationCosts, len(f))
		for k, v := range f {
			m.fabrication[k] = v
		}
	}
}

// WithLogger sets the logger used to report profile fallbacks.
func WithLogger(l *slog.Logger) Option {
	return func(m *Model) { m.logger = l }
}

// NewModel returns a Model over cat and table. Unset options take the module defaults.
func NewModel(cat *hardware.Catalog, table *grid.Table, opts ...Option) (*Model, error) {
	switch {
	case cat == nil:
		return nil, fmt.Errorf("hardware catalog cannot be nil")
	case table == nil:
		return nil, fmt.Errorf("carbon intensity table cannot be nil")
	}

	m := &Model{
		catalog:       cat,
		grid:          table,
		pue:           DefaultPUE,
		lifetimeHours: LifetimeHours(DefaultLifetimeYears),
		fabrication:   DefaultFabrication(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if math.IsNaN(m.pue) || m.pue < 1 || math.IsInf(m.pue, 0) {
		return nil, fmt.Errorf("PUE must be a finite number >= 1, got %v", m.pue)
	}
	if math.IsNaN(m.lifetimeHours) || m.lifetimeHours <= 0 || math.IsInf(m.lifetimeHours, 0) {
		return nil, fmt.Errorf("hardware lifetime must be greater than 0, got %v hours", m.lifetimeHours)
	}
	if err := m.fabrication.validate(); err != nil {
		return nil, err
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.hardwareKg = m.fabrication.Total()

	return m, nil
}

// Default returns a Model over the built-in catalog, grid table and constants.
func Default() *Model {
	m, err := NewModel(hardware.Builtin(), grid.Builtin())
	if err != nil {
		panic(fmt.Sprintf("impact: built-in constants are invalid: %v", err))
	}
	return m
}

// ComputeCarbonGrams returns the total carbon footprint in gCO2eq of a call to modelID that
// kept the serving hardware busy for elapsedSeconds.
//
// elapsedSeconds must be finite and >= 0; otherwise an error wrapping apperr.ErrInvalidInput is
// returned. Unknown models use the catalog fallback profile.
func (m *Model) ComputeCarbonGrams(modelID string, elapsedSeconds float64) (float64, error) {
	est, err := m.Estimate(modelID, elapsedSeconds)
	if err != nil {
		return 0, err
	}
	return est.TotalGrams, nil
}

// Estimate is ComputeCarbonGrams with the intermediate values.
func (m *Model) Estimate(modelID string, elapsedSeconds float64) (Estimate, error) {
	if math.IsNaN(elapsedSeconds) || math.IsInf(elapsedSeconds, 0) || elapsedSeconds < 0 {
		return Estimate{}, apperr.InvalidInputf("elapsed seconds must be a finite number >= 0, got %v", elapsedSeconds)
	}

	profile, known := m.catalog.Lookup(modelID)
	if !known {
		m.logger.Warn("Unknown model, using default hardware profile", "model", modelID)
	}

	intensity, region := m.grid.Resolve(profile.Region)
	powerKW := profile.TotalPowerKW()
	elapsedHours := elapsedSeconds / secondsPerHour

	operational := operationalKg(powerKW, m.pue, intensity, elapsedHours)
	embodied := embodiedKg(m.hardwareKg, m.lifetimeHours, elapsedHours)

	return Estimate{
		Model:             modelID,
		KnownModel:        known,
		Profile:           profile,
		Region:            region,
		ElapsedSeconds:    elapsedSeconds,
		PowerKW:           powerKW,
		EnergyKWh:         powerKW * m.pue * elapsedHours,
		IntensityKgPerKWh: intensity,
		OperationalKg:     operational,
		EmbodiedKg:        embodied,
		TotalGrams:        totalGrams(operational, embodied),
	}, nil
}

// PUE returns the datacenter power usage effectiveness.
func (m *Model) PUE() float64 { return m.pue }

// LifetimeHours returns the hardware lifetime in hours.
func (m *Model) LifetimeHours() float64 { return m.lifetimeHours }

// HardwareCarbonKg returns the total fabrication impact amortized per call, in kgCO2eq.
func (m *Model) HardwareCarbonKg() float64 { return m.hardwareKg }

// Catalog returns the hardware catalog.
func (m *Model) Catalog() *hardware.Catalog { return m.catalog }

// Grid returns the carbon intensity table.
func (m *Model) Grid() *grid.Table { return m.grid }
