// Package carbonboard estimates the carbon footprint of individual LLM inference calls and
// aggregates it per user session.
//
// The functions here wire the built-in hardware catalog, grid intensities and fabrication
// constants; use the impact, ledger and tracker packages directly for custom setups.
package carbonboard

import (
	"sync"

	"github.com/omegabytes/carbonboard/compare"
	"github.com/omegabytes/carbonboard/equivalence"
	"github.com/omegabytes/carbonboard/grid"
	"github.com/omegabytes/carbonboard/hardware"
	"github.com/omegabytes/carbonboard/impact"
	"github.com/omegabytes/carbonboard/ledger"
	"github.com/omegabytes/carbonboard/provider"
	"github.com/omegabytes/carbonboard/tracker"
)

var defaultModel = sync.OnceValue(impact.Default)

// NewModel returns a carbon model over the built-in catalog and grid table.
func NewModel(opts ...impact.Option) (*impact.Model, error) {
	return impact.NewModel(hardware.Builtin(), grid.Builtin(), opts...)
}

// ComputeCarbonGrams returns the gCO2eq of a call to modelID lasting elapsedSeconds,
// using the built-in constants.
func ComputeCarbonGrams(modelID string, elapsedSeconds float64) (float64, error) {
	return defaultModel().ComputeCarbonGrams(modelID, elapsedSeconds)
}

// NewLedger returns an empty session ledger.
func NewLedger() *ledger.Ledger {
	return ledger.New()
}

// Equivalents expresses a carbon quantity in everyday units.
func Equivalents(totalCarbonGrams float64) (equivalence.Equivalents, error) {
	return equivalence.Convert(totalCarbonGrams)
}

// CompareModels groups entries by model.
func CompareModels(entries []ledger.Entry) map[string]compare.ModelStats {
	return compare.ByModel(entries)
}

// NewTracker returns an in-memory tracker over the built-in constants and providers.
func NewTracker(providers ...provider.Provider) *tracker.Tracker {
	return tracker.New(defaultModel(), provider.NewRegistry(providers...), ledger.NewRegistry(nil))
}
