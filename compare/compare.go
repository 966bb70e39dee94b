/*
Package compare derives cross-model comparisons and the session timeline from ledger entries.
*/
package compare

import (
	"sort"

	"github.com/omegabytes/carbonboard/ledger"
)

// ModelStats aggregates the calls made to one model.
type ModelStats struct {
	CallCount          int     `json:"call_count"`
	MeanCarbonGrams    float64 `json:"mean_carbon_grams"`
	MeanElapsedSeconds float64 `json:"mean_elapsed_seconds"`
}

// ModelSummary is ModelStats labelled with its model, for ordered display.
type ModelSummary struct {
	Model string `json:"model"`
	ModelStats
}

// Point is one call of the session timeline. Call numbers start at 1.
type Point struct {
	Call            int     `json:"call"`
	Model           string  `json:"model"`
	CarbonGrams     float64 `json:"carbon_grams"`
	CumulativeGrams float64 `json:"cumulative_grams"`
}

// ByModel groups entries by model identifier, exactly as recorded, and averages each group.
// Values are summed in sorted order so the result does not depend on the order of entries.
func ByModel(entries []ledger.Entry) map[string]ModelStats {
	carbon := make(map[string][]float64)
	elapsed := make(map[string][]float64)
	for _, e := range entries {
		carbon[e.Model] = append(carbon[e.Model], e.CarbonGrams)
		elapsed[e.Model] = append(elapsed[e.Model], e.ElapsedSeconds)
	}

	out := make(map[string]ModelStats, len(carbon))
	for model, grams := range carbon {
		n := float64(len(grams))
		out[model] = ModelStats{
			CallCount:          len(grams),
			MeanCarbonGrams:    sortedSum(grams) / n,
			MeanElapsedSeconds: sortedSum(elapsed[model]) / n,
		}
	}
	return out
}

// Sorted orders stats by model identifier.
func Sorted(stats map[string]ModelStats) []ModelSummary {
	out := make([]ModelSummary, 0, len(stats))
	for model, s := range stats {
		out = append(out, ModelSummary{Model: model, ModelStats: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}

// Timeline numbers entries in insertion order with a running carbon total.
func Timeline(entries []ledger.Entry) []Point {
	out := make([]Point, 0, len(entries))
	var cumulative float64
	for i, e := range entries {
		cumulative += e.CarbonGrams
		out = append(out, Point{
			Call:            i + 1,
			Model:           e.Model,
			CarbonGrams:     e.CarbonGrams,
			CumulativeGrams: cumulative,
		})
	}
	return out
}

func sortedSum(values []float64) float64 {
	sort.Float64s(values)
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum
}
