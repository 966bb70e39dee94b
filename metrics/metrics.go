// Package metrics exposes Prometheus instrumentation for carbon estimates and inference calls.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status constants for metrics
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// UnknownModel labels estimates for models missing from the hardware catalog.
const UnknownModel = "unknown"

// ModelLabel returns the model label value. Uncatalogued models share UnknownModel.
func ModelLabel(model string, known bool) string {
	if !known {
		return UnknownModel
	}
	return model
}

var (
	// EstimatesTotal tracks carbon estimates computed, by catalogued model
	EstimatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carbonboard_estimates_total",
			Help: "Total number of carbon estimates computed.",
		},
		[]string{"model"},
	)

	// CarbonGramsTotal accumulates estimated emissions recorded in session ledgers, by catalogued model
	CarbonGramsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carbonboard_carbon_grams_total",
			Help: "Total estimated gCO2eq of recorded inference calls.",
		},
		[]string{"model"},
	)

	// ProfileFallbacks counts estimates for models missing from the hardware catalog
	ProfileFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carbonboard_profile_fallbacks_total",
			Help: "Total number of estimates that used the default hardware profile.",
		},
	)

	// InferenceCalls tracks provider calls by provider and status
	InferenceCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carbonboard_inference_calls_total",
			Help: "Total number of inference provider calls.",
		},
		[]string{"provider", "status"},
	)

	// InferenceDuration tracks the wall-clock latency of provider calls
	InferenceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "carbonboard_inference_duration_seconds",
			Help:    "Histogram of inference provider call durations.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"provider"},
	)

	// LedgerEntries counts entries appended to session ledgers
	LedgerEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carbonboard_ledger_entries_total",
			Help: "Total number of entries appended to session ledgers.",
		},
		[]string{"status"},
	)

	// SessionResets counts explicit session resets
	SessionResets = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carbonboard_session_resets_total",
			Help: "Total number of session ledgers cleared.",
		},
	)
)
