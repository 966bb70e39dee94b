/*
Package tracker runs the carbonboard control flow: call a provider, estimate the footprint of
the call from its measured duration and record the result in the caller's session ledger.
*/
package tracker

import (
	"context"
	"log/slog"
	"strings"

	"github.com/omegabytes/carbonboard/apperr"
	"github.com/omegabytes/carbonboard/compare"
	"github.com/omegabytes/carbonboard/equivalence"
	"github.com/omegabytes/carbonboard/impact"
	"github.com/omegabytes/carbonboard/ledger"
	"github.com/omegabytes/carbonboard/metrics"
	"github.com/omegabytes/carbonboard/provider"
)

// Call is an inference call measured by the caller.
type Call struct {
	Provider       string  `json:"provider"`
	Model          string  `json:"model"`
	Prompt         string  `json:"prompt"`
	Response       string  `json:"response"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	Failed         bool    `json:"failed"`
}

// Summary is the session overview: totals and what the total emissions compare to.
type Summary struct {
	ledger.Totals
	Equivalents equivalence.Equivalents `json:"equivalents"`
}

// Tracker ties providers, the carbon model and session ledgers together.
// It is safe for concurrent use.
type Tracker struct {
	model     *impact.Model
	providers *provider.Registry
	sessions  *ledger.Registry
	logger    *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// New returns a tracker. Nil providers or sessions are replaced by empty in-memory ones.
func New(model *impact.Model, providers *provider.Registry, sessions *ledger.Registry, opts ...Option) *Tracker {
	if model == nil {
		model = impact.Default()
	}
	if providers == nil {
		providers = provider.NewRegistry()
	}
	if sessions == nil {
		sessions = ledger.NewRegistry(nil)
	}
	t := &Tracker{
		model:     model,
		providers: providers,
		sessions:  sessions,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) Model() *impact.Model          { return t.model }
func (t *Tracker) Providers() *provider.Registry { return t.providers }
func (t *Tracker) Sessions() *ledger.Registry    { return t.sessions }

// NewSession issues a fresh session id.
func (t *Tracker) NewSession() string {
	id := t.sessions.NewSession()
	t.logger.Debug("Session created", "session", id)
	return id
}

// Estimate computes the footprint of a call without recording it.
func (t *Tracker) Estimate(modelID string, elapsedSeconds float64) (impact.Estimate, error) {
	est, err := t.model.Estimate(modelID, elapsedSeconds)
	if err != nil {
		return impact.Estimate{}, err
	}
	metrics.EstimatesTotal.WithLabelValues(metrics.ModelLabel(est.Model, est.KnownModel)).Inc()
	if !est.KnownModel {
		metrics.ProfileFallbacks.Inc()
	}
	return est, nil
}

// Submit sends prompt to the named provider and records the call in the session.
//
// When the provider fails after the request was sent, the call is still recorded with
// Failed set and the error text as response, and the returned error wraps the
// *provider.CallError. Failures before the request is sent record nothing.
func (t *Tracker) Submit(ctx context.Context, sessionID, providerName, model, prompt string) (ledger.Entry, error) {
	if err := ledger.ValidateSessionID(sessionID); err != nil {
		return ledger.Entry{}, err
	}
	if strings.TrimSpace(prompt) == "" {
		return ledger.Entry{}, apperr.InvalidInputf("prompt cannot be empty")
	}
	p, err := t.providers.Lookup(providerName)
	if err != nil {
		return ledger.Entry{}, err
	}
	if model == "" {
		if models := p.Models(); len(models) > 0 {
			model = models[0]
		}
	}

	completion, callErr := p.Complete(ctx, model, prompt)
	call := Call{Provider: p.Name(), Model: model, Prompt: prompt}

	if callErr != nil {
		metrics.InferenceCalls.WithLabelValues(p.Name(), metrics.StatusFailed).Inc()
		ce, sent := provider.AsCallError(callErr)
		if !sent {
			return ledger.Entry{}, callErr
		}
		metrics.InferenceDuration.WithLabelValues(p.Name()).Observe(ce.Elapsed.Seconds())
		t.logger.Warn("Inference call failed", "provider", p.Name(), "model", model,
			"elapsed", ce.Elapsed, "error", ce.Err)

		call.Response = "Error: " + ce.Err.Error()
		call.ElapsedSeconds = ce.Elapsed.Seconds()
		call.Failed = true
		entry, err := t.Record(ctx, sessionID, call)
		if err != nil {
			return ledger.Entry{}, err
		}
		return entry, callErr
	}

	metrics.InferenceCalls.WithLabelValues(p.Name(), metrics.StatusSuccess).Inc()
	metrics.InferenceDuration.WithLabelValues(p.Name()).Observe(completion.Elapsed.Seconds())

	call.Response = completion.Text
	call.ElapsedSeconds = completion.Elapsed.Seconds()
	return t.Record(ctx, sessionID, call)
}

// Record estimates the footprint of an externally measured call and appends it to the session.
func (t *Tracker) Record(ctx context.Context, sessionID string, c Call) (ledger.Entry, error) {
	if strings.TrimSpace(c.Model) == "" {
		return ledger.Entry{}, apperr.InvalidInputf("model cannot be empty")
	}
	est, err := t.Estimate(c.Model, c.ElapsedSeconds)
	if err != nil {
		return ledger.Entry{}, err
	}

	status := metrics.StatusSuccess
	if c.Failed {
		status = metrics.StatusFailed
	}
	entry, err := t.sessions.Append(ctx, sessionID, ledger.Entry{
		Prompt:         c.Prompt,
		Model:          c.Model,
		Response:       c.Response,
		CarbonGrams:    est.TotalGrams,
		ElapsedSeconds: c.ElapsedSeconds,
		Provider:       c.Provider,
		Failed:         c.Failed,
	})
	if err != nil {
		return ledger.Entry{}, err
	}
	metrics.LedgerEntries.WithLabelValues(status).Inc()
	metrics.CarbonGramsTotal.WithLabelValues(metrics.ModelLabel(est.Model, est.KnownModel)).Add(entry.CarbonGrams)

	t.logger.Info("Recorded inference call",
		"session", sessionID,
		"provider", c.Provider,
		"model", c.Model,
		"elapsed_seconds", c.ElapsedSeconds,
		"carbon_grams", entry.CarbonGrams,
		"failed", c.Failed,
	)
	return entry, nil
}

// Entries returns the session entries, oldest first.
func (t *Tracker) Entries(ctx context.Context, sessionID string) ([]ledger.Entry, error) {
	l, err := t.sessions.Ledger(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return l.All(), nil
}

// Summary returns the session totals and their everyday equivalents.
func (t *Tracker) Summary(ctx context.Context, sessionID string) (Summary, error) {
	l, err := t.sessions.Ledger(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}
	totals := l.Totals()
	eq, err := equivalence.Convert(totals.TotalCarbonGrams)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Totals: totals, Equivalents: eq}, nil
}

// Comparison returns per-model statistics of the session ordered by model id.
func (t *Tracker) Comparison(ctx context.Context, sessionID string) ([]compare.ModelSummary, error) {
	entries, err := t.Entries(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return compare.Sorted(compare.ByModel(entries)), nil
}

// Timeline returns the per-call and cumulative emissions of the session.
func (t *Tracker) Timeline(ctx context.Context, sessionID string) ([]compare.Point, error) {
	entries, err := t.Entries(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return compare.Timeline(entries), nil
}

// Reset empties the session.
func (t *Tracker) Reset(ctx context.Context, sessionID string) error {
	if err := t.sessions.Clear(ctx, sessionID); err != nil {
		return err
	}
	metrics.SessionResets.Inc()
	t.logger.Info("Session reset", "session", sessionID)
	return nil
}
