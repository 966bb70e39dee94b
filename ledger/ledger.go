/*
Package ledger records the inference calls of a user session and aggregates them.

A Ledger is append-only: entries are never mutated or removed individually, and Clear is the
only way to empty it. Each session owns its own Ledger; a Registry hands them out by session
id and keeps them in step with a durable Store.
*/
package ledger

import (
	"math"
	"sync"
	"time"

	"github.com/omegabytes/carbonboard/apperr"
)

// Entry is one completed inference call.
type Entry struct {
	Prompt         string    `json:"prompt"`
	Model          string    `json:"model"`
	Response       string    `json:"response"`
	CarbonGrams    float64   `json:"carbon_grams"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	Provider       string    `json:"provider,omitempty"`
	Failed         bool      `json:"failed,omitempty"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// Validate reports whether e is well formed: carbon and elapsed values must be finite and >= 0.
func (e Entry) Validate() error {
	if !nonNegative(e.CarbonGrams) {
		return apperr.InvalidInputf("carbon grams must be a finite number >= 0, got %v", e.CarbonGrams)
	}
	if !nonNegative(e.ElapsedSeconds) {
		return apperr.InvalidInputf("elapsed seconds must be a finite number >= 0, got %v", e.ElapsedSeconds)
	}
	return nil
}

func nonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// Totals aggregates all entries of a ledger. Averages are zero on an empty ledger.
type Totals struct {
	Count                 int     `json:"count"`
	TotalCarbonGrams      float64 `json:"total_carbon_grams"`
	AverageCarbonGrams    float64 `json:"average_carbon_grams"`
	AverageElapsedSeconds float64 `json:"average_elapsed_seconds"`
}

// Ledger is the ordered record of one session. It is safe for concurrent use; appends are
// serialized so insertion order is the order in which Append calls acquired the lock.
type Ledger struct {
	mu      sync.RWMutex
	entries []Entry
}

// New returns a ledger holding a copy of entries.
func New(entries ...Entry) *Ledger {
	l := &Ledger{}
	if len(entries) > 0 {
		l.entries = append([]Entry(nil), entries...)
	}
	return l
}

// Append adds e at the end of the ledger.
func (l *Ledger) Append(e Entry) {
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
}

// appendAfter runs persist while holding the write lock and appends e only if it succeeds.
func (l *Ledger) appendAfter(e Entry, persist func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := persist(); err != nil {
		return err
	}
	l.entries = append(l.entries, e)
	return nil
}

// All returns a copy of the entries, oldest first.
func (l *Ledger) All() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Entry(nil), l.entries...)
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Clear empties the ledger.
func (l *Ledger) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

func (l *Ledger) clearAfter(persist func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := persist(); err != nil {
		return err
	}
	l.entries = nil
	return nil
}

// Totals aggregates the current entries.
func (l *Ledger) Totals() Totals {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Summarize(l.entries)
}

// Summarize aggregates entries without a Ledger.
func Summarize(entries []Entry) Totals {
	if len(entries) == 0 {
		return Totals{}
	}

	var carbon, elapsed float64
	for _, e := range entries {
		carbon += e.CarbonGrams
		elapsed += e.ElapsedSeconds
	}
	n := float64(len(entries))

	return Totals{
		Count:                 len(entries),
		TotalCarbonGrams:      carbon,
		AverageCarbonGrams:    carbon / n,
		AverageElapsedSeconds: elapsed / n,
	}
}
