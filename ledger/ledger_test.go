package ledger

import (
	"math"
	"sync"
	"testing"

	"github.com/omegabytes/carbonboard/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_EmptyTotals(t *testing.T) {
	l := New()
	assert.Equal(t, Totals{}, l.Totals())
	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.All())
}

func TestLedger_Totals(t *testing.T) {
	l := New()
	l.Append(Entry{Model: "gpt-4", CarbonGrams: 1.0, ElapsedSeconds: 0.5})
	l.Append(Entry{Model: "gpt-4", CarbonGrams: 2.0, ElapsedSeconds: 1.5})
	l.Append(Entry{Model: "gpt-4", CarbonGrams: 3.0, ElapsedSeconds: 4.0})

	got := l.Totals()
	assert.Equal(t, 3, got.Count)
	assert.InDelta(t, 6.0, got.TotalCarbonGrams, 1e-12)
	assert.InDelta(t, 2.0, got.AverageCarbonGrams, 1e-12)
	assert.InDelta(t, 2.0, got.AverageElapsedSeconds, 1e-12)
}

func TestLedger_TotalsSumsEveryEntry(t *testing.T) {
	l := New()
	var want float64
	for i := 1; i <= 50; i++ {
		g := float64(i) * 0.137
		want += g
		l.Append(Entry{Model: "m", CarbonGrams: g, ElapsedSeconds: 1})
	}
	got := l.Totals()
	assert.Equal(t, 50, got.Count)
	assert.InDelta(t, want, got.TotalCarbonGrams, 1e-9)
	assert.InDelta(t, 1.0, got.AverageElapsedSeconds, 1e-12)
}

func TestLedger_InsertionOrderAndCopies(t *testing.T) {
	l := New()
	l.Append(Entry{Prompt: "first"})
	l.Append(Entry{Prompt: "second"})

	all := l.All()
	require.Len(t, all, 2)
	assert.Equal(t, "first", all[0].Prompt)
	assert.Equal(t, "second", all[1].Prompt)

	// mutating the copy leaves the ledger untouched
	all[0].Prompt = "changed"
	assert.Equal(t, "first", l.All()[0].Prompt)
}

func TestLedger_Clear(t *testing.T) {
	l := New(Entry{CarbonGrams: 1}, Entry{CarbonGrams: 2})
	require.Equal(t, 2, l.Len())

	l.Clear()
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, Totals{}, l.Totals())

	l.Append(Entry{CarbonGrams: 5})
	assert.Equal(t, 1, l.Totals().Count)
}

func TestLedger_ConcurrentAppend(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				l.Append(Entry{CarbonGrams: 1})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1000, l.Totals().Count)
	assert.InDelta(t, 1000.0, l.Totals().TotalCarbonGrams, 1e-9)
}

func TestEntry_Validate(t *testing.T) {
	tests := []struct {
		name        string
		entry       Entry
		expectError bool
	}{
		{"zero values", Entry{}, false},
		{"positive values", Entry{CarbonGrams: 1, ElapsedSeconds: 2}, false},
		{"negative carbon", Entry{CarbonGrams: -1}, true},
		{"negative elapsed", Entry{ElapsedSeconds: -1}, true},
		{"nan carbon", Entry{CarbonGrams: math.NaN()}, true},
		{"inf elapsed", Entry{ElapsedSeconds: math.Inf(1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if tt.expectError {
				assert.ErrorIs(t, err, apperr.ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateSessionID(t *testing.T) {
	assert.NoError(t, ValidateSessionID("6f1c2a8e-2b57-4f43-9c1d-3a1f0b7d9e21"))
	assert.NoError(t, ValidateSessionID("default"))
	for _, bad := range []string{"", "../etc", "a/b", "with space", string(make([]byte, 129))} {
		assert.ErrorIs(t, ValidateSessionID(bad), apperr.ErrInvalidInput, "id %q", bad)
	}
}
