package tracker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omegabytes/carbonboard/apperr"
	"github.com/omegabytes/carbonboard/equivalence"
	"github.com/omegabytes/carbonboard/grid"
	"github.com/omegabytes/carbonboard/hardware"
	"github.com/omegabytes/carbonboard/impact"
	"github.com/omegabytes/carbonboard/provider"
)

const llamaGrams = 32.573755046327996

func newTracker(t *testing.T, providers ...provider.Provider) *Tracker {
	t.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	model, err := impact.NewModel(hardware.Builtin(), grid.Builtin(), impact.WithLogger(quiet))
	require.NoError(t, err)
	return New(model, provider.NewRegistry(providers...), nil, WithLogger(quiet))
}

func fixedProvider(name string, elapsed time.Duration, err error) *provider.Func {
	return &provider.Func{
		ProviderName: name,
		ModelList:    []string{"llama-3.3-70b-versatile", "openai/gpt-oss-20b"},
		Fn: func(_ context.Context, model, prompt string) (provider.Completion, error) {
			if err != nil {
				return provider.Completion{}, err
			}
			return provider.Completion{Text: "echo: " + prompt, Elapsed: elapsed}, nil
		},
	}
}

func TestSubmit(t *testing.T) {
	tr := newTracker(t, fixedProvider("groq", 2500*time.Millisecond, nil))
	ctx := context.Background()
	sid := tr.NewSession()

	entry, err := tr.Submit(ctx, sid, "groq", "llama-3.3-70b-versatile", "hello")
	require.NoError(t, err)

	assert.Equal(t, "hello", entry.Prompt)
	assert.Equal(t, "echo: hello", entry.Response)
	assert.Equal(t, "groq", entry.Provider)
	assert.Equal(t, 2.5, entry.ElapsedSeconds)
	assert.InDelta(t, llamaGrams, entry.CarbonGrams, 1e-9)
	assert.False(t, entry.Failed)
	assert.False(t, entry.RecordedAt.IsZero())

	entries, err := tr.Entries(ctx, sid)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry, entries[0])
}

func TestSubmit_DefaultModel(t *testing.T) {
	tr := newTracker(t, fixedProvider("groq", time.Second, nil))
	sid := tr.NewSession()

	entry, err := tr.Submit(context.Background(), sid, "groq", "", "hello")
	require.NoError(t, err)
	assert.Equal(t, "llama-3.3-70b-versatile", entry.Model)
}

func TestSubmit_FailureAfterSendIsRecorded(t *testing.T) {
	callErr := &provider.CallError{
		Provider: "groq", Model: "llama-3.3-70b-versatile",
		Elapsed: 2500 * time.Millisecond, Err: errors.New("rate limited"),
	}
	tr := newTracker(t, fixedProvider("groq", 0, callErr))
	ctx := context.Background()
	sid := tr.NewSession()

	entry, err := tr.Submit(ctx, sid, "groq", "llama-3.3-70b-versatile", "hello")
	require.Error(t, err)
	_, sent := provider.AsCallError(err)
	assert.True(t, sent)

	assert.True(t, entry.Failed)
	assert.Equal(t, "Error: rate limited", entry.Response)
	assert.InDelta(t, llamaGrams, entry.CarbonGrams, 1e-9)

	entries, err := tr.Entries(ctx, sid)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSubmit_FailuresBeforeSendRecordNothing(t *testing.T) {
	tr := newTracker(t, fixedProvider("groq", 0, context.Canceled))
	ctx := context.Background()
	sid := tr.NewSession()

	_, err := tr.Submit(ctx, sid, "groq", "", "hello")
	assert.ErrorIs(t, err, context.Canceled)

	_, err = tr.Submit(ctx, sid, "openai", "", "hello")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = tr.Submit(ctx, sid, "groq", "", "   ")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = tr.Submit(ctx, "../etc", "groq", "", "hello")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	entries, err := tr.Entries(ctx, sid)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecord(t *testing.T) {
	tr := newTracker(t)
	ctx := context.Background()
	sid := tr.NewSession()

	entry, err := tr.Record(ctx, sid, Call{Model: "unknown-model", Prompt: "p", Response: "r", ElapsedSeconds: 3600})
	require.NoError(t, err)
	assert.InDelta(t, 239.80726671229755, entry.CarbonGrams, 1e-9)

	_, err = tr.Record(ctx, sid, Call{Model: "gpt-4", ElapsedSeconds: -1})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = tr.Record(ctx, sid, Call{Model: "", ElapsedSeconds: 1})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	entries, err := tr.Entries(ctx, sid)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestEstimate(t *testing.T) {
	tr := newTracker(t)

	est, err := tr.Estimate("gpt-3.5-turbo", 3600)
	require.NoError(t, err)
	assert.InDelta(t, 2483.8072667122983, est.TotalGrams, 1e-9)
	assert.True(t, est.KnownModel)

	est, err = tr.Estimate("nope", 0)
	require.NoError(t, err)
	assert.False(t, est.KnownModel)
	assert.Zero(t, est.TotalGrams)
}

func TestSummaryComparisonTimeline(t *testing.T) {
	tr := newTracker(t)
	ctx := context.Background()
	sid := tr.NewSession()

	for _, c := range []Call{
		{Model: "gpt-4", ElapsedSeconds: 1},
		{Model: "gpt-3.5-turbo", ElapsedSeconds: 2},
		{Model: "gpt-4", ElapsedSeconds: 3},
	} {
		_, err := tr.Record(ctx, sid, c)
		require.NoError(t, err)
	}

	sum, err := tr.Summary(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Count)
	assert.InDelta(t, 2.0, sum.AverageElapsedSeconds, 1e-12)
	assert.InDelta(t, sum.TotalCarbonGrams/equivalence.LEDGramsPerHour, sum.Equivalents.LEDHours, 1e-9)

	cmp, err := tr.Comparison(ctx, sid)
	require.NoError(t, err)
	require.Len(t, cmp, 2)
	assert.Equal(t, "gpt-3.5-turbo", cmp[0].Model)
	assert.Equal(t, "gpt-4", cmp[1].Model)
	assert.Equal(t, 2, cmp[1].CallCount)
	assert.InDelta(t, 2.0, cmp[1].MeanElapsedSeconds, 1e-12)

	tl, err := tr.Timeline(ctx, sid)
	require.NoError(t, err)
	require.Len(t, tl, 3)
	assert.Equal(t, 1, tl[0].Call)
	assert.InDelta(t, sum.TotalCarbonGrams, tl[2].CumulativeGrams, 1e-9)
}

func TestReset(t *testing.T) {
	tr := newTracker(t)
	ctx := context.Background()
	sid := tr.NewSession()

	_, err := tr.Record(ctx, sid, Call{Model: "gpt-4", ElapsedSeconds: 1})
	require.NoError(t, err)
	require.NoError(t, tr.Reset(ctx, sid))

	sum, err := tr.Summary(ctx, sid)
	require.NoError(t, err)
	assert.Zero(t, sum.Count)
	assert.Zero(t, sum.TotalCarbonGrams)
	assert.Zero(t, sum.Equivalents.CarMeters)
}

func TestSessionsAreIndependent(t *testing.T) {
	tr := newTracker(t)
	ctx := context.Background()
	a, b := tr.NewSession(), tr.NewSession()

	_, err := tr.Record(ctx, a, Call{Model: "gpt-4", ElapsedSeconds: 1})
	require.NoError(t, err)

	entries, err := tr.Entries(ctx, b)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
