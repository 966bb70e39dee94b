package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omegabytes/carbonboard/apperr"
	"github.com/omegabytes/carbonboard/impact"
	"github.com/omegabytes/carbonboard/ledger"
)

// isolate keeps the user's config files and provider keys out of the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	for _, k := range []string{"OPENAI_API_KEY", "GEMINI_API_KEY", "GROQ_API_KEY", "HUGGINGFACE_API_KEY", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func run(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(viper.New())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestEstimateJSON(t *testing.T) {
	isolate(t)
	out, err := run(t, context.Background(), "estimate", "gpt-3.5-turbo", "3600", "--json", "--storage", "memory")
	require.NoError(t, err)

	var est impact.Estimate
	require.NoError(t, json.Unmarshal([]byte(out), &est))
	assert.InDelta(t, 2483.8072667122983, est.TotalGrams, 1e-9)
}

func TestEstimateText(t *testing.T) {
	isolate(t)
	out, err := run(t, context.Background(), "estimate", "llama-3.3-70b-versatile", "2.5", "--storage", "memory")
	require.NoError(t, err)
	assert.Contains(t, out, "32.5738 gCO2eq")
}

func TestEstimateErrors(t *testing.T) {
	isolate(t)
	_, err := run(t, context.Background(), "estimate", "gpt-4", "soon", "--storage", "memory")
	assert.True(t, apperr.IsUser(err))

	_, err = run(t, context.Background(), "estimate", "--storage", "memory", "--", "gpt-4", "-1")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = run(t, context.Background(), "estimate", "gpt-4", "--storage", "memory")
	assert.Error(t, err)
}

func TestInvalidSession(t *testing.T) {
	isolate(t)
	_, err := run(t, context.Background(), "report", "--storage", "memory", "--session", "../../etc")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestInvalidStorage(t *testing.T) {
	isolate(t)
	_, err := run(t, context.Background(), "report", "--storage", "s3")
	assert.Error(t, err)
}

func TestReportAndReset(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	ctx := context.Background()

	fs, err := ledger.NewFileStore(dir)
	require.NoError(t, err)
	for _, e := range []ledger.Entry{
		{Model: "gpt-4", Prompt: "a", CarbonGrams: 2, ElapsedSeconds: 1},
		{Model: "gpt-4", Prompt: "b", CarbonGrams: 4, ElapsedSeconds: 3},
	} {
		require.NoError(t, fs.Append(ctx, "team-a", e))
	}

	out, err := run(t, ctx, "report", "--json", "--storage", "file", "--storage-dir", dir, "--session", "team-a")
	require.NoError(t, err)
	var r report
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, 2, r.Summary.Count)
	assert.InDelta(t, 6.0, r.Summary.TotalCarbonGrams, 1e-12)
	require.Len(t, r.Comparison, 1)
	assert.Equal(t, 2, r.Comparison[0].CallCount)
	assert.Len(t, r.Timeline, 2)
	assert.Len(t, r.Entries, 2)

	out, err = run(t, ctx, "report", "--storage", "file", "--storage-dir", dir, "--session", "team-a")
	require.NoError(t, err)
	assert.Contains(t, out, "Session report")

	out, err = run(t, ctx, "reset", "--storage", "file", "--storage-dir", dir, "--session", "team-a")
	require.NoError(t, err)
	assert.Contains(t, out, "cleared")

	entries, err := fs.Load(ctx, "team-a")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestModels(t *testing.T) {
	isolate(t)
	out, err := run(t, context.Background(), "models", "--storage", "memory")
	require.NoError(t, err)
	assert.Contains(t, out, "gemini-2.5-flash")
	assert.Contains(t, out, "Providers")
}

func TestPromptRecordsCall(t *testing.T) {
	isolate(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id": "1", "object": "chat.completion", "created": 1, "model": "llama-3.3-70b-versatile",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Bonjour!"}}],
			"usage": {"prompt_tokens": 1, "completion_tokens": 2, "total_tokens": 3}}`)
	}))
	defer srv.Close()

	t.Setenv("GROQ_API_KEY", "test-key")
	t.Setenv("CARBONBOARD_PROVIDERS_GROQ_BASE_URL", srv.URL)
	dir := t.TempDir()
	ctx := context.Background()

	out, err := run(t, ctx, "prompt", "--provider", "groq", "--storage", "file", "--storage-dir", dir, "say", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "Bonjour!")

	fs, err := ledger.NewFileStore(dir)
	require.NoError(t, err)
	entries, err := fs.Load(ctx, defaultSession)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "say hello", entries[0].Prompt)
	assert.Equal(t, "llama-3.3-70b-versatile", entries[0].Model)
	assert.Equal(t, "groq", entries[0].Provider)
}

func TestPromptWithoutKey(t *testing.T) {
	isolate(t)
	_, err := run(t, context.Background(), "prompt", "--provider", "openai", "--storage", "memory", "hi")
	assert.ErrorIs(t, err, apperr.ErrUnsupported)
}

func TestServeStopsWithContext(t *testing.T) {
	isolate(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := run(t, ctx, "serve", "--storage", "memory", "--addr", "127.0.0.1:0")
	assert.NoError(t, err)
}
