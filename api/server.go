/*
Package api serves the carbonboard dashboard backend over HTTP.

Every user session owns its own ledger, addressed by the session id returned from
POST /api/v1/sessions. Errors are returned as {"error": "..."}.
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/omegabytes/carbonboard/apperr"
	"github.com/omegabytes/carbonboard/equivalence"
	"github.com/omegabytes/carbonboard/hardware"
	"github.com/omegabytes/carbonboard/ledger"
	"github.com/omegabytes/carbonboard/provider"
	"github.com/omegabytes/carbonboard/tracker"
)

const maxBodyBytes = 1 << 20

// Server implements the HTTP API. It is safe to use concurrently.
type Server struct {
	tracker *tracker.Tracker
	logger  *slog.Logger
	mux     *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer constructs a Server with all routes registered on an internal mux.
func NewServer(t *tracker.Tracker, opts ...Option) *Server {
	s := &Server{
		tracker: t,
		logger:  slog.Default(),
		mux:     http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rw, r)
	s.logger.Debug("HTTP request",
		"method", r.Method, "path", r.URL.Path, "status", rw.status, "duration", time.Since(start))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.mux.HandleFunc("GET /api/v1/providers", s.handleProviders)
	s.mux.HandleFunc("GET /api/v1/models", s.handleModels)
	s.mux.HandleFunc("GET /api/v1/equivalences", s.handleEquivalences)
	s.mux.HandleFunc("GET /api/v1/estimate", s.handleEstimate)

	s.mux.HandleFunc("POST /api/v1/sessions", s.handleNewSession)
	s.mux.HandleFunc("POST /api/v1/sessions/{id}/calls", s.handleSubmit)
	s.mux.HandleFunc("POST /api/v1/sessions/{id}/entries", s.handleRecord)
	s.mux.HandleFunc("GET /api/v1/sessions/{id}/entries", s.handleEntries)
	s.mux.HandleFunc("DELETE /api/v1/sessions/{id}/entries", s.handleReset)
	s.mux.HandleFunc("GET /api/v1/sessions/{id}/summary", s.handleSummary)
	s.mux.HandleFunc("GET /api/v1/sessions/{id}/comparison", s.handleComparison)
	s.mux.HandleFunc("GET /api/v1/sessions/{id}/timeline", s.handleTimeline)
}

// ListenAndServe serves s on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP API", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("Shutting down HTTP API")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type providerInfo struct {
	Name      string   `json:"name"`
	Available bool     `json:"available"`
	Models    []string `json:"models"`
}

// handleProviders implements:
//
//	GET /api/v1/providers
func (s *Server) handleProviders(w http.ResponseWriter, _ *http.Request) {
	reg := s.tracker.Providers()
	out := make([]providerInfo, 0)
	for _, name := range reg.Names() {
		p, err := reg.Lookup(name)
		if err != nil {
			continue
		}
		models := p.Models()
		if models == nil {
			models = []string{}
		}
		out = append(out, providerInfo{Name: name, Available: true, Models: models})
	}
	for _, name := range reg.Disabled() {
		out = append(out, providerInfo{Name: name, Models: []string{}})
	}
	writeJSON(w, http.StatusOK, out)
}

type modelInfo struct {
	Model   string           `json:"model"`
	Profile hardware.Profile `json:"profile"`
}

type modelsResponse struct {
	Models   []modelInfo      `json:"models"`
	Fallback hardware.Profile `json:"fallback"`
}

// handleModels implements:
//
//	GET /api/v1/models
func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	cat := s.tracker.Model().Catalog()
	resp := modelsResponse{Models: make([]modelInfo, 0), Fallback: cat.Fallback()}
	for _, id := range cat.Models() {
		resp.Models = append(resp.Models, modelInfo{Model: id, Profile: cat.ProfileFor(id)})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEquivalences(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, equivalence.Factors())
}

// handleEstimate implements:
//
//	GET /api/v1/estimate?model=...&elapsed_seconds=...
func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	model := q.Get("model")
	if model == "" {
		s.writeError(w, apperr.InvalidInputf("model is required"))
		return
	}
	elapsed, err := strconv.ParseFloat(q.Get("elapsed_seconds"), 64)
	if err != nil {
		s.writeError(w, apperr.InvalidInputf("elapsed_seconds must be a number"))
		return
	}
	est, err := s.tracker.Estimate(model, elapsed)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, est)
}

func (s *Server) handleNewSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": s.tracker.NewSession()})
}

type submitRequest struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Prompt   string `json:"prompt"`
}

type failedCallResponse struct {
	Error string       `json:"error"`
	Entry ledger.Entry `json:"entry"`
}

// handleSubmit implements:
//
//	POST /api/v1/sessions/{id}/calls
//
// A provider failure after the request was sent is answered with 502 and the recorded entry.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	entry, err := s.tracker.Submit(r.Context(), r.PathValue("id"), req.Provider, req.Model, req.Prompt)
	if ce, ok := provider.AsCallError(err); ok && entry.Failed {
		writeJSON(w, http.StatusBadGateway, failedCallResponse{Error: ce.Error(), Entry: entry})
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// handleRecord implements:
//
//	POST /api/v1/sessions/{id}/entries
//
// The call was measured by the client; carbon is computed here.
func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	var call tracker.Call
	if err := decodeBody(w, r, &call); err != nil {
		s.writeError(w, err)
		return
	}
	entry, err := s.tracker.Record(r.Context(), r.PathValue("id"), call)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.tracker.Entries(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Reset(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.tracker.Summary(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request) {
	cmp, err := s.tracker.Comparison(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	tl, err := s.tracker.Timeline(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tl)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.InvalidInputf("invalid JSON body: %v", err)
	}
	return nil
}

// statusFor maps an error to its HTTP status code.
func statusFor(err error) int {
	if _, ok := provider.AsCallError(err); ok {
		return http.StatusBadGateway
	}
	switch {
	case errors.Is(err, apperr.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrUnsupported):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
