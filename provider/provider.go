/*
Package provider calls large language model providers and measures how long each call takes.

Providers are selected by name from a Registry, so adding a vendor means registering another
Provider rather than extending a switch.
*/
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/omegabytes/carbonboard/apperr"
)

// Completion is the outcome of a successful call.
type Completion struct {
	Text         string
	Elapsed      time.Duration
	OutputTokens int64
}

// Provider sends a prompt to a model.
type Provider interface {
	Name() string
	Models() []string
	// Complete returns a *CallError when the request reached the provider and failed, so the
	// caller still knows how long the serving hardware was busy. Any other error means the
	// request was never sent.
	Complete(ctx context.Context, model, prompt string) (Completion, error)
}

// CallError is a failure reported after the request was sent.
type CallError struct {
	Provider string
	Model    string
	Elapsed  time.Duration
	Err      error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s call to %s failed after %s: %v", e.Provider, e.Model, e.Elapsed, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// AsCallError returns the *CallError wrapped by err, if any.
func AsCallError(err error) (*CallError, bool) {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// Registry maps provider names to providers. It is safe for concurrent use.
// Names are case-insensitive.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	disabled  map[string]error
}

// NewRegistry returns a registry holding ps. Duplicate names panic.
func NewRegistry(ps ...Provider) *Registry {
	r := &Registry{
		providers: make(map[string]Provider),
		disabled:  make(map[string]error),
	}
	for _, p := range ps {
		if err := r.Register(p); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds p under its name.
func (r *Registry) Register(p Provider) error {
	key := normalizeName(p.Name())
	if key == "" {
		return fmt.Errorf("provider name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.providers[key]; dup {
		return fmt.Errorf("provider %q already registered", key)
	}
	delete(r.disabled, key)
	r.providers[key] = p
	return nil
}

// Disable records a configured provider that cannot serve requests, such as one without an
// API key. Lookups of that name report reason.
func (r *Registry) Disable(name string, reason error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disabled[normalizeName(name)] = reason
}

// Lookup returns the provider registered under name.
func (r *Registry) Lookup(name string) (Provider, error) {
	key := normalizeName(name)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.providers[key]; ok {
		return p, nil
	}
	if reason, ok := r.disabled[key]; ok {
		return nil, apperr.Unsupportedf("provider %q is not available: %v", key, reason)
	}
	return nil, apperr.NotFoundf("provider %q", name)
}

// Names returns the registered provider names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Disabled returns the names of configured providers that cannot serve requests, in lexical order.
func (r *Registry) Disabled() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.disabled))
	for n := range r.disabled {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// resolveModel returns model, or the first configured model when model is empty.
func resolveModel(provider, model string, models []string) (string, error) {
	if model = strings.TrimSpace(model); model != "" {
		return model, nil
	}
	if len(models) == 0 {
		return "", apperr.InvalidInputf("no model given and provider %q has no default model", provider)
	}
	return models[0], nil
}

var _ Provider = &Func{}

// Func adapts a function to Provider. It is meant for tests and for callers that measure
// calls themselves.
type Func struct {
	ProviderName string
	ModelList    []string
	Fn           func(ctx context.Context, model, prompt string) (Completion, error)
}

func (f *Func) Name() string     { return f.ProviderName }
func (f *Func) Models() []string { return f.ModelList }

func (f *Func) Complete(ctx context.Context, model, prompt string) (Completion, error) {
	model, err := resolveModel(f.ProviderName, model, f.ModelList)
	if err != nil {
		return Completion{}, err
	}
	return f.Fn(ctx, model, prompt)
}
