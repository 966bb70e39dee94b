package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Registry owns one Ledger per session and keeps it in step with a Store. Ledgers are restored
// from the store the first time a session is accessed. Only sessions holding entries stay in
// memory; an empty session is reloaded from the store on every read.
type Registry struct {
	store Store
	now   func() time.Time
	loads singleflight.Group

	mu       sync.Mutex
	sessions map[string]*Ledger
}

// NewRegistry returns a registry persisting to store. A nil store keeps entries in memory only.
func NewRegistry(store Store) *Registry {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Registry{
		store:    store,
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[string]*Ledger),
	}
}

// NewSession issues a fresh session id. Its ledger is empty until the first Append.
func (r *Registry) NewSession() string {
	return uuid.NewString()
}

// Ledger returns the ledger of sessionID, loading it from the store on first access. A session
// with no entries is returned without being cached.
func (r *Registry) Ledger(ctx context.Context, sessionID string) (*Ledger, error) {
	return r.ledger(ctx, sessionID, false)
}

func (r *Registry) ledger(ctx context.Context, sessionID string, keep bool) (*Ledger, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	if l, ok := r.cached(sessionID); ok {
		return l, nil
	}

	// Loads run outside r.mu, one per session at a time.
	v, err, _ := r.loads.Do(sessionID, func() (any, error) {
		if l, ok := r.cached(sessionID); ok {
			return l, nil
		}
		entries, err := r.store.Load(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("load session %s: %w", sessionID, err)
		}
		return New(entries...), nil
	})
	if err != nil {
		return nil, err
	}
	l := v.(*Ledger)
	if !keep && l.Len() == 0 {
		return l, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[sessionID]; ok {
		return cur, nil
	}
	r.sessions[sessionID] = l
	return l, nil
}

func (r *Registry) cached(sessionID string) (*Ledger, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.sessions[sessionID]
	return l, ok
}

// Append validates e, writes it to the store and then to the in-memory ledger. A zero
// RecordedAt is set to the current time. On error the ledger is unchanged.
func (r *Registry) Append(ctx context.Context, sessionID string, e Entry) (Entry, error) {
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = r.now()
	}
	l, err := r.ledger(ctx, sessionID, true)
	if err != nil {
		return Entry{}, err
	}
	err = l.appendAfter(e, func() error {
		return r.store.Append(ctx, sessionID, e)
	})
	if err != nil {
		return Entry{}, fmt.Errorf("append to session %s: %w", sessionID, err)
	}
	return e, nil
}

// Clear empties the session in the store and drops it from memory.
func (r *Registry) Clear(ctx context.Context, sessionID string) error {
	l, err := r.Ledger(ctx, sessionID)
	if err != nil {
		return err
	}
	err = l.clearAfter(func() error {
		return r.store.Clear(ctx, sessionID)
	})
	if err != nil {
		return fmt.Errorf("clear session %s: %w", sessionID, err)
	}
	r.Forget(sessionID)
	return nil
}

// Forget drops the in-memory ledger of a finished session. Its durable log is kept.
func (r *Registry) Forget(sessionID string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	r.mu.Unlock()
}
