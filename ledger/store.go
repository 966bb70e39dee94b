package ledger

import (
	"context"
	"regexp"
	"sync"

	"github.com/omegabytes/carbonboard/apperr"
)

// Store is the durable, append-only form of session ledgers.
type Store interface {
	Append(ctx context.Context, sessionID string, e Entry) error
	Load(ctx context.Context, sessionID string) ([]Entry, error)
	Clear(ctx context.Context, sessionID string) error
}

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidateSessionID rejects ids that cannot be used as a storage key.
func ValidateSessionID(id string) error {
	if !sessionIDPattern.MatchString(id) {
		return apperr.InvalidInputf("session id %q must be 1-128 characters of [A-Za-z0-9_-]", id)
	}
	return nil
}

var _ Store = &MemoryStore{}

// MemoryStore keeps entries in process memory only.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string][]Entry
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]Entry)}
}

func (s *MemoryStore) Append(_ context.Context, sessionID string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], e)
	return nil
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.sessions[sessionID]...), nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
