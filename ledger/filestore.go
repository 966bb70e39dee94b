package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

var _ Store = &FileStore{}

// FileStore keeps one line-delimited JSON file per session under a directory:
//
//	<dir>/<session-id>.jsonl
//
// Entries are only ever appended; Clear removes the file.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates dir if needed and returns a store rooted at it.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store: directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("file store: create %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the root directory of the store.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(sessionID string) (string, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, sessionID+".jsonl"), nil
}

// Append writes e as one JSON line at the end of the session file.
func (s *FileStore) Append(_ context.Context, sessionID string, e Entry) error {
	p, err := s.path(sessionID)
	if err != nil {
		return err
	}
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("file store: encode entry: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("file store: open %s: %w", p, err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("file store: write %s: %w", p, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("file store: close %s: %w", p, err)
	}
	return nil
}

// Load reads all entries of a session in write order. A missing file is an empty session.
func (s *FileStore) Load(_ context.Context, sessionID string) ([]Entry, error) {
	p, err := s.path(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file store: open %s: %w", p, err)
	}
	defer f.Close()

	var out []Entry
	dec := json.NewDecoder(f)
	for {
		var e Entry
		err := dec.Decode(&e)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("file store: decode entry %d of %s: %w", len(out)+1, p, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Clear removes the session file.
func (s *FileStore) Clear(_ context.Context, sessionID string) error {
	p, err := s.path(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("file store: remove %s: %w", p, err)
	}
	return nil
}
