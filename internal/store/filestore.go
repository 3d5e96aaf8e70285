package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore holds the whole snapshot in memory and writes it to a single
// JSON document on every mutation. Writes go to a temp file first and are
// renamed over the real path, so the persisted document is never observed
// half-written. Update provides no cross-caller mutual exclusion beyond
// serializing the writes themselves; per-entity serialization is layered on
// top by the keyed mutex.
type FileStore struct {
	mu     sync.Mutex
	state  *State
	path   string
	logger *slog.Logger
}

// Open loads the snapshot at dir/file, seeding and persisting DefaultState
// when the document is missing or unparseable.
func Open(dir, file string, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &FileStore{
		path:   filepath.Join(dir, file),
		logger: logger,
	}

	raw, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		var state State
		if jsonErr := json.Unmarshal(raw, &state); jsonErr != nil {
			logger.Warn("state file unparseable, seeding defaults", "file", s.path, "error", jsonErr)
			s.state = DefaultState()
		} else {
			s.state = &state
			logger.Info("state loaded", "file", s.path, "version", state.Version)
			return s, nil
		}
	case os.IsNotExist(err):
		logger.Warn("no existing state, seeding defaults", "file", s.path)
		s.state = DefaultState()
	default:
		return nil, fmt.Errorf("read state file: %w", err)
	}

	if err := s.save(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns a point-in-time copy of the snapshot, safe to read while
// concurrent Updates run. Mutations only take effect through Update.
func (s *FileStore) Get() *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Update applies mutator to the snapshot and performs a durable write. A
// write failure leaves the in-memory state ahead of disk until the next
// successful Update reconciles it.
func (s *FileStore) Update(mutator func(*State)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mutator(s.state)
	return s.save()
}

// Path reports where the snapshot is persisted.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) save() error {
	s.state.UpdatedAt = time.Now().UTC()

	payload, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write state temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}

	s.logger.Debug("state saved", "file", s.path)
	return nil
}
