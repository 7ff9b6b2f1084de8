// Package artifact is the put-once, get-many holding area for build outputs
// shared between a producing job and its dependents, keyed by (run ID, name).
package artifact

import (
	"fmt"
	"sync"
)

// DuplicateArtifactError reports a second Put for the same (run, name) key.
// Put-once semantics keep a rebuilt output from silently replacing one that
// a dependent already consumed.
type DuplicateArtifactError struct {
	RunID string
	Name  string
}

func (e *DuplicateArtifactError) Error() string {
	return fmt.Sprintf("artifact: %q already stored for run %s", e.Name, e.RunID)
}

// ArtifactNotFoundError reports a Get for a key that was never stored.
type ArtifactNotFoundError struct {
	RunID string
	Name  string
}

func (e *ArtifactNotFoundError) Error() string {
	return fmt.Sprintf("artifact: %q not found for run %s", e.Name, e.RunID)
}

type key struct {
	runID string
	name  string
}

// Store is a thread-safe in-memory artifact store. Writes are atomic under
// the lock and payloads are immutable once stored, so readers share the
// stored reference without copying.
type Store struct {
	mu   sync.RWMutex
	data map[key][]byte
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{data: make(map[key][]byte)}
}

// Put stores payload under (runID, name). Callers must not modify payload
// after Put. Fails with DuplicateArtifactError if the key already exists.
func (s *Store) Put(runID, name string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{runID: runID, name: name}
	if _, exists := s.data[k]; exists {
		return &DuplicateArtifactError{RunID: runID, Name: name}
	}
	s.data[k] = payload
	return nil
}

// Get returns the stored payload reference, or ArtifactNotFoundError.
func (s *Store) Get(runID, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.data[key{runID: runID, name: name}]
	if !ok {
		return nil, &ArtifactNotFoundError{RunID: runID, Name: name}
	}
	return p, nil
}

// Sweep removes every artifact belonging to runID and returns how many were
// dropped. Callers decide when sweeping is safe, normally after all
// dependents of the run are terminal.
func (s *Store) Sweep(runID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k := range s.data {
		if k.runID == runID {
			delete(s.data, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored artifacts across all runs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
