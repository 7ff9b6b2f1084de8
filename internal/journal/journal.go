// Package journal keeps an append-only, signed record of job outcomes.
//
// The journal is a driver-side collaborator: the execution engine itself
// retains no cross-run state. File format is JSON lines, one entry per line,
// so the file stays appendable and greppable.
package journal

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"gantry/internal/security"
)

// Journal is an append-only entry log backed by a JSONL file.
type Journal struct {
	mu      sync.Mutex
	entries []*Entry
	path    string
	priv    ed25519.PrivateKey
	pub     ed25519.PublicKey
}

// Open loads the journal at path, creating an empty file when absent.
// priv/pub sign new entries; a nil keypair makes Append fail.
func Open(path string, priv ed25519.PrivateKey, pub ed25519.PublicKey) (*Journal, error) {
	j := &Journal{path: path, priv: priv, pub: pub}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		_ = f.Close()
		return j, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("journal: decode entry: %w", err)
		}
		j.entries = append(j.entries, &e)
	}
	return j, nil
}

// Append records one job outcome, chaining and signing it, and persists the
// entry before returning.
func (j *Journal) Append(runID, pipeline, job, status, logHash string) (*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if len(j.priv) == 0 {
		return nil, fmt.Errorf("journal: no signing key")
	}

	prev := ""
	if len(j.entries) > 0 {
		prev = j.entries[len(j.entries)-1].Hash
	}

	e, err := newEntry(len(j.entries), runID, pipeline, job, status, logHash, prev)
	if err != nil {
		return nil, err
	}
	e.Signature = security.Sign(j.priv, []byte(e.Hash))
	e.PubKey = fmt.Sprintf("%x", []byte(j.pub))

	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: open file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(e); err != nil {
		return nil, fmt.Errorf("journal: write entry: %w", err)
	}

	j.entries = append(j.entries, e)
	return e, nil
}

// Verify recomputes every entry hash, checks the chain links and each
// signature, and reports the first inconsistency found.
func (j *Journal) Verify() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for i, e := range j.entries {
		h, err := e.ComputeHash()
		if err != nil {
			return fmt.Errorf("journal: compute hash at index %d: %w", e.Index, err)
		}
		if h != e.Hash {
			return fmt.Errorf("journal: hash mismatch at index %d", e.Index)
		}
		if i > 0 && e.PrevHash != j.entries[i-1].Hash {
			return fmt.Errorf("journal: chain break at index %d", e.Index)
		}
		if e.Index != i {
			return fmt.Errorf("journal: index mismatch: expected %d got %d", i, e.Index)
		}
		if e.Signature != "" {
			ok, err := security.Verify(e.PubKey, []byte(e.Hash), e.Signature)
			if err != nil {
				return fmt.Errorf("journal: verify signature at index %d: %w", e.Index, err)
			}
			if !ok {
				return fmt.Errorf("journal: bad signature at index %d", e.Index)
			}
		}
	}
	return nil
}

// Entries returns the in-memory entries. Mutating them breaks Verify; tests
// use that deliberately.
func (j *Journal) Entries() []*Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.entries
}
