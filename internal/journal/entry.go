package journal

import (
	"encoding/json"
	"fmt"
	"time"

	"gantry/pkg/hashutil"
)

// Entry is a tamper-evident record of one job outcome within a run. Entries
// are hash-chained: each entry's hash covers its content plus the previous
// entry's hash, so rewriting history invalidates the chain.
type Entry struct {
	Index     int    `json:"index"`
	Timestamp string `json:"timestamp"`
	RunID     string `json:"runId"`
	Pipeline  string `json:"pipeline"`
	Job       string `json:"job"`
	Status    string `json:"status"`
	LogHash   string `json:"logHash"`
	PrevHash  string `json:"prevHash"`
	Hash      string `json:"hash"`
	Signature string `json:"signature"`
	PubKey    string `json:"pubKey"`
}

// canonicalData returns the JSON bytes the entry hash is computed over.
// It intentionally excludes Hash, Signature and PubKey.
func (e *Entry) canonicalData() ([]byte, error) {
	view := struct {
		Index     int    `json:"index"`
		Timestamp string `json:"timestamp"`
		RunID     string `json:"runId"`
		Pipeline  string `json:"pipeline"`
		Job       string `json:"job"`
		Status    string `json:"status"`
		LogHash   string `json:"logHash"`
		PrevHash  string `json:"prevHash"`
	}{
		Index:     e.Index,
		Timestamp: e.Timestamp,
		RunID:     e.RunID,
		Pipeline:  e.Pipeline,
		Job:       e.Job,
		Status:    e.Status,
		LogHash:   e.LogHash,
		PrevHash:  e.PrevHash,
	}
	return json.Marshal(view)
}

// ComputeHash calculates the hex sha256 over canonicalData.
func (e *Entry) ComputeHash() (string, error) {
	data, err := e.canonicalData()
	if err != nil {
		return "", err
	}
	return hashutil.HashBytes(data), nil
}

// newEntry constructs an entry and computes its hash (no signature yet).
func newEntry(index int, runID, pipeline, job, status, logHash, prevHash string) (*Entry, error) {
	e := &Entry{
		Index:     index,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RunID:     runID,
		Pipeline:  pipeline,
		Job:       job,
		Status:    status,
		LogHash:   logHash,
		PrevHash:  prevHash,
	}
	h, err := e.ComputeHash()
	if err != nil {
		return nil, fmt.Errorf("journal: compute entry hash: %w", err)
	}
	e.Hash = h
	return e, nil
}
