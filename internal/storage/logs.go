// Package storage persists captured job output under a per-run directory.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// LogStore writes one log file per job under BaseDir/<runID>/.
type LogStore struct {
	BaseDir string
}

// NewLogStore creates a log store rooted at baseDir.
func NewLogStore(baseDir string) *LogStore {
	return &LogStore{BaseDir: baseDir}
}

// SaveJobLog writes the captured output of one job and returns the file path.
func (ls *LogStore) SaveJobLog(runID, jobName, output string) (string, error) {
	dir := filepath.Join(ls.BaseDir, sanitize(runID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: create run dir: %w", err)
	}

	path := filepath.Join(dir, sanitize(jobName)+".log")
	if err := os.WriteFile(path, []byte(output), 0o644); err != nil {
		return "", fmt.Errorf("storage: write job log: %w", err)
	}
	return path, nil
}

// RunDir returns the directory holding a run's logs.
func (ls *LogStore) RunDir(runID string) string {
	return filepath.Join(ls.BaseDir, sanitize(runID))
}

// sanitize strips characters unsafe in filenames from run and job names.
func sanitize(name string) string {
	clean := make([]rune, 0, len(name))
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' {
			clean = append(clean, r)
		}
	}
	if len(clean) == 0 {
		return "job"
	}
	return string(clean)
}
