package pipeline

// Status is the lifecycle state of a job within a single run.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusSkipped Status = "skipped"
)

// Terminal reports whether s is a final state for the run.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailure, StatusSkipped:
		return true
	default:
		return false
	}
}

// allowedTransition encodes the monotonic job lifecycle:
// pending -> running -> {success, failure}, or pending -> skipped.
// A job never re-enters running once terminal.
func allowedTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusRunning || to == StatusSkipped
	case StatusRunning:
		return to == StatusSuccess || to == StatusFailure
	default:
		return false
	}
}

// Verdict is the aggregate outcome of a run.
type Verdict string

const (
	VerdictPending Verdict = "pending"
	VerdictSuccess Verdict = "success"
	VerdictFailure Verdict = "failure"
)
