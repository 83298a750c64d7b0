// Package sync replays locally queued mutations against the backend.
package sync

// Outcome tells the dispatcher what to do with a queue entry after its
// handler ran.
type Outcome int

const (
	// OutcomeSuccess removes the entry; the entity is synced.
	OutcomeSuccess Outcome = iota
	// OutcomeSkip reschedules the entry with skip backoff; a dependency
	// has not resolved yet or the server state is transiently stale.
	OutcomeSkip
	// OutcomeRetry leaves the entry untouched so the next drain retries
	// immediately; the server answered with a placeholder result.
	OutcomeRetry
	// OutcomeDrop removes the entry permanently; the entity is gone or
	// the server state already wins.
	OutcomeDrop
	// OutcomeConflictPending removes the entry; a conflict record now
	// waits for a user decision.
	OutcomeConflictPending
)

// String returns a log-friendly name for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeSkip:
		return "skip"
	case OutcomeRetry:
		return "retry"
	case OutcomeDrop:
		return "drop"
	case OutcomeConflictPending:
		return "conflict_pending"
	default:
		return "unknown"
	}
}
