// Package checkpoint provides persistent snapshots of a run's state.
//
// The engine core treats a Store purely as an injected observer: after
// every merge it hands over (run ID, step ordinal, frontier label, state
// snapshot). Retrieval by run ID and step index enables resumption or
// branching from a prior step.
package checkpoint

import (
	"errors"
	"time"
)

// Store persists checkpoints addressed by run ID and step ordinal.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores a checkpoint for a run at a specific step.
	// Overwrites if a checkpoint for (runID, step) already exists.
	Save(runID string, step int, data []byte) error

	// Load retrieves the checkpoint for (runID, step).
	// Returns ErrNotFound if it doesn't exist.
	Load(runID string, step int) ([]byte, error)

	// Latest retrieves the highest-step checkpoint for a run.
	// Returns ErrNotFound if the run has no checkpoints.
	Latest(runID string) ([]byte, error)

	// List returns metadata for all checkpoints of a run, ordered by step.
	// Returns an empty slice (not an error) if the run has none.
	List(runID string) ([]Info, error)

	// Delete removes a specific checkpoint.
	// Returns nil if it doesn't exist.
	Delete(runID string, step int) error

	// DeleteRun removes all checkpoints for a run.
	// Returns nil if the run has none.
	DeleteRun(runID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides checkpoint metadata without loading the full state.
type Info struct {
	RunID     string
	Step      int
	Frontier  string
	Timestamp time.Time
	Size      int64
}

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound indicates a checkpoint doesn't exist.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")
)
