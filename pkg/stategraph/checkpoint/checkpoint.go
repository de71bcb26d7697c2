package checkpoint

import (
	"encoding/json"
	"time"
)

// Version is the current checkpoint format version.
// Increment when making breaking changes to the checkpoint structure.
const Version = 1

// Checkpoint is the persisted snapshot taken after a scheduler merge.
// It contains everything needed to resume the run from that point.
type Checkpoint struct {
	// Metadata
	Version   int       `json:"version"`
	RunID     string    `json:"run_id"`
	Step      int       `json:"step"`
	Timestamp time.Time `json:"timestamp"`

	// Completed is the frontier label: the nodes whose updates were
	// merged at this step, joined with "+".
	Completed string `json:"completed"`

	// State is the JSON-serialized state record after the merge.
	State json.RawMessage `json:"state"`

	// Frontier is the set of nodes eligible for dispatch next.
	// Empty means the run finished at this step.
	Frontier []string `json:"frontier,omitempty"`

	// Arrivals records, per pending fan-in node, which predecessors had
	// already completed, so a resumed run re-enters the join barrier in
	// the same position.
	Arrivals map[string][]string `json:"arrivals,omitempty"`
}

// New creates a checkpoint with the given parameters.
// State must already be JSON-serialized.
func New(runID string, step int, completed string, state []byte, frontier []string) *Checkpoint {
	return &Checkpoint{
		Version:   Version,
		RunID:     runID,
		Step:      step,
		Timestamp: time.Now().UTC(),
		Completed: completed,
		State:     state,
		Frontier:  frontier,
	}
}

// WithArrivals records pending join-barrier arrivals.
func (c *Checkpoint) WithArrivals(arrivals map[string][]string) *Checkpoint {
	if len(arrivals) > 0 {
		c.Arrivals = arrivals
	}
	return c
}

// Marshal serializes a checkpoint to JSON.
func (c *Checkpoint) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal deserializes a checkpoint from JSON.
func Unmarshal(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
