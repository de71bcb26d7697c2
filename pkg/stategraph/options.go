package stategraph

import (
	"time"

	"github.com/stategraph/stategraph/pkg/stategraph/checkpoint"
	"github.com/stategraph/stategraph/pkg/stategraph/config"
	"github.com/stategraph/stategraph/pkg/stategraph/event"
	"github.com/stategraph/stategraph/pkg/stategraph/observability"
	"github.com/stategraph/stategraph/pkg/stategraph/state"
)

// DefaultMaxIterations is the global round ceiling applied when no
// explicit limit is configured. It bounds cyclic graphs whose exit
// condition never fires.
const DefaultMaxIterations = 25

// runConfig holds per-run settings assembled from RunOptions.
type runConfig struct {
	maxIterations   int
	nodeTimeout     time.Duration
	mergePolicy     state.MergePolicy
	runID           string
	store           checkpoint.Store
	checkpointFatal bool
	startStep       int
	metrics         observability.MetricsRecorder
	spans           observability.SpanManager
	sink            event.Sink
}

// defaultRunConfig returns the settings used when no options are given.
func defaultRunConfig() *runConfig {
	return &runConfig{
		maxIterations: DefaultMaxIterations,
		mergePolicy:   state.RejectConflicts,
		metrics:       observability.NoopMetrics{},
		spans:         observability.NoopSpanManager{},
	}
}

// RunOption configures a single run.
type RunOption func(*runConfig)

// WithMaxIterations overrides the global round ceiling.
// Values below 1 are ignored.
func WithMaxIterations(n int) RunOption {
	return func(cfg *runConfig) {
		if n >= 1 {
			cfg.maxIterations = n
		}
	}
}

// WithNodeTimeout bounds each node dispatch. A node still running when
// the timeout elapses fails with an error matching ErrNodeTimeout.
// Zero (the default) means no per-node bound.
func WithNodeTimeout(d time.Duration) RunOption {
	return func(cfg *runConfig) {
		cfg.nodeTimeout = d
	}
}

// WithLastWriteWins opts the run into last-write-wins merging: when
// sibling updates overlap, later branches (in declared order) overwrite
// earlier ones instead of failing with *MergeConflictError. Declared
// order — never completion order — decides the winner, keeping results
// deterministic.
func WithLastWriteWins() RunOption {
	return func(cfg *runConfig) {
		cfg.mergePolicy = state.LastWriteWins
	}
}

// WithRunID pins the run ID, overriding the context's.
func WithRunID(runID string) RunOption {
	return func(cfg *runConfig) {
		cfg.runID = runID
	}
}

// WithCheckpointStore enables checkpointing: after every merge the
// scheduler persists a snapshot keyed by run ID and step ordinal.
// Store failures are logged and skipped unless
// WithCheckpointFailureFatal is also set.
func WithCheckpointStore(store checkpoint.Store) RunOption {
	return func(cfg *runConfig) {
		cfg.store = store
	}
}

// WithCheckpointFailureFatal promotes checkpoint save failures from
// logged warnings to run-fatal errors.
func WithCheckpointFailureFatal() RunOption {
	return func(cfg *runConfig) {
		cfg.checkpointFatal = true
	}
}

// WithMetrics sets the metrics recorder. Defaults to a no-op.
func WithMetrics(m observability.MetricsRecorder) RunOption {
	return func(cfg *runConfig) {
		if m != nil {
			cfg.metrics = m
		}
	}
}

// WithTracing enables OTel spans for the run and each node dispatch,
// using the global tracer provider.
func WithTracing() RunOption {
	return func(cfg *runConfig) {
		cfg.spans = observability.NewSpanManager()
	}
}

// WithEventSink streams lifecycle events to sink as the run progresses.
// The sink must not block; see the event package.
func WithEventSink(sink event.Sink) RunOption {
	return func(cfg *runConfig) {
		cfg.sink = sink
	}
}

// withStartStep sets the checkpoint ordinal to continue numbering from.
// Used by Resume.
func withStartStep(step int) RunOption {
	return func(cfg *runConfig) {
		cfg.startStep = step
	}
}

// OptionsFromConfig maps recognized configuration keys to run options:
//
//	max_iterations  int            round ceiling
//	node_timeout    duration       per-node bound
//	last_write_wins bool           merge policy opt-in
//	tracing         bool           OTel spans
//
// Unknown keys are ignored. Retry settings are read separately by
// retry.PolicyFromConfig.
func OptionsFromConfig(cfg config.Config) []RunOption {
	var opts []RunOption

	if cfg.Has("max_iterations") {
		opts = append(opts, WithMaxIterations(cfg.Int("max_iterations", DefaultMaxIterations)))
	}
	if cfg.Has("node_timeout") {
		opts = append(opts, WithNodeTimeout(cfg.Duration("node_timeout", 0)))
	}
	if cfg.Bool("last_write_wins", false) {
		opts = append(opts, WithLastWriteWins())
	}
	if cfg.Bool("tracing", false) {
		opts = append(opts, WithTracing())
	}

	return opts
}
