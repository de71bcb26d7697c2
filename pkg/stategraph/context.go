package stategraph

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/stategraph/stategraph/pkg/stategraph/session"
)

// Context carries run-scoped collaborators to node functions and
// routers. It embeds context.Context, so nodes use it directly for
// cancellation, deadlines, and downstream calls.
//
// Collaborators are injected at construction, never pulled from
// globals: two runs with different contexts share nothing.
type Context interface {
	context.Context

	// Logger returns the run-scoped structured logger. Never nil.
	Logger() *slog.Logger

	// Sessions returns the session store, or nil if none was injected.
	Sessions() session.Store

	// RunID returns the unique ID of this run.
	RunID() string

	// NodeID returns the ID of the currently executing node, or "" at
	// run scope.
	NodeID() string
}

// executionContext is the concrete Context.
type executionContext struct {
	context.Context

	logger   *slog.Logger
	sessions session.Store
	runID    string
	nodeID   string
}

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the structured logger for the run.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		c.logger = logger
	}
}

// WithSessions injects a session store for nodes that keep
// per-conversation history.
func WithSessions(store session.Store) ContextOption {
	return func(c *executionContext) {
		c.sessions = store
	}
}

// WithContextRunID pins the run ID instead of generating one. Required
// when resuming from checkpoints under a caller-managed ID scheme.
func WithContextRunID(runID string) ContextOption {
	return func(c *executionContext) {
		c.runID = runID
	}
}

// NewContext creates an execution context from a parent context.
// Omitted collaborators get safe defaults: slog.Default for the logger
// and a random UUID for the run ID.
func NewContext(parent context.Context, opts ...ContextOption) Context {
	if parent == nil {
		parent = context.Background()
	}

	c := &executionContext{
		Context: parent,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.runID == "" {
		c.runID = uuid.NewString()
	}
	return c
}

// Logger implements Context.
func (c *executionContext) Logger() *slog.Logger {
	return c.logger
}

// Sessions implements Context.
func (c *executionContext) Sessions() session.Store {
	return c.sessions
}

// RunID implements Context.
func (c *executionContext) RunID() string {
	return c.runID
}

// NodeID implements Context.
func (c *executionContext) NodeID() string {
	return c.nodeID
}

// forNode derives a per-node context. base carries any timeout the
// scheduler imposed on this dispatch.
func (c *executionContext) forNode(base context.Context, nodeID string, logger *slog.Logger) *executionContext {
	return &executionContext{
		Context:  base,
		logger:   logger,
		sessions: c.sessions,
		runID:    c.runID,
		nodeID:   nodeID,
	}
}

// asExecution normalizes a caller-supplied Context to the concrete
// type, rewrapping foreign implementations.
func asExecution(ctx Context) *executionContext {
	if ec, ok := ctx.(*executionContext); ok {
		return ec
	}
	return &executionContext{
		Context:  ctx,
		logger:   ctx.Logger(),
		sessions: ctx.Sessions(),
		runID:    ctx.RunID(),
		nodeID:   ctx.NodeID(),
	}
}
