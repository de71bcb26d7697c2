package stategraph

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/stategraph/stategraph/pkg/stategraph/state"
)

// errBoom is the stock failure used across tests.
var errBoom = errors.New("boom")

// testContext returns an execution context with a discarded logger so
// test output stays quiet.
func testContext(opts ...ContextOption) Context {
	all := append([]ContextOption{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	return NewContext(context.Background(), all...)
}

// setField returns a node writing a single field.
func setField(field string, value any) NodeFunc {
	return func(_ Context, _ state.State) (state.Update, error) {
		return state.Update{field: value}, nil
	}
}

// appendTrail returns a node appending its mark to the "trail" field,
// recording execution order through the state itself.
func appendTrail(mark string) NodeFunc {
	return func(_ Context, s state.State) (state.Update, error) {
		return state.Update{"trail": s.String("trail", "") + mark}, nil
	}
}

// slowSetField is setField with a delay, for exercising completion
// order and timeouts.
func slowSetField(field string, value any, delay time.Duration) NodeFunc {
	return func(ctx Context, _ state.State) (state.Update, error) {
		select {
		case <-time.After(delay):
			return state.Update{field: value}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// failing returns a node that always fails with errBoom.
func failing() NodeFunc {
	return func(_ Context, _ state.State) (state.Update, error) {
		return nil, errBoom
	}
}

// passthrough returns a node that changes nothing.
func passthrough() NodeFunc {
	return func(_ Context, _ state.State) (state.Update, error) {
		return nil, nil
	}
}

// increment returns a node bumping an integer field by one.
func increment(field string) NodeFunc {
	return func(_ Context, s state.State) (state.Update, error) {
		return state.Update{field: s.Int(field, 0) + 1}, nil
	}
}
