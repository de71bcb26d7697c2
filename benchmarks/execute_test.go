package benchmarks

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stategraph/stategraph/pkg/stategraph"
	"github.com/stategraph/stategraph/pkg/stategraph/state"
)

// benchContext silences logging so the scheduler itself is measured.
func benchContext() stategraph.Context {
	return stategraph.NewContext(context.Background(),
		stategraph.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

// BenchmarkExecute_Linear_5 runs a 5-node chain end to end.
func BenchmarkExecute_Linear_5(b *testing.B) {
	plan, err := buildLinearGraph(5).Compile()
	if err != nil {
		b.Fatal(err)
	}
	ctx := benchContext()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := plan.Execute(ctx, nil); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkExecute_Linear_50 runs a 50-node chain end to end.
func BenchmarkExecute_Linear_50(b *testing.B) {
	plan, err := buildLinearGraph(50).Compile()
	if err != nil {
		b.Fatal(err)
	}
	ctx := benchContext()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := plan.Execute(ctx, nil); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkExecute_FanOut_10 measures a 10-branch fork/join round trip.
func BenchmarkExecute_FanOut_10(b *testing.B) {
	plan, err := buildFanOutGraph(10).Compile()
	if err != nil {
		b.Fatal(err)
	}
	ctx := benchContext()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := plan.Execute(ctx, nil); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkExecute_Loop_20 measures a 20-round conditional cycle.
func BenchmarkExecute_Loop_20(b *testing.B) {
	count := func(_ stategraph.Context, s state.State) (state.Update, error) {
		return state.Update{"n": s.Int("n", 0) + 1}, nil
	}
	router := func(_ stategraph.Context, s state.State) string {
		if s.Int("n", 0) >= 20 {
			return "done"
		}
		return "again"
	}
	plan, err := stategraph.New().
		AddNode("count", count).
		AddConditionalEdges("count", router, map[string]string{
			"again": "count",
			"done":  stategraph.END,
		}).
		SetEntryPoint("count").
		Compile()
	if err != nil {
		b.Fatal(err)
	}
	ctx := benchContext()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := plan.Execute(ctx, nil, stategraph.WithMaxIterations(25)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkMerge_10Updates measures the merge path alone.
func BenchmarkMerge_10Updates(b *testing.B) {
	base := state.FromMap(map[string]any{"seed": 1})
	updates := make([]state.Update, 10)
	for i := range updates {
		updates[i] = state.Update{nodeID(i): i}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := base.Merge(state.RejectConflicts, updates...); err != nil {
			b.Fatal(err)
		}
	}
}
