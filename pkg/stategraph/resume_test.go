package stategraph

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stategraph/stategraph/pkg/stategraph/checkpoint"
	"github.com/stategraph/stategraph/pkg/stategraph/state"
)

// addPlan builds a -> b -> c where each node adds its amount to "n".
func addPlan(t *testing.T) *Plan {
	t.Helper()

	add := func(amount int) NodeFunc {
		return func(_ Context, s state.State) (state.Update, error) {
			return state.Update{"n": s.Int("n", 0) + amount}, nil
		}
	}

	plan, err := New().
		AddNode("a", add(1)).
		AddNode("b", add(10)).
		AddNode("c", add(100)).
		AddEdge("a", "b").
		AddEdge("b", "c").
		AddEdge("c", END).
		SetEntryPoint("a").
		Compile()
	require.NoError(t, err)
	return plan
}

// TestExecute_CheckpointsEveryMerge verifies one checkpoint per round,
// with step ordinals, frontier, and completed labels.
func TestExecute_CheckpointsEveryMerge(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	plan := addPlan(t)

	res, err := plan.Execute(testContext(), nil,
		WithRunID("r1"),
		WithCheckpointStore(store),
	)
	require.NoError(t, err)
	assert.Equal(t, 111, res.State.Int("n", 0))

	infos, err := store.List("r1")
	require.NoError(t, err)
	require.Len(t, infos, 3)
	for i, info := range infos {
		assert.Equal(t, i+1, info.Step)
	}
	assert.Equal(t, "a", infos[0].Frontier)
	assert.Equal(t, "c", infos[2].Frontier)

	// The final checkpoint carries the full state and an empty frontier.
	data, err := store.Latest("r1")
	require.NoError(t, err)
	cp, err := checkpoint.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, 3, cp.Step)
	assert.Empty(t, cp.Frontier)
	assert.JSONEq(t, `{"n":111}`, string(cp.State))
}

// TestResume_FinishedRun verifies resuming a completed run returns its
// result without executing any node.
func TestResume_FinishedRun(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	var runs atomic.Int32

	plan, err := New().
		AddNode("a", func(_ Context, _ state.State) (state.Update, error) {
			runs.Add(1)
			return state.Update{"done": true}, nil
		}).
		AddEdge("a", END).
		SetEntryPoint("a").
		Compile()
	require.NoError(t, err)

	_, err = plan.Execute(testContext(), nil, WithRunID("r1"), WithCheckpointStore(store))
	require.NoError(t, err)
	require.Equal(t, int32(1), runs.Load())

	res, err := plan.Resume(testContext(), store, "r1")
	require.NoError(t, err)
	assert.Equal(t, Succeeded, res.Status)
	assert.Equal(t, true, res.State.GetDefault("done", false))
	assert.Equal(t, int32(1), runs.Load(), "no node may re-execute")
}

// TestResume_AfterAbort verifies an aborted run continues from its last
// checkpoint without re-executing completed rounds.
func TestResume_AfterAbort(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	var draftRuns, reviewRuns atomic.Int32

	draft := func(_ Context, s state.State) (state.Update, error) {
		draftRuns.Add(1)
		return state.Update{"drafts": s.Int("drafts", 0) + 1}, nil
	}
	review := func(_ Context, s state.State) (state.Update, error) {
		reviewRuns.Add(1)
		return state.Update{"reviews": s.Int("reviews", 0) + 1}, nil
	}
	router := func(_ Context, s state.State) string {
		if s.Int("reviews", 0) >= 3 {
			return "accept"
		}
		return "revise"
	}

	plan, err := New().
		AddNode("draft", draft).
		AddNode("review", review).
		AddEdge("draft", "review").
		AddConditionalEdges("review", router, map[string]string{
			"revise": "draft",
			"accept": END,
		}).
		SetEntryPoint("draft").
		Compile()
	require.NoError(t, err)

	_, err = plan.Execute(testContext(), nil,
		WithRunID("r1"),
		WithCheckpointStore(store),
		WithMaxIterations(3),
	)
	require.ErrorIs(t, err, ErrIterationLimit)
	require.Equal(t, int32(2), draftRuns.Load())
	require.Equal(t, int32(1), reviewRuns.Load())

	res, err := plan.Resume(testContext(), store, "r1")
	require.NoError(t, err)

	assert.Equal(t, Succeeded, res.Status)
	assert.Equal(t, 3, res.State.Int("drafts", 0))
	assert.Equal(t, 3, res.State.Int("reviews", 0))
	// Only the remaining work ran: 1 more draft, 2 more reviews.
	assert.Equal(t, int32(3), draftRuns.Load())
	assert.Equal(t, int32(3), reviewRuns.Load())
}

// TestResumeFromStep_TimeTravel verifies rewinding to an earlier step
// re-executes everything after it.
func TestResumeFromStep_TimeTravel(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	plan := addPlan(t)

	_, err := plan.Execute(testContext(), nil, WithRunID("r1"), WithCheckpointStore(store))
	require.NoError(t, err)

	// Rewind to after node a: n=1, frontier [b].
	res, err := plan.ResumeFromStep(testContext(), store, "r1", 1)
	require.NoError(t, err)
	assert.Equal(t, Succeeded, res.Status)
	assert.Equal(t, 111, res.State.Int("n", 0))
}

// TestResumeFromStep_Branching verifies rewinding under a fresh run ID
// leaves the original history untouched.
func TestResumeFromStep_Branching(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	plan := addPlan(t)

	_, err := plan.Execute(testContext(), nil, WithRunID("r1"), WithCheckpointStore(store))
	require.NoError(t, err)

	res, err := plan.ResumeFromStep(testContext(), store, "r1", 1, WithRunID("branch"))
	require.NoError(t, err)
	assert.Equal(t, "branch", res.RunID)
	assert.Equal(t, 111, res.State.Int("n", 0))

	// The branch continues step numbering past the rewind point.
	branchInfos, err := store.List("branch")
	require.NoError(t, err)
	require.Len(t, branchInfos, 2)
	assert.Equal(t, 2, branchInfos[0].Step)
	assert.Equal(t, 3, branchInfos[1].Step)

	// Original history is intact.
	originals, err := store.List("r1")
	require.NoError(t, err)
	assert.Len(t, originals, 3)
}

// TestResume_JoinBarrierRestored verifies a checkpointed half-complete
// join barrier is not forgotten across resume.
func TestResume_JoinBarrierRestored(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	var joinRuns atomic.Int32

	join := func(_ Context, s state.State) (state.Update, error) {
		joinRuns.Add(1)
		return state.Update{"joined": s.Has("short") && s.Has("long2")}, nil
	}

	plan, err := New().
		AddNode("fork", passthrough()).
		AddNode("short", setField("short", true)).
		AddNode("long1", setField("long1", true)).
		AddNode("long2", setField("long2", true)).
		AddNode("join", join).
		AddEdge("fork", "short").
		AddEdge("fork", "long1").
		AddEdge("long1", "long2").
		AddEdge("short", "join").
		AddEdge("long2", "join").
		AddEdge("join", END).
		SetEntryPoint("fork").
		Compile()
	require.NoError(t, err)

	// Abort after round 2: short has arrived at the join, long2 has not.
	_, err = plan.Execute(testContext(), nil,
		WithRunID("r1"),
		WithCheckpointStore(store),
		WithMaxIterations(2),
	)
	require.ErrorIs(t, err, ErrIterationLimit)
	require.Equal(t, int32(0), joinRuns.Load())

	data, err := store.Latest("r1")
	require.NoError(t, err)
	cp, err := checkpoint.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"join": {"short"}}, cp.Arrivals)

	res, err := plan.Resume(testContext(), store, "r1")
	require.NoError(t, err)

	assert.Equal(t, Succeeded, res.Status)
	assert.Equal(t, int32(1), joinRuns.Load())
	assert.Equal(t, true, res.State.GetDefault("joined", false))
}

// TestResume_Errors covers the resume precondition failures.
func TestResume_Errors(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	plan := addPlan(t)

	_, err := plan.Resume(testContext(), store, "")
	assert.ErrorIs(t, err, ErrRunIDRequired)

	_, err = plan.Resume(testContext(), store, "never-ran")
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)

	_, err = plan.ResumeFromStep(testContext(), store, "never-ran", 1)
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)

	_, err = plan.Resume(nil, store, "r1")
	assert.ErrorIs(t, err, ErrNilContext)
}

// TestResume_VersionMismatch verifies incompatible checkpoint formats
// are rejected.
func TestResume_VersionMismatch(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	plan := addPlan(t)

	cp := checkpoint.New("r1", 1, "a", []byte(`{"n":1}`), []string{"b"})
	cp.Version = 99
	data, err := cp.Marshal()
	require.NoError(t, err)
	require.NoError(t, store.Save("r1", 1, data))

	_, err = plan.Resume(testContext(), store, "r1")
	assert.ErrorIs(t, err, ErrCheckpointVersion)
}
