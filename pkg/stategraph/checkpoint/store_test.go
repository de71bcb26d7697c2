package checkpoint

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactories builds each Store implementation against the same
// conformance suite.
var storeFactories = map[string]func(t *testing.T) Store{
	"memory": func(t *testing.T) Store {
		return NewMemoryStore()
	},
	"sqlite": func(t *testing.T) Store {
		store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "checkpoints.db"))
		require.NoError(t, err)
		return store
	},
}

// mustSave saves a marshaled checkpoint record.
func mustSave(t *testing.T, store Store, runID string, step int, completed string) {
	t.Helper()
	cp := New(runID, step, completed, []byte(fmt.Sprintf(`{"count":%d}`, step)), nil)
	data, err := cp.Marshal()
	require.NoError(t, err)
	require.NoError(t, store.Save(runID, step, data))
}

// TestStore_SaveLoad verifies round-tripping a checkpoint through each store.
func TestStore_SaveLoad(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()

			mustSave(t, store, "run-1", 1, "fetch")

			data, err := store.Load("run-1", 1)
			require.NoError(t, err)

			cp, err := Unmarshal(data)
			require.NoError(t, err)
			assert.Equal(t, "fetch", cp.Completed)
		})
	}
}

// TestStore_Load_NotFound verifies missing checkpoints report ErrNotFound.
func TestStore_Load_NotFound(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()

			_, err := store.Load("missing-run", 1)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

// TestStore_Save_Overwrite verifies saving the same (run, step) twice
// keeps the newer data.
func TestStore_Save_Overwrite(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()

			mustSave(t, store, "run-1", 1, "first")
			mustSave(t, store, "run-1", 1, "second")

			data, err := store.Load("run-1", 1)
			require.NoError(t, err)
			cp, err := Unmarshal(data)
			require.NoError(t, err)
			assert.Equal(t, "second", cp.Completed)

			infos, err := store.List("run-1")
			require.NoError(t, err)
			assert.Len(t, infos, 1)
		})
	}
}

// TestStore_Latest verifies the highest step wins.
func TestStore_Latest(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()

			mustSave(t, store, "run-1", 1, "a")
			mustSave(t, store, "run-1", 3, "c")
			mustSave(t, store, "run-1", 2, "b")

			data, err := store.Latest("run-1")
			require.NoError(t, err)
			cp, err := Unmarshal(data)
			require.NoError(t, err)
			assert.Equal(t, 3, cp.Step)

			_, err = store.Latest("empty-run")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

// TestStore_List verifies ordering by step and metadata contents.
func TestStore_List(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()

			mustSave(t, store, "run-1", 2, "b")
			mustSave(t, store, "run-1", 1, "a")
			mustSave(t, store, "other-run", 1, "x")

			infos, err := store.List("run-1")
			require.NoError(t, err)
			require.Len(t, infos, 2)

			assert.Equal(t, 1, infos[0].Step)
			assert.Equal(t, "a", infos[0].Frontier)
			assert.Equal(t, 2, infos[1].Step)
			assert.Equal(t, "run-1", infos[1].RunID)
			assert.Greater(t, infos[0].Size, int64(0))

			empty, err := store.List("no-such-run")
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

// TestStore_Delete verifies single-checkpoint removal is idempotent.
func TestStore_Delete(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()

			mustSave(t, store, "run-1", 1, "a")
			require.NoError(t, store.Delete("run-1", 1))

			_, err := store.Load("run-1", 1)
			assert.ErrorIs(t, err, ErrNotFound)

			// Deleting a missing checkpoint is not an error.
			assert.NoError(t, store.Delete("run-1", 99))
		})
	}
}

// TestStore_DeleteRun verifies all checkpoints of a run are removed.
func TestStore_DeleteRun(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()

			mustSave(t, store, "run-1", 1, "a")
			mustSave(t, store, "run-1", 2, "b")
			mustSave(t, store, "run-2", 1, "x")

			require.NoError(t, store.DeleteRun("run-1"))

			infos, err := store.List("run-1")
			require.NoError(t, err)
			assert.Empty(t, infos)

			// Other runs are untouched.
			infos, err = store.List("run-2")
			require.NoError(t, err)
			assert.Len(t, infos, 1)
		})
	}
}

// TestStore_Closed verifies operations fail after Close.
func TestStore_Closed(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			require.NoError(t, store.Close())

			assert.ErrorIs(t, store.Save("run", 1, []byte("{}")), ErrStoreClosed)
			_, err := store.Load("run", 1)
			assert.ErrorIs(t, err, ErrStoreClosed)
			_, err = store.List("run")
			assert.ErrorIs(t, err, ErrStoreClosed)
		})
	}
}

// TestMemoryStore_Len verifies the test helper counts across runs.
func TestMemoryStore_Len(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	mustSave(t, store, "run-1", 1, "a")
	mustSave(t, store, "run-2", 1, "b")
	assert.Equal(t, 2, store.Len())
}
