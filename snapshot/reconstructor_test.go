package snapshot_test

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wkalt/tablelog/actions"
	"github.com/wkalt/tablelog/checkpoint"
	"github.com/wkalt/tablelog/snapshot"
	"github.com/wkalt/tablelog/storage"
	"github.com/wkalt/tablelog/txlog"
)

const root = "tables/events"

func commitAll(t *testing.T, l *txlog.Log, entries [][]actions.Action) {
	t.Helper()
	ctx := context.Background()
	for i, acts := range entries {
		require.NoError(t, l.Commit(ctx, int64(i), acts))
	}
}

func writeCheckpoint(t *testing.T, l *txlog.Log, version int64) {
	t.Helper()
	ctx := context.Background()
	s, err := snapshot.NewReconstructor(l).Reconstruct(ctx, version)
	require.NoError(t, err)
	data, err := checkpoint.Encode(s.Checkpoint(nil))
	require.NoError(t, err)
	require.NoError(t, l.WriteCheckpoint(ctx, version, data))
}

// shiftingEntries adds file i at version i and removes file i-1.
func shiftingEntries(n int) [][]actions.Action {
	entries := [][]actions.Action{}
	for i := 0; i < n; i++ {
		acts := []actions.Action{add(fmt.Sprint(i))}
		if i > 0 {
			acts = append(acts, remove(fmt.Sprint(i-1), int64(i)))
		}
		entries = append(entries, acts)
	}
	return entries
}

func TestReconstruct(t *testing.T) {
	ctx := context.Background()

	t.Run("empty log", func(t *testing.T) {
		l := txlog.New(storage.NewMemStore(nil), root)
		s, err := snapshot.NewReconstructor(l).Latest(ctx)
		require.NoError(t, err)
		assert.Equal(t, txlog.NoVersion, s.Version)
		assert.Zero(t, s.FileCount())

		_, err = snapshot.NewReconstructor(l).Reconstruct(ctx, 0)
		require.ErrorIs(t, err, txlog.VersionNotFoundError{})
	})

	t.Run("replay without checkpoint", func(t *testing.T) {
		l := txlog.New(storage.NewMemStore(nil), root)
		commitAll(t, l, shiftingEntries(5))
		r := snapshot.NewReconstructor(l)
		for v := int64(0); v < 5; v++ {
			s, err := r.Reconstruct(ctx, v)
			require.NoError(t, err)
			assert.Equal(t, v, s.Version)
			assert.Equal(t, []string{fmt.Sprint(v)}, s.Paths())
			assert.Equal(t, int(v), s.TombstoneCount())
		}
		_, err := r.Reconstruct(ctx, 5)
		require.ErrorIs(t, err, txlog.VersionNotFoundError{})
		_, err = r.Reconstruct(ctx, -1)
		require.ErrorIs(t, err, txlog.VersionNotFoundError{})
	})

	t.Run("starts from newest checkpoint at or below target", func(t *testing.T) {
		store := storage.NewMemStore(nil)
		l := txlog.New(store, root)
		commitAll(t, l, shiftingEntries(8))
		writeCheckpoint(t, l, 3)
		writeCheckpoint(t, l, 6)

		// without entries 0-5, only the checkpoints can explain versions >= 6
		for v := 0; v < 6; v++ {
			require.NoError(t, store.Delete(ctx, l.Path(txlog.EntryName(int64(v)))))
		}
		l = txlog.New(store, root)
		r := snapshot.NewReconstructor(l)
		s, err := r.Reconstruct(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, []string{"7"}, s.Paths())
		assert.Equal(t, 7, s.TombstoneCount())

		s, err = r.Reconstruct(ctx, 6)
		require.NoError(t, err)
		assert.Equal(t, []string{"6"}, s.Paths())

		_, err = r.Reconstruct(ctx, 4)
		require.ErrorIs(t, err, snapshot.MissingCheckpointContinuityError{})
	})

	t.Run("gap after checkpoint", func(t *testing.T) {
		store := storage.NewMemStore(nil)
		l := txlog.New(store, root)
		commitAll(t, l, shiftingEntries(6))
		writeCheckpoint(t, l, 2)
		require.NoError(t, store.Delete(ctx, l.Path(txlog.EntryName(4))))
		_, err := snapshot.NewReconstructor(txlog.New(store, root)).Reconstruct(ctx, 5)
		require.ErrorIs(t, err, snapshot.MissingCheckpointContinuityError{})
		missing := snapshot.MissingCheckpointContinuityError{}
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, int64(2), missing.Checkpoint)
		assert.Equal(t, int64(4), missing.Missing)
	})

	t.Run("missing version zero without checkpoint", func(t *testing.T) {
		store := storage.NewMemStore(nil)
		l := txlog.New(store, root)
		commitAll(t, l, shiftingEntries(2))
		require.NoError(t, store.Delete(ctx, l.Path(txlog.EntryName(0))))
		_, err := snapshot.NewReconstructor(txlog.New(store, root)).Reconstruct(ctx, 1)
		missing := snapshot.MissingCheckpointContinuityError{}
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, txlog.NoVersion, missing.Checkpoint)
		assert.Equal(t, int64(0), missing.Missing)
	})

	t.Run("corrupt checkpoint", func(t *testing.T) {
		l := txlog.New(storage.NewMemStore(nil), root)
		commitAll(t, l, shiftingEntries(2))
		require.NoError(t, l.WriteCheckpoint(ctx, 1, []byte("garbage")))
		_, err := snapshot.NewReconstructor(l).Reconstruct(ctx, 1)
		require.ErrorIs(t, err, checkpoint.CorruptCheckpointError{})
	})

	t.Run("ignoring checkpoints", func(t *testing.T) {
		l := txlog.New(storage.NewMemStore(nil), root)
		commitAll(t, l, shiftingEntries(3))
		require.NoError(t, l.WriteCheckpoint(ctx, 2, []byte("garbage")))
		s, err := snapshot.NewReconstructor(l, snapshot.WithoutCheckpoints()).Reconstruct(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"2"}, s.Paths())
	})
}

func TestCheckpointsDoNotChangeState(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 10; trial++ {
		t.Run(fmt.Sprintf("trial %d", trial), func(t *testing.T) {
			l := txlog.New(storage.NewMemStore(nil), root)
			live := []string{}
			n := 10 + rng.Intn(20)
			for v := 0; v < n; v++ {
				acts := []actions.Action{}
				for i := 0; i < 1+rng.Intn(3); i++ {
					path := fmt.Sprintf("f-%d-%d", v, i)
					acts = append(acts, add(path))
					live = append(live, path)
				}
				if len(live) > 0 && rng.Intn(2) == 0 {
					idx := rng.Intn(len(live))
					acts = append(acts, remove(live[idx], int64(v)))
					live = append(live[:idx], live[idx+1:]...)
				}
				if rng.Intn(4) == 0 {
					acts = append(acts, remove("never-added", int64(v)))
				}
				require.NoError(t, l.Commit(ctx, int64(v), acts))
				if rng.Intn(5) == 0 {
					writeCheckpoint(t, l, int64(v))
				}
			}
			replay := snapshot.NewReconstructor(l, snapshot.WithoutCheckpoints())
			fast := snapshot.NewReconstructor(l)
			for v := int64(0); v < int64(n); v++ {
				expected, err := replay.Reconstruct(ctx, v)
				require.NoError(t, err)
				actual, err := fast.Reconstruct(ctx, v)
				require.NoError(t, err)
				assert.Equal(t, expected.Files, actual.Files, "version %d", v)
				assert.Equal(t, expected.Tombstones, actual.Tombstones, "version %d", v)
			}
		})
	}
}

// racingStore runs a hook the first time an entry matching trigger is read,
// standing in for a cleanup that runs between listing and reading.
type racingStore struct {
	storage.Provider
	trigger string
	hook    func()
	once    sync.Once
}

func (s *racingStore) Get(ctx context.Context, name string) ([]byte, error) {
	if strings.HasSuffix(name, s.trigger) {
		s.once.Do(s.hook)
	}
	return s.Provider.Get(ctx, name)
}

func TestReconstructDuringCleanup(t *testing.T) {
	ctx := context.Background()

	t.Run("restarts from covering checkpoint", func(t *testing.T) {
		base := storage.NewMemStore(nil)
		l := txlog.New(base, root)
		commitAll(t, l, shiftingEntries(5))
		s, err := snapshot.NewReconstructor(l).Reconstruct(ctx, 3)
		require.NoError(t, err)
		data, err := checkpoint.Encode(s.Checkpoint(nil))
		require.NoError(t, err)

		store := &racingStore{Provider: base, trigger: txlog.EntryName(1), hook: func() {
			assert.NoError(t, base.Put(ctx, l.Path(txlog.CheckpointName(3)), data))
			for v := 0; v < 3; v++ {
				assert.NoError(t, base.Delete(ctx, l.Path(txlog.EntryName(int64(v)))))
			}
		}}
		racing := txlog.New(store, root, txlog.WithEntryCacheSize(0))
		state, err := snapshot.NewReconstructor(racing, snapshot.WithConcurrency(1)).Reconstruct(ctx, 4)
		require.NoError(t, err)
		assert.Equal(t, []string{"4"}, state.Paths())
		assert.Equal(t, 4, state.TombstoneCount())
	})

	t.Run("uncovered deletion is a continuity error", func(t *testing.T) {
		base := storage.NewMemStore(nil)
		l := txlog.New(base, root)
		commitAll(t, l, shiftingEntries(5))
		store := &racingStore{Provider: base, trigger: txlog.EntryName(2), hook: func() {
			assert.NoError(t, base.Delete(ctx, l.Path(txlog.EntryName(2))))
		}}
		racing := txlog.New(store, root, txlog.WithEntryCacheSize(0))
		_, err := snapshot.NewReconstructor(racing, snapshot.WithConcurrency(1)).Reconstruct(ctx, 4)
		missing := snapshot.MissingCheckpointContinuityError{}
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, int64(2), missing.Missing)
	})
}
