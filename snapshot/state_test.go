package snapshot_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wkalt/tablelog/actions"
	"github.com/wkalt/tablelog/snapshot"
	"github.com/wkalt/tablelog/txlog"
)

func add(path string) actions.AddFile {
	return actions.AddFile{Path: path, Size: int64(len(path)), DataChange: true}
}

func remove(path string, at int64) actions.RemoveFile {
	return actions.RemoveFile{Path: path, DeletionTimestamp: &at, DataChange: true}
}

func entry(version int64, acts ...actions.Action) *txlog.Entry {
	return &txlog.Entry{Version: version, Actions: acts}
}

func fold(t *testing.T, entries ...*txlog.Entry) *snapshot.State {
	t.Helper()
	s := snapshot.New()
	for _, e := range entries {
		require.NoError(t, s.Apply(e))
	}
	return s
}

func TestApply(t *testing.T) {
	cases := []struct {
		assertion  string
		entries    []*txlog.Entry
		files      []string
		tombstones map[string]int64
	}{
		{
			"add registers files",
			[]*txlog.Entry{entry(0, add("a"), add("b"))},
			[]string{"a", "b"},
			map[string]int64{},
		},
		{
			"remove moves file to tombstones",
			[]*txlog.Entry{entry(0, add("a"), add("b")), entry(1, remove("a", 10))},
			[]string{"b"},
			map[string]int64{"a": 10},
		},
		{
			"remove of unknown path is ignored",
			[]*txlog.Entry{entry(0, add("a")), entry(1, remove("z", 10))},
			[]string{"a"},
			map[string]int64{},
		},
		{
			"second remove replaces tombstone",
			[]*txlog.Entry{entry(0, add("a")), entry(1, remove("a", 10)), entry(2, remove("a", 20))},
			[]string{},
			map[string]int64{"a": 20},
		},
		{
			"re-add clears tombstone",
			[]*txlog.Entry{entry(0, add("a")), entry(1, remove("a", 10)), entry(2, add("a"))},
			[]string{"a"},
			map[string]int64{},
		},
		{
			"add and remove in one entry",
			[]*txlog.Entry{entry(0, add("a"), remove("a", 5))},
			[]string{},
			map[string]int64{"a": 5},
		},
		{
			"commit info and opaque actions are ignored",
			[]*txlog.Entry{entry(0,
				actions.CommitInfo{Operation: "WRITE"},
				actions.Opaque{Kind: "txn", Payload: []byte(`{}`)},
				add("a"),
			)},
			[]string{"a"},
			map[string]int64{},
		},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			s := fold(t, c.entries...)
			assert.Equal(t, c.files, s.Paths())
			tombstones := map[string]int64{}
			for path, r := range s.Tombstones {
				tombstones[path] = *r.DeletionTimestamp
			}
			assert.Equal(t, c.tombstones, tombstones)
			assert.Equal(t, int64(len(c.entries)-1), s.Version)
			for path := range s.Files {
				assert.NotContains(t, s.Tombstones, path)
			}
		})
	}

	t.Run("metadata and protocol replace previous value", func(t *testing.T) {
		s := fold(t,
			entry(0, actions.Metadata{ID: "1", Name: "first"}, actions.Protocol{MinReaderVersion: 1, MinWriterVersion: 2}),
			entry(1, actions.Metadata{ID: "1", Name: "second"}),
		)
		require.NotNil(t, s.Metadata)
		assert.Equal(t, "second", s.Metadata.Name)
		require.NotNil(t, s.Protocol)
		assert.Equal(t, 2, s.Protocol.MinWriterVersion)
	})
	t.Run("entries must be contiguous", func(t *testing.T) {
		s := fold(t, entry(0, add("a")))
		err := s.Apply(entry(2, add("b")))
		require.ErrorIs(t, err, txlog.NonContiguousVersionError{})
		assert.Equal(t, int64(0), s.Version)
	})
}

func TestStateHelpers(t *testing.T) {
	s := fold(t,
		entry(0, add("date=2024-01-01/a.parquet"), add("date=2024-01-02/b.parquet"), add("c.parquet")),
		entry(1, remove("c.parquet", 1000)),
	)

	t.Run("counts", func(t *testing.T) {
		assert.Equal(t, 2, s.FileCount())
		assert.Equal(t, 1, s.TombstoneCount())
	})
	t.Run("glob", func(t *testing.T) {
		cases := []struct {
			assertion string
			pattern   string
			expected  []string
		}{
			{"everything", "**", []string{"date=2024-01-01/a.parquet", "date=2024-01-02/b.parquet"}},
			{"one partition", "date=2024-01-01/*", []string{"date=2024-01-01/a.parquet"}},
			{"tombstones excluded", "c.parquet", []string{}},
			{"alternation", "date=2024-01-0{2,3}/*.parquet", []string{"date=2024-01-02/b.parquet"}},
		}
		for _, c := range cases {
			t.Run(c.assertion, func(t *testing.T) {
				files, err := s.Glob(c.pattern)
				require.NoError(t, err)
				paths := []string{}
				for _, f := range files {
					paths = append(paths, f.Path)
				}
				assert.Equal(t, c.expected, paths)
			})
		}
		_, err := s.Glob("[")
		require.Error(t, err)
	})
	t.Run("live tombstones", func(t *testing.T) {
		deleted := time.UnixMilli(1000)
		assert.Len(t, s.LiveTombstones(deleted.Add(time.Hour-time.Millisecond), time.Hour), 1)
		assert.Empty(t, s.LiveTombstones(deleted.Add(time.Hour), time.Hour))
	})
	t.Run("clone is independent", func(t *testing.T) {
		clone := s.Clone()
		require.NoError(t, clone.Apply(entry(2, add("d.parquet"))))
		assert.Equal(t, 3, clone.FileCount())
		assert.Equal(t, 2, s.FileCount())
		assert.Equal(t, int64(1), s.Version)
	})
	t.Run("checkpoint filters tombstones", func(t *testing.T) {
		cp := s.Checkpoint(func(actions.RemoveFile) bool { return false })
		assert.Equal(t, int64(1), cp.Version)
		assert.Len(t, cp.Files, 2)
		assert.Empty(t, cp.Tombstones)
		assert.Equal(t, "date=2024-01-01/a.parquet", cp.Files[0].Path)

		restored := snapshot.FromCheckpoint(s.Checkpoint(nil))
		assert.Equal(t, s.Files, restored.Files)
		assert.Equal(t, s.Tombstones, restored.Tombstones)
	})
}

func TestChecksum(t *testing.T) {
	forward := fold(t, entry(0, add("a"), add("b"), add("c")))
	backward := fold(t, entry(0, add("c"), add("b"), add("a")))
	different := fold(t, entry(0, add("a"), add("b")))
	removed := fold(t, entry(0, add("a"), add("b"), add("x")), entry(1, remove("x", 1)))

	sum := func(s *snapshot.State) uint64 {
		v, err := s.Checksum()
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, sum(forward), sum(backward))
	assert.NotEqual(t, sum(forward), sum(different))
	assert.Equal(t, sum(different), sum(removed))

	withMetadata := forward.Clone()
	withMetadata.Metadata = &actions.Metadata{ID: "x"}
	assert.NotEqual(t, sum(forward), sum(withMetadata))
}
