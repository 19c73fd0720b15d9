package actions_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wkalt/tablelog/actions"
)

func TestCodec(t *testing.T) {
	deleted := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	readVersion := int64(3)
	input := []actions.Action{
		actions.CommitInfo{
			Timestamp:   1704067200000,
			Operation:   "WRITE",
			ReadVersion: &readVersion,
			TxnID:       "abc",
		},
		actions.Protocol{MinReaderVersion: 1, MinWriterVersion: 2},
		actions.Metadata{
			ID:               "table-id",
			Format:           actions.Format{Provider: "parquet", Options: map[string]string{}},
			SchemaString:     "{}",
			PartitionColumns: []string{"date"},
			Configuration:    map[string]string{"delta.logRetentionDuration": "interval 2 days"},
		},
		actions.AddFile{
			Path:             "date=2024-01-01/part-0.parquet",
			PartitionValues:  map[string]string{"date": "2024-01-01"},
			Size:             100,
			ModificationTime: 1704067200000,
			DataChange:       true,
		},
		actions.NewRemove("part-1.parquet", deleted, true),
	}

	t.Run("round trip preserves order", func(t *testing.T) {
		data, err := actions.Encode(input)
		require.NoError(t, err)
		assert.Equal(t, len(input), strings.Count(string(data), "\n"))
		output, err := actions.Decode(data)
		require.NoError(t, err)
		require.Equal(t, input, output)
	})

	t.Run("one kind per line", func(t *testing.T) {
		data, err := actions.Encode(input[3:])
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		require.Len(t, lines, 2)
		assert.True(t, strings.HasPrefix(lines[0], `{"add":`))
		assert.True(t, strings.HasPrefix(lines[1], `{"remove":`))
	})

	t.Run("unknown kinds are preserved", func(t *testing.T) {
		data := []byte(`{"txn":{"appId":"x","version":4}}` + "\n" + `{"add":{"path":"a","size":1}}` + "\n")
		output, err := actions.Decode(data)
		require.NoError(t, err)
		require.Len(t, output, 2)
		opaque, ok := output[0].(actions.Opaque)
		require.True(t, ok)
		assert.Equal(t, "txn", opaque.Kind)

		reencoded, err := actions.Encode(output)
		require.NoError(t, err)
		again, err := actions.Decode(reencoded)
		require.NoError(t, err)
		assert.Equal(t, output, again)
	})

	t.Run("blank lines are skipped", func(t *testing.T) {
		output, err := actions.Decode([]byte("\n\n" + `{"add":{"path":"a"}}` + "\n\n"))
		require.NoError(t, err)
		assert.Len(t, output, 1)
	})

	t.Run("empty input", func(t *testing.T) {
		output, err := actions.Decode(nil)
		require.NoError(t, err)
		assert.Empty(t, output)
	})

	t.Run("malformed input", func(t *testing.T) {
		cases := []struct {
			assertion string
			input     string
		}{
			{"invalid json", `{"add":`},
			{"two kinds on one line", `{"add":{"path":"a"},"remove":{"path":"b"}}`},
			{"no kind", `{}`},
			{"bad payload type", `{"add":{"path":5}}`},
		}
		for _, c := range cases {
			t.Run(c.assertion, func(t *testing.T) {
				_, err := actions.Decode([]byte(c.input))
				require.ErrorIs(t, err, actions.MalformedActionError{})
			})
		}
	})
}

type counter struct {
	counts map[string]int
}

func (c *counter) AddFile(actions.AddFile) error       { c.counts["add"]++; return nil }
func (c *counter) RemoveFile(actions.RemoveFile) error { c.counts["remove"]++; return nil }
func (c *counter) Metadata(actions.Metadata) error     { c.counts["metadata"]++; return nil }
func (c *counter) Protocol(actions.Protocol) error     { c.counts["protocol"]++; return nil }
func (c *counter) CommitInfo(actions.CommitInfo) error { c.counts["commitInfo"]++; return nil }
func (c *counter) Opaque(actions.Opaque) error         { c.counts["opaque"]++; return nil }

func TestVisitor(t *testing.T) {
	c := &counter{counts: map[string]int{}}
	for _, a := range []actions.Action{
		actions.AddFile{Path: "a"},
		actions.AddFile{Path: "b"},
		actions.RemoveFile{Path: "a"},
		actions.CommitInfo{},
		actions.Opaque{Kind: "txn"},
	} {
		require.NoError(t, a.Accept(c))
	}
	assert.Equal(t, map[string]int{"add": 2, "remove": 1, "commitInfo": 1, "opaque": 1}, c.counts)
}

func TestRemoveFile(t *testing.T) {
	t.Run("deleted at", func(t *testing.T) {
		ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		r := actions.NewRemove("a", ts, true)
		assert.True(t, ts.Equal(r.DeletedAt()))
	})
	t.Run("missing timestamp is the epoch", func(t *testing.T) {
		r := actions.RemoveFile{Path: "a"}
		assert.Equal(t, int64(0), r.DeletedAt().UnixMilli())
	})
}

func TestCommitInfoOf(t *testing.T) {
	_, ok := actions.CommitInfoOf([]actions.Action{actions.AddFile{Path: "a"}})
	assert.False(t, ok)
	ci, ok := actions.CommitInfoOf([]actions.Action{actions.AddFile{Path: "a"}, actions.CommitInfo{Operation: "WRITE"}})
	assert.True(t, ok)
	assert.Equal(t, "WRITE", ci.Operation)
}
