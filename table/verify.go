package table

import (
	"context"
	"fmt"

	"github.com/wkalt/tablelog/checkpoint"
	"github.com/wkalt/tablelog/snapshot"
)

// VerifyCheckpoint checks the checkpoint at version against a full replay of
// the log. The checkpoint must have the same files, metadata and protocol as
// the replay, and each of its tombstones must be one the replay also has.
// Replay tombstones missing from the checkpoint are assumed expired. This
// requires every entry up to version to still be present.
func (t *Table) VerifyCheckpoint(ctx context.Context, version int64) error {
	data, err := t.log.ReadCheckpoint(ctx, version)
	if err != nil {
		return err
	}
	cp, err := checkpoint.Decode(version, data)
	if err != nil {
		return err
	}
	replayed, err := snapshot.NewReconstructor(t.log, snapshot.WithoutCheckpoints()).Reconstruct(ctx, version)
	if err != nil {
		return fmt.Errorf("failed to replay log: %w", err)
	}
	stored := snapshot.FromCheckpoint(cp)
	mismatch := func(format string, args ...any) error {
		return CheckpointMismatchError{Version: version, Reason: fmt.Sprintf(format, args...)}
	}
	if stored.FileCount() != replayed.FileCount() {
		return mismatch("checkpoint has %d files, log has %d", stored.FileCount(), replayed.FileCount())
	}
	for path := range replayed.Files {
		if _, ok := stored.Files[path]; !ok {
			return mismatch("file %s missing from checkpoint", path)
		}
	}
	for path := range stored.Tombstones {
		if _, ok := replayed.Tombstones[path]; !ok {
			return mismatch("tombstone %s not in log", path)
		}
	}
	expected, err := replayed.Checksum()
	if err != nil {
		return err
	}
	actual, err := stored.Checksum()
	if err != nil {
		return err
	}
	if expected != actual {
		return mismatch("checksum %016x, log checksum %016x", actual, expected)
	}
	return nil
}
