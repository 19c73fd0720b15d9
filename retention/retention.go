package retention

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wkalt/tablelog/actions"
	"github.com/wkalt/tablelog/config"
	"github.com/wkalt/tablelog/storage"
	"github.com/wkalt/tablelog/txlog"
	"github.com/wkalt/tablelog/util/log"
)

/*
The retention package reclaims log entries and checkpoints that are no longer
needed to reconstruct the table.

Nothing is deleted until a checkpoint exists. Given the latest checkpoint C,
an artifact is eligible for deletion when its version is below C and its
modification time is older than the log retention duration. Everything at or
after C is always kept, so every version from C onward stays reconstructible.

Modification times are adjusted before comparison so that they never decrease
with version. A skewed clock can therefore delay the deletion of an artifact
but never cause an artifact to be deleted before one older than it.
*/

////////////////////////////////////////////////////////////////////////////////

// Policy holds the retention durations of a table.
type Policy struct {
	// LogRetention is how long log entries and checkpoints are kept once
	// superseded by a newer checkpoint.
	LogRetention time.Duration

	// TombstoneRetention is how long removed files remain in checkpoints.
	TombstoneRetention time.Duration
}

// PolicyOf returns the policy configured by table properties.
func PolicyOf(conf config.TableConfig) Policy {
	return Policy{
		LogRetention:       conf.LogRetentionDuration,
		TombstoneRetention: conf.DeletedFileRetentionDuration,
	}
}

// TombstoneExpired reports whether a tombstone should be dropped from a
// checkpoint built at now.
func (p Policy) TombstoneExpired(now time.Time, remove actions.RemoveFile) bool {
	return now.Sub(remove.DeletedAt()) >= p.TombstoneRetention
}

// RetentionInvariantError is returned when cleanup is asked to delete an
// artifact at or after the latest checkpoint. Nothing is deleted.
type RetentionInvariantError struct {
	Name       string
	Version    int64
	Checkpoint int64
}

func (e RetentionInvariantError) Error() string {
	return fmt.Sprintf(
		"refusing to delete %s: version %d is not below latest checkpoint %d",
		e.Name, e.Version, e.Checkpoint,
	)
}

func (e RetentionInvariantError) Is(target error) bool {
	_, ok := target.(RetentionInvariantError)
	return ok
}

// Report describes the outcome of a cleanup.
type Report struct {
	// Checkpoint is the latest checkpoint version, or txlog.NoVersion if
	// there was none and nothing was done.
	Checkpoint int64
	Deleted    []txlog.Artifact

	// Absent lists candidates that were already gone when deleted.
	Absent []txlog.Artifact
}

// Plan returns the artifacts that cleanup would delete at now, in ascending
// version order.
func Plan(ctx context.Context, l *txlog.Log, p Policy, now time.Time) ([]txlog.Artifact, error) {
	_, candidates, err := plan(ctx, l, p, now)
	return candidates, err
}

func plan(ctx context.Context, l *txlog.Log, p Policy, now time.Time) (int64, []txlog.Artifact, error) {
	artifacts, err := l.ListArtifacts(ctx)
	if err != nil {
		return txlog.NoVersion, nil, err
	}
	checkpoint := txlog.NoVersion
	for _, a := range artifacts {
		if a.Kind == txlog.KindCheckpoint {
			checkpoint = max(checkpoint, a.Version)
		}
	}
	if checkpoint == txlog.NoVersion {
		return checkpoint, nil, nil
	}
	cutoff := now.Add(-p.LogRetention)
	candidates := []txlog.Artifact{}
	var adjusted time.Time
	for _, a := range artifacts {
		if a.LastModified.After(adjusted) {
			adjusted = a.LastModified
		}
		if a.Version >= checkpoint {
			break
		}
		if adjusted.Before(cutoff) {
			candidates = append(candidates, a)
		}
	}
	return checkpoint, candidates, nil
}

// CleanUpExpiredLogs deletes the artifacts that have expired under the
// policy at now. Artifacts that are already gone are skipped. Any other
// failure stops the cleanup, leaving earlier deletions in place.
func CleanUpExpiredLogs(ctx context.Context, l *txlog.Log, p Policy, now time.Time) error {
	_, err := Run(ctx, l, p, now)
	return err
}

// Run is CleanUpExpiredLogs with a report of what was deleted.
func Run(ctx context.Context, l *txlog.Log, p Policy, now time.Time) (*Report, error) {
	checkpoint, candidates, err := plan(ctx, l, p, now)
	if err != nil {
		return nil, err
	}
	if checkpoint == txlog.NoVersion {
		log.Debugw(ctx, "no checkpoint, skipping log cleanup")
		return &Report{Checkpoint: checkpoint}, nil
	}
	return execute(ctx, l, checkpoint, candidates)
}

func execute(
	ctx context.Context,
	l *txlog.Log,
	checkpoint int64,
	candidates []txlog.Artifact,
) (*Report, error) {
	report := &Report{
		Checkpoint: checkpoint,
		Deleted:    []txlog.Artifact{},
		Absent:     []txlog.Artifact{},
	}
	for _, a := range candidates {
		if a.Version >= checkpoint {
			return report, RetentionInvariantError{Name: a.Name, Version: a.Version, Checkpoint: checkpoint}
		}
		err := l.Delete(ctx, a)
		switch {
		case err == nil:
			report.Deleted = append(report.Deleted, a)
		case errors.Is(err, storage.ErrObjectNotFound):
			log.Infow(ctx, "expired artifact already deleted", "name", a.Name)
			report.Absent = append(report.Absent, a)
		case errors.Is(err, storage.StorageFailureError{}):
			return report, err
		default:
			return report, storage.StorageFailureError{Op: "delete", Name: a.Name, Err: err}
		}
	}
	log.Infow(ctx, "cleaned up expired log artifacts",
		"checkpoint", checkpoint, "deleted", len(report.Deleted), "absent", len(report.Absent))
	return report, nil
}
