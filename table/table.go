package table

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wkalt/tablelog/actions"
	"github.com/wkalt/tablelog/checkpoint"
	"github.com/wkalt/tablelog/clock"
	tconfig "github.com/wkalt/tablelog/config"
	"github.com/wkalt/tablelog/retention"
	"github.com/wkalt/tablelog/snapshot"
	"github.com/wkalt/tablelog/storage"
	"github.com/wkalt/tablelog/txlog"
	"github.com/wkalt/tablelog/util/log"
)

/*
A Table is a handle to one table root. It owns the table's log, keeps the
latest snapshot in memory, and ties together the operations that act on the
log as a whole: transactions, checkpoints, log cleanup and time travel.

After each commit whose version is a multiple of the checkpoint interval, the
table writes a checkpoint and, if the table enables it, cleans up expired log
artifacts. Failures in that step are logged and do not fail the commit, which
is already durable.
*/

////////////////////////////////////////////////////////////////////////////////

// Table is a handle to a table.
type Table struct {
	log           *txlog.Log
	reconstructor *snapshot.Reconstructor
	conf          config

	mtx     *sync.RWMutex
	current *snapshot.State
}

// Open opens the table at root, reconstructing its latest snapshot. A root
// with no log opens as an empty table.
func Open(ctx context.Context, store storage.Provider, root string, opts ...Option) (*Table, error) {
	conf := config{
		clock: clock.NewSystemClock(),
	}
	for _, opt := range opts {
		opt(&conf)
	}
	logOpts := []txlog.Option{}
	if conf.commits != nil {
		logOpts = append(logOpts, txlog.WithCommitStore(conf.commits))
	}
	l := txlog.New(store, root, logOpts...)
	if err := l.Recover(ctx); err != nil {
		return nil, err
	}
	t := &Table{
		log:           l,
		reconstructor: snapshot.NewReconstructor(l, conf.reconstructorOpts...),
		conf:          conf,
		mtx:           &sync.RWMutex{},
	}
	state, err := t.reconstructor.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open table %s: %w", root, err)
	}
	t.current = state
	log.Debugw(log.WithTable(ctx, t.log.Root(), state.Version), "opened table", "store", store.String())
	return t, nil
}

// Log returns the table's log.
func (t *Table) Log() *txlog.Log {
	return t.log
}

// Root returns the table root.
func (t *Table) Root() string {
	return t.log.Root()
}

// Clock returns the table's clock.
func (t *Table) Clock() clock.Clock {
	return t.conf.clock
}

// Snapshot returns the most recently loaded snapshot. It must not be
// modified.
func (t *Table) Snapshot() *snapshot.State {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	return t.current
}

// Update brings the table's snapshot up to the latest version and returns
// it. New entries are applied to the current snapshot when possible.
func (t *Table) Update(ctx context.Context) (*snapshot.State, error) {
	current := t.Snapshot()
	latest, err := t.log.LatestVersion(ctx)
	if err != nil {
		return nil, err
	}
	if latest == current.Version {
		return current, nil
	}
	state, err := t.advance(ctx, current, latest)
	if err != nil {
		return nil, err
	}
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if state.Version > t.current.Version {
		t.current = state
	}
	return t.current, nil
}

// advance returns the state at target. It replays forward from current and
// falls back to a full reconstruction if entries are missing.
func (t *Table) advance(ctx context.Context, current *snapshot.State, target int64) (*snapshot.State, error) {
	if target < current.Version {
		return t.reconstructor.Reconstruct(ctx, target)
	}
	state := current.Clone()
	for v := current.Version + 1; v <= target; v++ {
		entry, err := t.log.Read(ctx, v)
		if err != nil {
			if errors.Is(err, txlog.VersionNotFoundError{}) {
				return t.reconstructor.Reconstruct(ctx, target)
			}
			return nil, err
		}
		if err := state.Apply(entry); err != nil {
			return nil, err
		}
	}
	return state, nil
}

// SnapshotAt reconstructs the table at a version.
func (t *Table) SnapshotAt(ctx context.Context, version int64) (*snapshot.State, error) {
	current := t.Snapshot()
	if version == current.Version {
		return current, nil
	}
	return t.reconstructor.Reconstruct(ctx, version)
}

// VersionAtTimestamp returns the latest version committed at or before ts.
// Commit times come from each entry's commit info, or the artifact's
// modification time for entries without one.
func (t *Table) VersionAtTimestamp(ctx context.Context, ts time.Time) (int64, error) {
	artifacts, err := t.log.ListArtifacts(ctx)
	if err != nil {
		return txlog.NoVersion, err
	}
	result := txlog.NoVersion
	var earliest time.Time
	for _, a := range artifacts {
		if a.Kind != txlog.KindEntry {
			continue
		}
		entry, err := t.log.Read(ctx, a.Version)
		if err != nil {
			return txlog.NoVersion, err
		}
		committed := entry.CommitTimestamp
		if committed.IsZero() {
			committed = a.LastModified
		}
		if earliest.IsZero() {
			earliest = committed
		}
		if committed.After(ts) {
			break
		}
		result = a.Version
	}
	if result == txlog.NoVersion {
		if earliest.IsZero() {
			return txlog.NoVersion, ErrEmptyTable
		}
		return txlog.NoVersion, TimestampOutOfRangeError{Timestamp: ts, Earliest: earliest}
	}
	return result, nil
}

// SnapshotAtTimestamp reconstructs the table as of a time.
func (t *Table) SnapshotAtTimestamp(ctx context.Context, ts time.Time) (*snapshot.State, error) {
	version, err := t.VersionAtTimestamp(ctx, ts)
	if err != nil {
		return nil, err
	}
	return t.SnapshotAt(ctx, version)
}

// Properties returns the parsed table properties of the latest snapshot.
func (t *Table) Properties() (tconfig.TableConfig, error) {
	var props map[string]string
	if md := t.Snapshot().Metadata; md != nil {
		props = md.Configuration
	}
	return tconfig.FromProperties(props)
}

// RetentionPolicy returns the retention policy of the table, from the table
// properties unless overridden at open.
func (t *Table) RetentionPolicy() (retention.Policy, error) {
	if t.conf.policy != nil {
		return *t.conf.policy, nil
	}
	props, err := t.Properties()
	if err != nil {
		return retention.Policy{}, err
	}
	return retention.PolicyOf(props), nil
}

func (t *Table) checkpointInterval() (int64, error) {
	if t.conf.checkpointInterval != nil {
		return *t.conf.checkpointInterval, nil
	}
	props, err := t.Properties()
	if err != nil {
		return 0, err
	}
	return props.CheckpointInterval, nil
}

// Checkpoint writes a checkpoint at the latest version of the table.
func (t *Table) Checkpoint(ctx context.Context) (*checkpoint.Checkpoint, error) {
	latest, err := t.log.LatestVersion(ctx)
	if err != nil {
		return nil, err
	}
	if latest == txlog.NoVersion {
		return nil, ErrEmptyTable
	}
	return t.CheckpointAt(ctx, latest)
}

// LatestCheckpoint returns the version of the newest checkpoint.
func (t *Table) LatestCheckpoint(ctx context.Context) (int64, error) {
	artifacts, err := t.log.ListArtifacts(ctx)
	if err != nil {
		return txlog.NoVersion, err
	}
	latest := txlog.NoVersion
	for _, a := range artifacts {
		if a.Kind == txlog.KindCheckpoint {
			latest = a.Version
		}
	}
	if latest == txlog.NoVersion {
		return latest, ErrNoCheckpoint
	}
	return latest, nil
}

// CheckpointAt writes a checkpoint of the table at version, replacing any
// existing checkpoint there. Tombstones past the retention duration are
// dropped.
func (t *Table) CheckpointAt(ctx context.Context, version int64) (*checkpoint.Checkpoint, error) {
	ctx = log.WithTable(ctx, t.log.Root(), version)
	state, err := t.reconstructor.Reconstruct(ctx, version)
	if err != nil {
		return nil, err
	}
	policy, err := t.RetentionPolicy()
	if err != nil {
		return nil, err
	}
	now := t.conf.clock.Now()
	cp := state.Checkpoint(func(r actions.RemoveFile) bool {
		return !policy.TombstoneExpired(now, r)
	})
	data, err := checkpoint.Encode(cp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode checkpoint %d: %w", version, err)
	}
	if err := t.log.WriteCheckpoint(ctx, version, data); err != nil {
		return nil, err
	}
	log.Infow(ctx, "wrote checkpoint",
		"files", len(cp.Files),
		"tombstones", len(cp.Tombstones),
		"expired", state.TombstoneCount()-len(cp.Tombstones),
		"bytes", len(data),
	)
	return cp, nil
}

// CleanUpExpiredLogs deletes log artifacts that have expired under the
// table's retention policy.
func (t *Table) CleanUpExpiredLogs(ctx context.Context) (*retention.Report, error) {
	policy, err := t.RetentionPolicy()
	if err != nil {
		return nil, err
	}
	return retention.Run(log.WithTable(ctx, t.log.Root(), -1), t.log, policy, t.conf.clock.Now())
}

// PlanCleanup returns the artifacts CleanUpExpiredLogs would delete now.
func (t *Table) PlanCleanup(ctx context.Context) ([]txlog.Artifact, error) {
	policy, err := t.RetentionPolicy()
	if err != nil {
		return nil, err
	}
	return retention.Plan(ctx, t.log, policy, t.conf.clock.Now())
}

// afterCommit runs the checkpoint cadence for a newly committed version.
func (t *Table) afterCommit(ctx context.Context, version int64) {
	interval, err := t.checkpointInterval()
	if err != nil {
		log.Errorw(ctx, "failed to read checkpoint interval", "error", err)
		return
	}
	if interval <= 0 || version == 0 || version%interval != 0 {
		return
	}
	if _, err := t.CheckpointAt(ctx, version); err != nil {
		log.Errorw(ctx, "failed to write checkpoint", "error", err)
		return
	}
	props, err := t.Properties()
	if err != nil {
		log.Errorw(ctx, "failed to read table properties", "error", err)
		return
	}
	if !props.EnableExpiredLogCleanup {
		return
	}
	if _, err := t.CleanUpExpiredLogs(ctx); err != nil {
		log.Errorw(ctx, "failed to clean up expired logs", "error", err)
	}
}
