package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/wkalt/tablelog/checkpoint"
	"github.com/wkalt/tablelog/storage"
	"github.com/wkalt/tablelog/txlog"
	"github.com/wkalt/tablelog/util/log"
	"golang.org/x/sync/errgroup"
)

/*
The reconstructor computes the state of a table at a target version from a
single listing of the log directory. It loads the newest checkpoint at or
below the target, fetches the entries after it concurrently, and folds them in
version order.

Retention may delete artifacts below the latest checkpoint while a
reconstruction is in flight. If a listed artifact vanishes before it is read,
the reconstructor lists again, once. When a newer checkpoint now covers the
vanished version it starts over from that checkpoint. Otherwise the log has a
gap and reconstruction fails with MissingCheckpointContinuityError.
*/

////////////////////////////////////////////////////////////////////////////////

// Reconstructor builds snapshots of a table from its log.
type Reconstructor struct {
	log  *txlog.Log
	conf config
}

// NewReconstructor returns a reconstructor over the log.
func NewReconstructor(l *txlog.Log, opts ...Option) *Reconstructor {
	conf := config{concurrency: defaultConcurrency}
	for _, opt := range opts {
		opt(&conf)
	}
	return &Reconstructor{log: l, conf: conf}
}

// vanishedError is an artifact that was listed but gone when read.
type vanishedError struct {
	version int64
	err     error
}

func (e vanishedError) Error() string {
	return fmt.Sprintf("version %d vanished during reconstruction: %s", e.version, e.err)
}

func (e vanishedError) Unwrap() error {
	return e.err
}

// Latest reconstructs the newest version of the table. An empty log yields
// an empty state at txlog.NoVersion.
func (r *Reconstructor) Latest(ctx context.Context) (*State, error) {
	artifacts, err := r.log.ListArtifacts(ctx)
	if err != nil {
		return nil, err
	}
	latest := txlog.LatestVersionOf(artifacts)
	if latest == txlog.NoVersion {
		return New(), nil
	}
	return r.reconstructWithRetry(ctx, artifacts, latest)
}

// Reconstruct returns the state of the table at target.
func (r *Reconstructor) Reconstruct(ctx context.Context, target int64) (*State, error) {
	if target < 0 {
		return nil, txlog.VersionNotFoundError{Version: target}
	}
	artifacts, err := r.log.ListArtifacts(ctx)
	if err != nil {
		return nil, err
	}
	if target > txlog.LatestVersionOf(artifacts) {
		return nil, txlog.VersionNotFoundError{Version: target}
	}
	return r.reconstructWithRetry(ctx, artifacts, target)
}

func (r *Reconstructor) reconstructWithRetry(
	ctx context.Context,
	artifacts []txlog.Artifact,
	target int64,
) (*State, error) {
	state, base, err := r.reconstruct(ctx, artifacts, target)
	vanished := vanishedError{}
	if !errors.As(err, &vanished) {
		return state, err
	}
	log.Infow(ctx, "artifact vanished during reconstruction, relisting",
		"version", vanished.version, "target", target)
	artifacts, err = r.log.ListArtifacts(ctx)
	if err != nil {
		return nil, err
	}
	if r.baseCheckpoint(artifacts, target) <= base {
		return nil, MissingCheckpointContinuityError{
			Checkpoint: base,
			Missing:    vanished.version,
			Target:     target,
		}
	}
	state, base, err = r.reconstruct(ctx, artifacts, target)
	if errors.As(err, &vanished) {
		return nil, MissingCheckpointContinuityError{
			Checkpoint: base,
			Missing:    vanished.version,
			Target:     target,
		}
	}
	return state, err
}

// baseCheckpoint returns the newest checkpoint version at or below target, or
// txlog.NoVersion.
func (r *Reconstructor) baseCheckpoint(artifacts []txlog.Artifact, target int64) int64 {
	if r.conf.ignoreCheckpoints {
		return txlog.NoVersion
	}
	base := txlog.NoVersion
	for _, a := range artifacts {
		if a.Kind == txlog.KindCheckpoint && a.Version <= target {
			base = max(base, a.Version)
		}
	}
	return base
}

func (r *Reconstructor) reconstruct(
	ctx context.Context,
	artifacts []txlog.Artifact,
	target int64,
) (*State, int64, error) {
	base := r.baseCheckpoint(artifacts, target)
	listed := make(map[int64]bool, len(artifacts))
	for _, a := range artifacts {
		if a.Kind == txlog.KindEntry {
			listed[a.Version] = true
		}
	}
	for v := base + 1; v <= target; v++ {
		if !listed[v] {
			return nil, base, MissingCheckpointContinuityError{Checkpoint: base, Missing: v, Target: target}
		}
	}

	state := New()
	if base >= 0 {
		cp, err := r.loadCheckpoint(ctx, base)
		if err != nil {
			return nil, base, err
		}
		state = FromCheckpoint(cp)
	}

	entries := make([]*txlog.Entry, target-base)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.conf.concurrency)
	for i := range entries {
		version := base + 1 + int64(i)
		g.Go(func() error {
			entry, err := r.log.Read(gctx, version)
			if err != nil {
				if errors.Is(err, txlog.VersionNotFoundError{}) {
					return vanishedError{version: version, err: err}
				}
				return err
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, base, err
	}
	for _, entry := range entries {
		if err := state.Apply(entry); err != nil {
			return nil, base, err
		}
	}
	stats := r.log.CacheStats()
	log.Debugw(ctx, "reconstructed snapshot",
		"version", target, "checkpoint", base, "replayed", len(entries),
		"cache_hits", stats.Hits, "cache_misses", stats.Misses)
	return state, base, nil
}

func (r *Reconstructor) loadCheckpoint(ctx context.Context, version int64) (*checkpoint.Checkpoint, error) {
	data, err := r.log.ReadCheckpoint(ctx, version)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, vanishedError{version: version, err: err}
		}
		return nil, err
	}
	cp, err := checkpoint.Decode(version, data)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return cp, nil
}
