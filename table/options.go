package table

import (
	"github.com/wkalt/tablelog/clock"
	"github.com/wkalt/tablelog/commitstore"
	"github.com/wkalt/tablelog/retention"
	"github.com/wkalt/tablelog/snapshot"
)

type config struct {
	clock              clock.Clock
	policy             *retention.Policy
	commits            commitstore.CommitStore
	checkpointInterval *int64
	reconstructorOpts  []snapshot.Option
}

// Option is an option for opening a table.
type Option func(*config)

// WithClock sets the clock used for commit timestamps, tombstone expiry and
// log retention. The default is the system clock.
func WithClock(c clock.Clock) Option {
	return func(conf *config) {
		conf.clock = c
	}
}

// WithRetentionPolicy overrides the retention durations configured in the
// table properties.
func WithRetentionPolicy(p retention.Policy) Option {
	return func(conf *config) {
		conf.policy = &p
	}
}

// WithCommitStore coordinates commits through a commit store.
func WithCommitStore(cs commitstore.CommitStore) Option {
	return func(conf *config) {
		conf.commits = cs
	}
}

// WithCheckpointInterval overrides the table's checkpoint interval. A
// checkpoint is written after each commit whose version is a positive
// multiple of n. Zero disables automatic checkpoints.
func WithCheckpointInterval(n int64) Option {
	return func(conf *config) {
		conf.checkpointInterval = &n
	}
}

// WithReconstructorOptions passes options to the table's snapshot
// reconstructor.
func WithReconstructorOptions(opts ...snapshot.Option) Option {
	return func(conf *config) {
		conf.reconstructorOpts = append(conf.reconstructorOpts, opts...)
	}
}
