package txlog

import "github.com/wkalt/tablelog/commitstore"

type config struct {
	commits        commitstore.CommitStore
	entryCacheSize int64
}

// Option is an option for the log.
type Option func(*config)

// WithCommitStore routes commits through an external commit coordinator.
// This is required for multiple writer processes on storage without an atomic
// create-if-absent.
func WithCommitStore(cs commitstore.CommitStore) Option {
	return func(c *config) {
		c.commits = cs
	}
}

// WithEntryCacheSize bounds the parsed log entries kept in memory by their
// total number of actions. A zero value disables the cache.
func WithEntryCacheSize(n int64) Option {
	return func(c *config) {
		c.entryCacheSize = n
	}
}
