package service

import (
	"log/slog"

	"github.com/wkalt/tablelog/storage"
)

// Option is a functional option for the service.
type Option func(*Options)

// Options contains options for the service.
type Options struct {
	Port               int
	LogLevel           slog.Level
	StorageProvider    storage.Provider
	TablePrefix        string
	CommitDatabasePath string
	CheckpointInterval *int64
}

// WithPort sets the port to listen on.
func WithPort(port int) Option {
	return func(opts *Options) {
		opts.Port = port
	}
}

// WithLogLevel sets the log level.
func WithLogLevel(level slog.Level) Option {
	return func(opts *Options) {
		opts.LogLevel = level
	}
}

// WithStorageProvider sets the storage provider holding the tables.
func WithStorageProvider(store storage.Provider) Option {
	return func(opts *Options) {
		opts.StorageProvider = store
	}
}

// WithTablePrefix sets the storage prefix tables are created under.
func WithTablePrefix(prefix string) Option {
	return func(opts *Options) {
		opts.TablePrefix = prefix
	}
}

// WithCommitDatabasePath coordinates commits through a sqlite database at
// path, for storage without an atomic create-if-absent.
func WithCommitDatabasePath(path string) Option {
	return func(opts *Options) {
		opts.CommitDatabasePath = path
	}
}

// WithCheckpointInterval overrides the checkpoint interval of every table.
func WithCheckpointInterval(n int64) Option {
	return func(opts *Options) {
		opts.CheckpointInterval = &n
	}
}
