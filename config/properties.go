package config

import (
	"fmt"
	"strconv"
	"time"
)

// Table properties recognized in the Configuration of a table's metadata.
const (
	CheckpointIntervalKey           = "delta.checkpointInterval"
	LogRetentionDurationKey         = "delta.logRetentionDuration"
	DeletedFileRetentionDurationKey = "delta.deletedFileRetentionDuration"
	EnableExpiredLogCleanupKey      = "delta.enableExpiredLogCleanup"
)

// Defaults for table properties.
const (
	DefaultCheckpointInterval           = 10
	DefaultLogRetentionDuration         = "interval 30 days"
	DefaultDeletedFileRetentionDuration = "interval 1 week"
	DefaultEnableExpiredLogCleanup      = true
)

// TableConfig is the parsed set of table properties.
type TableConfig struct {
	CheckpointInterval           int64
	LogRetentionDuration         time.Duration
	DeletedFileRetentionDuration time.Duration
	EnableExpiredLogCleanup      bool
}

// InvalidPropertyError is returned when a table property has an unusable
// value.
type InvalidPropertyError struct {
	Key   string
	Value string
	Err   error
}

func (e InvalidPropertyError) Error() string {
	return fmt.Sprintf("invalid value %q for table property %s: %s", e.Value, e.Key, e.Err)
}

func (e InvalidPropertyError) Unwrap() error {
	return e.Err
}

func (e InvalidPropertyError) Is(target error) bool {
	_, ok := target.(InvalidPropertyError)
	return ok
}

// FromProperties parses table properties, applying defaults for the ones
// that are absent.
func FromProperties(props map[string]string) (TableConfig, error) {
	conf := TableConfig{
		CheckpointInterval:      DefaultCheckpointInterval,
		EnableExpiredLogCleanup: DefaultEnableExpiredLogCleanup,
	}
	var err error
	if conf.LogRetentionDuration, err = ParseInterval(DefaultLogRetentionDuration); err != nil {
		return conf, err
	}
	if conf.DeletedFileRetentionDuration, err = ParseInterval(DefaultDeletedFileRetentionDuration); err != nil {
		return conf, err
	}
	if v, ok := props[CheckpointIntervalKey]; ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return conf, InvalidPropertyError{Key: CheckpointIntervalKey, Value: v, Err: err}
		}
		if n <= 0 {
			return conf, InvalidPropertyError{Key: CheckpointIntervalKey, Value: v, Err: fmt.Errorf("must be positive")}
		}
		conf.CheckpointInterval = n
	}
	if v, ok := props[LogRetentionDurationKey]; ok {
		d, err := ParseInterval(v)
		if err != nil {
			return conf, InvalidPropertyError{Key: LogRetentionDurationKey, Value: v, Err: err}
		}
		conf.LogRetentionDuration = d
	}
	if v, ok := props[DeletedFileRetentionDurationKey]; ok {
		d, err := ParseInterval(v)
		if err != nil {
			return conf, InvalidPropertyError{Key: DeletedFileRetentionDurationKey, Value: v, Err: err}
		}
		conf.DeletedFileRetentionDuration = d
	}
	if v, ok := props[EnableExpiredLogCleanupKey]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return conf, InvalidPropertyError{Key: EnableExpiredLogCleanupKey, Value: v, Err: err}
		}
		conf.EnableExpiredLogCleanup = b
	}
	return conf, nil
}
