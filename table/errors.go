package table

import (
	"errors"
	"fmt"
	"time"
)

// ErrTransactionClosed is returned when a transaction is committed twice.
var ErrTransactionClosed = errors.New("transaction already committed")

// ErrEmptyTable is returned by operations that need at least one version.
var ErrEmptyTable = errors.New("table has no versions")

// TimestampOutOfRangeError is returned by time travel to a time before the
// earliest retained commit.
type TimestampOutOfRangeError struct {
	Timestamp time.Time
	Earliest  time.Time
}

func (e TimestampOutOfRangeError) Error() string {
	return fmt.Sprintf(
		"no version at or before %s: earliest retained commit is at %s",
		e.Timestamp.UTC().Format(time.RFC3339Nano), e.Earliest.UTC().Format(time.RFC3339Nano),
	)
}

func (e TimestampOutOfRangeError) Is(target error) bool {
	_, ok := target.(TimestampOutOfRangeError)
	return ok
}

// CheckpointMismatchError is returned when a checkpoint does not agree with
// the log it summarizes.
type CheckpointMismatchError struct {
	Version int64
	Reason  string
}

func (e CheckpointMismatchError) Error() string {
	return fmt.Sprintf("checkpoint %d does not match the log: %s", e.Version, e.Reason)
}

func (e CheckpointMismatchError) Is(target error) bool {
	_, ok := target.(CheckpointMismatchError)
	return ok
}

// Detail describes the mismatch for error responses.
func (e CheckpointMismatchError) Detail() string {
	return e.Error()
}

// ErrNoCheckpoint is returned when a table has no checkpoint.
var ErrNoCheckpoint = errors.New("table has no checkpoint")
