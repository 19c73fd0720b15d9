package snapshot

import "fmt"

// MissingCheckpointContinuityError is returned when a version between the
// newest usable checkpoint and the target has no log entry. Checkpoint is
// txlog.NoVersion when there is no checkpoint below the target.
type MissingCheckpointContinuityError struct {
	Checkpoint int64
	Missing    int64
	Target     int64
}

func (e MissingCheckpointContinuityError) Error() string {
	if e.Checkpoint < 0 {
		return fmt.Sprintf(
			"cannot reconstruct version %d: no checkpoint and version %d is missing",
			e.Target, e.Missing,
		)
	}
	return fmt.Sprintf(
		"cannot reconstruct version %d: version %d is missing after checkpoint %d",
		e.Target, e.Missing, e.Checkpoint,
	)
}

func (e MissingCheckpointContinuityError) Is(target error) bool {
	_, ok := target.(MissingCheckpointContinuityError)
	return ok
}

// Detail describes the gap for error responses.
func (e MissingCheckpointContinuityError) Detail() string {
	return e.Error()
}
