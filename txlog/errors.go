package txlog

import "fmt"

// ConcurrentWriteConflictError is returned when another writer has already
// committed the version. Callers may re-read the table and retry.
type ConcurrentWriteConflictError struct {
	Version int64
}

func (e ConcurrentWriteConflictError) Error() string {
	return fmt.Sprintf("concurrent write conflict: version %d already committed", e.Version)
}

func (e ConcurrentWriteConflictError) Is(target error) bool {
	_, ok := target.(ConcurrentWriteConflictError)
	return ok
}

// VersionNotFoundError is returned when a version is not present in the log.
type VersionNotFoundError struct {
	Version int64
}

func (e VersionNotFoundError) Error() string {
	return fmt.Sprintf("version %d not found", e.Version)
}

func (e VersionNotFoundError) Is(target error) bool {
	_, ok := target.(VersionNotFoundError)
	return ok
}

// NonContiguousVersionError is returned when a commit would leave a gap after
// the latest version.
type NonContiguousVersionError struct {
	Version int64
	Latest  int64
}

func (e NonContiguousVersionError) Error() string {
	return fmt.Sprintf("cannot commit version %d: latest version is %d", e.Version, e.Latest)
}

func (e NonContiguousVersionError) Is(target error) bool {
	_, ok := target.(NonContiguousVersionError)
	return ok
}
