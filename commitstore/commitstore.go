package commitstore

import (
	"context"
	"fmt"
	"time"
)

/*
A commit store is an external coordinator for commits to tables on storage
without an atomic create-if-absent, such as S3. A writer first claims a
version in the commit store, which succeeds for exactly one writer, then
writes the log artifact and marks the claim complete. Until it is complete the
claimed entry carries the encoded log entry, so that a reader or a later
writer can finish a commit abandoned between the claim and the artifact write.

The store is keyed by table root and version.
*/

////////////////////////////////////////////////////////////////////////////////

// Entry is a claimed commit.
type Entry struct {
	Table     string
	Version   int64
	Data      []byte
	Complete  bool
	ClaimedAt time.Time
}

// CommitStore is the interface to a commit coordinator.
type CommitStore interface {
	// Claim records an incomplete entry for the version. It returns a
	// VersionClaimedError if the version has already been claimed.
	Claim(ctx context.Context, table string, version int64, data []byte) error

	// Complete marks a claimed entry as durably written to storage.
	Complete(ctx context.Context, table string, version int64) error

	// Get returns the entry for a version.
	Get(ctx context.Context, table string, version int64) (Entry, error)

	// Latest returns the highest claimed entry for a table.
	Latest(ctx context.Context, table string) (Entry, error)

	// Incomplete returns the claimed but incomplete entries for a table, in
	// ascending version order.
	Incomplete(ctx context.Context, table string) ([]Entry, error)
}

// VersionClaimedError is returned when a version has already been claimed.
type VersionClaimedError struct {
	Table   string
	Version int64
}

func (e VersionClaimedError) Error() string {
	return fmt.Sprintf("version %d of %s already claimed", e.Version, e.Table)
}

func (e VersionClaimedError) Is(target error) bool {
	_, ok := target.(VersionClaimedError)
	return ok
}

// EntryNotFoundError is returned when no entry exists. A version of -1 means
// the table has no entries at all.
type EntryNotFoundError struct {
	Table   string
	Version int64
}

func (e EntryNotFoundError) Error() string {
	if e.Version < 0 {
		return fmt.Sprintf("no commits for %s", e.Table)
	}
	return fmt.Sprintf("commit %d of %s not found", e.Version, e.Table)
}

func (e EntryNotFoundError) Is(target error) bool {
	_, ok := target.(EntryNotFoundError)
	return ok
}
