package checkpoint

import (
	"fmt"

	"github.com/wkalt/tablelog/actions"
)

/*
A checkpoint is the fully reduced state of a table at a version: the active
files, the tombstones still within their retention window, and the latest
metadata and protocol. It is self-sufficient. A reader starting from a
checkpoint needs no log entry at or before its version.
*/

////////////////////////////////////////////////////////////////////////////////

// Checkpoint is the reduced state of a table at Version. Files and Tombstones
// are sorted by path and disjoint.
type Checkpoint struct {
	Version    int64
	Files      []actions.AddFile
	Tombstones []actions.RemoveFile
	Metadata   *actions.Metadata
	Protocol   *actions.Protocol
}

// CorruptCheckpointError is returned when a checkpoint artifact cannot be
// decoded or is inconsistent with its name.
type CorruptCheckpointError struct {
	Version int64
	Reason  string
}

func (e CorruptCheckpointError) Error() string {
	return fmt.Sprintf("corrupt checkpoint at version %d: %s", e.Version, e.Reason)
}

func (e CorruptCheckpointError) Is(target error) bool {
	_, ok := target.(CorruptCheckpointError)
	return ok
}

// Detail describes the corruption for error responses.
func (e CorruptCheckpointError) Detail() string {
	return e.Error()
}
