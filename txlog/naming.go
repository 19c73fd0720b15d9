package txlog

import (
	"fmt"
	"strconv"
	"strings"
)

/*
Artifacts live in the _delta_log directory under a table root and are named by
their zero-padded version:

    <root>/_delta_log/00000000000000000007.json                 log entry 7
    <root>/_delta_log/00000000000000000010.checkpoint.parquet   checkpoint at 10

Anything else in the directory is ignored by listing.
*/

////////////////////////////////////////////////////////////////////////////////

// LogDir is the name of the log directory under a table root.
const LogDir = "_delta_log"

const (
	versionDigits = 20
	entryExt      = ".json"
	checkpointExt = ".checkpoint.parquet"
)

// ArtifactKind distinguishes log entries from checkpoints.
type ArtifactKind int

const (
	// KindEntry is a committed log entry.
	KindEntry ArtifactKind = iota
	// KindCheckpoint is a checkpoint.
	KindCheckpoint
)

func (k ArtifactKind) String() string {
	switch k {
	case KindEntry:
		return "entry"
	case KindCheckpoint:
		return "checkpoint"
	default:
		return fmt.Sprintf("ArtifactKind(%d)", int(k))
	}
}

// EntryName returns the base name of the log entry for version.
func EntryName(version int64) string {
	return fmt.Sprintf("%0*d%s", versionDigits, version, entryExt)
}

// CheckpointName returns the base name of the checkpoint for version.
func CheckpointName(version int64) string {
	return fmt.Sprintf("%0*d%s", versionDigits, version, checkpointExt)
}

// ParseArtifactName parses a base name produced by EntryName or
// CheckpointName. The final return value is false for any other name.
func ParseArtifactName(name string) (int64, ArtifactKind, bool) {
	var kind ArtifactKind
	var digits string
	switch {
	case strings.HasSuffix(name, checkpointExt):
		kind, digits = KindCheckpoint, strings.TrimSuffix(name, checkpointExt)
	case strings.HasSuffix(name, entryExt):
		kind, digits = KindEntry, strings.TrimSuffix(name, entryExt)
	default:
		return 0, 0, false
	}
	if len(digits) != versionDigits {
		return 0, 0, false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, 0, false
		}
	}
	version, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return version, kind, true
}
