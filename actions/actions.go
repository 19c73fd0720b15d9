package actions

import (
	"time"

	"github.com/wkalt/tablelog/clock"
)

/*
Actions are the structural mutations recorded in a log entry. The set of
variants is closed: every variant implements Accept, which dispatches to the
matching method of a Visitor. Adding a variant means adding a Visitor method,
so every consumer of actions fails to compile until it handles the new kind.

AddFile and RemoveFile carry the semantics the log core cares about. Metadata
and Protocol are carried forward into snapshots and checkpoints as the latest
value seen. CommitInfo and Opaque are preserved in order but otherwise ignored
by replay.
*/

////////////////////////////////////////////////////////////////////////////////

// Action is a single structural change recorded in the log.
type Action interface {
	Accept(v Visitor) error
	isAction()
}

// Visitor handles each action variant.
type Visitor interface {
	AddFile(AddFile) error
	RemoveFile(RemoveFile) error
	Metadata(Metadata) error
	Protocol(Protocol) error
	CommitInfo(CommitInfo) error
	Opaque(Opaque) error
}

// AddFile registers a data file as logically present in the table.
type AddFile struct {
	Path             string            `json:"path"`
	PartitionValues  map[string]string `json:"partitionValues"`
	Size             int64             `json:"size"`
	ModificationTime int64             `json:"modificationTime"`
	DataChange       bool              `json:"dataChange"`
	Tags             map[string]string `json:"tags,omitempty"`
}

// RemoveFile marks a previously added file as logically absent. The deletion
// timestamp, in unix milliseconds, drives tombstone expiry.
type RemoveFile struct {
	Path                 string            `json:"path"`
	DeletionTimestamp    *int64            `json:"deletionTimestamp,omitempty"`
	DataChange           bool              `json:"dataChange"`
	ExtendedFileMetadata bool              `json:"extendedFileMetadata,omitempty"`
	PartitionValues      map[string]string `json:"partitionValues,omitempty"`
	Size                 int64             `json:"size,omitempty"`
}

// DeletedAt returns the deletion time of the tombstone. A remove without a
// timestamp is treated as deleted at the epoch.
func (r RemoveFile) DeletedAt() time.Time {
	if r.DeletionTimestamp == nil {
		return clock.FromMillis(0)
	}
	return clock.FromMillis(*r.DeletionTimestamp)
}

// Format describes the encoding of the table's data files.
type Format struct {
	Provider string            `json:"provider"`
	Options  map[string]string `json:"options"`
}

// Metadata describes the table. Configuration holds table properties such as
// retention durations.
type Metadata struct {
	ID               string            `json:"id"`
	Name             string            `json:"name,omitempty"`
	Description      string            `json:"description,omitempty"`
	Format           Format            `json:"format"`
	SchemaString     string            `json:"schemaString"`
	PartitionColumns []string          `json:"partitionColumns"`
	Configuration    map[string]string `json:"configuration"`
	CreatedTime      *int64            `json:"createdTime,omitempty"`
}

// Protocol declares the reader and writer versions required by the table.
type Protocol struct {
	MinReaderVersion int `json:"minReaderVersion"`
	MinWriterVersion int `json:"minWriterVersion"`
}

// CommitInfo records provenance for a commit.
type CommitInfo struct {
	Timestamp           int64             `json:"timestamp"`
	Operation           string            `json:"operation"`
	OperationParameters map[string]string `json:"operationParameters,omitempty"`
	ReadVersion         *int64            `json:"readVersion,omitempty"`
	TxnID               string            `json:"txnId,omitempty"`
	IsBlindAppend       bool              `json:"isBlindAppend"`
}

// Opaque is an action of a kind this package does not interpret. Its payload
// is retained verbatim so that rewriting an entry does not lose it.
type Opaque struct {
	Kind    string
	Payload []byte
}

func (a AddFile) Accept(v Visitor) error    { return v.AddFile(a) }
func (a RemoveFile) Accept(v Visitor) error { return v.RemoveFile(a) }
func (a Metadata) Accept(v Visitor) error   { return v.Metadata(a) }
func (a Protocol) Accept(v Visitor) error   { return v.Protocol(a) }
func (a CommitInfo) Accept(v Visitor) error { return v.CommitInfo(a) }
func (a Opaque) Accept(v Visitor) error     { return v.Opaque(a) }

func (AddFile) isAction()    {}
func (RemoveFile) isAction() {}
func (Metadata) isAction()   {}
func (Protocol) isAction()   {}
func (CommitInfo) isAction() {}
func (Opaque) isAction()     {}

// NewRemove returns a RemoveFile for path stamped with the deletion time.
func NewRemove(path string, deletedAt time.Time, dataChange bool) RemoveFile {
	ts := clock.Millis(deletedAt)
	return RemoveFile{
		Path:              path,
		DeletionTimestamp: &ts,
		DataChange:        dataChange,
	}
}

// CommitInfoOf returns the first CommitInfo among actions, if any.
func CommitInfoOf(actions []Action) (CommitInfo, bool) {
	for _, a := range actions {
		if ci, ok := a.(CommitInfo); ok {
			return ci, true
		}
	}
	return CommitInfo{}, false
}
