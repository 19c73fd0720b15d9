package snapshot

import (
	"encoding/binary"
	"fmt"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/goccy/go-json"
	"github.com/spaolacci/murmur3"
	"github.com/wkalt/tablelog/actions"
	"github.com/wkalt/tablelog/checkpoint"
	"github.com/wkalt/tablelog/txlog"
	"golang.org/x/exp/maps"
)

/*
A State is the reconstructed logical content of a table at a version: the
active files, the tombstones of removed files, and the latest metadata and
protocol. States are derived from the log and never stored directly.

Replay folds each action into the state in log order:

  - AddFile inserts or replaces the file and clears any tombstone for its path.
  - RemoveFile moves an active file to the tombstones. A remove for a path that
    is already tombstoned replaces the tombstone. A remove for a path that is
    neither active nor tombstoned is ignored.
  - Metadata and Protocol replace the previous value.
  - CommitInfo and unknown actions have no effect.
*/

////////////////////////////////////////////////////////////////////////////////

// State is the reduced state of a table at Version. Files and Tombstones are
// keyed by path and never share a key.
type State struct {
	Version    int64
	Files      map[string]actions.AddFile
	Tombstones map[string]actions.RemoveFile
	Metadata   *actions.Metadata
	Protocol   *actions.Protocol
}

// New returns the state of a table with no versions.
func New() *State {
	return &State{
		Version:    txlog.NoVersion,
		Files:      make(map[string]actions.AddFile),
		Tombstones: make(map[string]actions.RemoveFile),
	}
}

// FromCheckpoint returns the state recorded in a checkpoint.
func FromCheckpoint(cp *checkpoint.Checkpoint) *State {
	s := New()
	s.Version = cp.Version
	for _, add := range cp.Files {
		s.Files[add.Path] = add
	}
	for _, remove := range cp.Tombstones {
		s.Tombstones[remove.Path] = remove
	}
	if cp.Metadata != nil {
		metadata := *cp.Metadata
		s.Metadata = &metadata
	}
	if cp.Protocol != nil {
		protocol := *cp.Protocol
		s.Protocol = &protocol
	}
	return s
}

// Checkpoint returns the state as a checkpoint, keeping only the tombstones
// for which keep returns true. A nil keep retains every tombstone.
func (s *State) Checkpoint(keep func(actions.RemoveFile) bool) *checkpoint.Checkpoint {
	cp := &checkpoint.Checkpoint{
		Version:    s.Version,
		Files:      make([]actions.AddFile, 0, len(s.Files)),
		Tombstones: make([]actions.RemoveFile, 0, len(s.Tombstones)),
		Metadata:   s.Metadata,
		Protocol:   s.Protocol,
	}
	for _, path := range s.Paths() {
		cp.Files = append(cp.Files, s.Files[path])
	}
	tombstones := maps.Keys(s.Tombstones)
	sort.Strings(tombstones)
	for _, path := range tombstones {
		remove := s.Tombstones[path]
		if keep == nil || keep(remove) {
			cp.Tombstones = append(cp.Tombstones, remove)
		}
	}
	return cp
}

// Apply folds the next log entry into the state.
func (s *State) Apply(entry *txlog.Entry) error {
	if entry.Version != s.Version+1 {
		return txlog.NonContiguousVersionError{Version: entry.Version, Latest: s.Version}
	}
	f := folder{s}
	for _, action := range entry.Actions {
		if err := action.Accept(f); err != nil {
			return fmt.Errorf("failed to apply version %d: %w", entry.Version, err)
		}
	}
	s.Version = entry.Version
	return nil
}

// Clone returns a copy of the state that can be modified independently.
func (s *State) Clone() *State {
	clone := &State{
		Version:    s.Version,
		Files:      maps.Clone(s.Files),
		Tombstones: maps.Clone(s.Tombstones),
		Metadata:   s.Metadata,
		Protocol:   s.Protocol,
	}
	if clone.Files == nil {
		clone.Files = make(map[string]actions.AddFile)
	}
	if clone.Tombstones == nil {
		clone.Tombstones = make(map[string]actions.RemoveFile)
	}
	return clone
}

// FileCount returns the number of active files.
func (s *State) FileCount() int {
	return len(s.Files)
}

// TombstoneCount returns the number of tombstones.
func (s *State) TombstoneCount() int {
	return len(s.Tombstones)
}

// Paths returns the paths of the active files in sorted order.
func (s *State) Paths() []string {
	paths := maps.Keys(s.Files)
	sort.Strings(paths)
	return paths
}

// Glob returns the active files whose paths match a doublestar pattern, in
// path order.
func (s *State) Glob(pattern string) ([]actions.AddFile, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}
	result := []actions.AddFile{}
	for _, path := range s.Paths() {
		if ok, _ := doublestar.Match(pattern, path); ok {
			result = append(result, s.Files[path])
		}
	}
	return result, nil
}

// LiveTombstones returns the tombstones not yet expired at now under the
// retention duration, in path order.
func (s *State) LiveTombstones(now time.Time, retention time.Duration) []actions.RemoveFile {
	paths := maps.Keys(s.Tombstones)
	sort.Strings(paths)
	result := []actions.RemoveFile{}
	for _, path := range paths {
		remove := s.Tombstones[path]
		if now.Sub(remove.DeletedAt()) < retention {
			result = append(result, remove)
		}
	}
	return result
}

// Checksum returns a hash of the active files, metadata, and protocol that does
// not depend on the order in which the state was built. Tombstones are
// excluded since a checkpoint may legitimately have expired some of them.
func (s *State) Checksum() (uint64, error) {
	var sum uint64
	for path, add := range s.Files {
		buf := []byte(path)
		buf = append(buf, 0)
		buf = binary.BigEndian.AppendUint64(buf, uint64(add.Size))
		keys := maps.Keys(add.PartitionValues)
		sort.Strings(keys)
		for _, k := range keys {
			buf = append(buf, k...)
			buf = append(buf, '=')
			buf = append(buf, add.PartitionValues[k]...)
			buf = append(buf, 0)
		}
		sum += murmur3.Sum64(buf)
	}
	if s.Metadata != nil {
		data, err := json.Marshal(s.Metadata)
		if err != nil {
			return 0, fmt.Errorf("failed to hash metadata: %w", err)
		}
		sum += murmur3.Sum64(append([]byte("metadata:"), data...))
	}
	if s.Protocol != nil {
		data, err := json.Marshal(s.Protocol)
		if err != nil {
			return 0, fmt.Errorf("failed to hash protocol: %w", err)
		}
		sum += murmur3.Sum64(append([]byte("protocol:"), data...))
	}
	return sum, nil
}

type folder struct {
	s *State
}

func (f folder) AddFile(a actions.AddFile) error {
	f.s.Files[a.Path] = a
	delete(f.s.Tombstones, a.Path)
	return nil
}

func (f folder) RemoveFile(r actions.RemoveFile) error {
	_, active := f.s.Files[r.Path]
	_, removed := f.s.Tombstones[r.Path]
	if !active && !removed {
		return nil
	}
	delete(f.s.Files, r.Path)
	f.s.Tombstones[r.Path] = r
	return nil
}

func (f folder) Metadata(m actions.Metadata) error {
	f.s.Metadata = &m
	return nil
}

func (f folder) Protocol(p actions.Protocol) error {
	f.s.Protocol = &p
	return nil
}

func (f folder) CommitInfo(actions.CommitInfo) error {
	return nil
}

func (f folder) Opaque(actions.Opaque) error {
	return nil
}
