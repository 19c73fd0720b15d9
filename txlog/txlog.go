package txlog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/wkalt/tablelog/actions"
	"github.com/wkalt/tablelog/clock"
	"github.com/wkalt/tablelog/commitstore"
	"github.com/wkalt/tablelog/storage"
	"github.com/wkalt/tablelog/util"
	"github.com/wkalt/tablelog/util/log"
)

/*
The txlog package is the append-only action log of a table. Each committed
version is one immutable artifact in the log directory. Commits use the
storage provider's create-if-absent, or a commit store when one is configured,
so that exactly one writer wins each version.

The log holds no mutable state beyond a cache of parsed entries. Everything
else is derived from listing the log directory.
*/

////////////////////////////////////////////////////////////////////////////////

// NoVersion is the latest version of an empty log.
const NoVersion int64 = -1

const defaultEntryCacheSize = 100000

// Entry is one committed version of the log. Entries are shared through the
// cache and must not be modified.
type Entry struct {
	Version int64
	Actions []actions.Action

	// CommitTimestamp is the timestamp of the entry's CommitInfo action, or
	// the zero time if it has none.
	CommitTimestamp time.Time
}

// Artifact is a log entry or checkpoint found on storage.
type Artifact struct {
	Name         string
	Version      int64
	Kind         ArtifactKind
	Size         int64
	LastModified time.Time
}

// Log is a handle to the log of a single table.
type Log struct {
	store   storage.Provider
	root    string
	commits commitstore.CommitStore
	cache   *util.LRU[int64, *Entry]
}

// New returns a handle to the log of the table at root.
func New(store storage.Provider, root string, opts ...Option) *Log {
	conf := config{
		entryCacheSize: defaultEntryCacheSize,
	}
	for _, opt := range opts {
		opt(&conf)
	}
	return &Log{
		store:   store,
		root:    strings.Trim(root, "/"),
		commits: conf.commits,
		cache:   util.NewLRU[int64, *Entry](conf.entryCacheSize, entryWeight),
	}
}

func entryWeight(e *Entry) int64 {
	return int64(len(e.Actions)) + 1
}

// CacheStats reports the effectiveness of the entry cache.
func (l *Log) CacheStats() util.CacheStats {
	return l.cache.Stats()
}

// Root returns the table root.
func (l *Log) Root() string {
	return l.root
}

// Store returns the storage provider.
func (l *Log) Store() storage.Provider {
	return l.store
}

// Dir returns the log directory prefix, with a trailing slash.
func (l *Log) Dir() string {
	return path.Join(l.root, LogDir) + "/"
}

// Path returns the object name of an artifact base name.
func (l *Log) Path(name string) string {
	return l.Dir() + name
}

// Commit durably appends actions as the given version. The version must be
// the latest version plus one. If another writer has already committed it,
// Commit returns a ConcurrentWriteConflictError.
func (l *Log) Commit(ctx context.Context, version int64, acts []actions.Action) error {
	if version < 0 {
		return fmt.Errorf("invalid version %d", version)
	}
	latest, err := l.LatestVersion(ctx)
	if err != nil {
		return err
	}
	if version <= latest {
		return ConcurrentWriteConflictError{Version: version}
	}
	if version != latest+1 {
		return NonContiguousVersionError{Version: version, Latest: latest}
	}
	data, err := actions.Encode(acts)
	if err != nil {
		return fmt.Errorf("failed to encode version %d: %w", version, err)
	}
	if l.commits != nil {
		err = l.commitCoordinated(ctx, version, data)
	} else {
		err = l.commitExclusive(ctx, version, data)
	}
	if err != nil {
		return err
	}
	log.Debugw(ctx, "committed log entry", "version", version, "actions", len(acts), "bytes", len(data))
	return nil
}

func (l *Log) commitExclusive(ctx context.Context, version int64, data []byte) error {
	created, err := l.store.CreateIfAbsent(ctx, l.Path(EntryName(version)), data)
	if err != nil {
		return fmt.Errorf("failed to write version %d: %w", version, err)
	}
	if !created {
		return ConcurrentWriteConflictError{Version: version}
	}
	return nil
}

func (l *Log) commitCoordinated(ctx context.Context, version int64, data []byte) error {
	if err := l.commits.Claim(ctx, l.root, version, data); err != nil {
		if errors.Is(err, commitstore.VersionClaimedError{}) {
			return ConcurrentWriteConflictError{Version: version}
		}
		return fmt.Errorf("failed to claim version %d: %w", version, err)
	}
	return l.completeClaim(ctx, version, data)
}

// completeClaim writes the artifact of a claimed version and marks the claim
// complete. An artifact already holding the same bytes means an earlier
// attempt got as far as the write.
func (l *Log) completeClaim(ctx context.Context, version int64, data []byte) error {
	name := l.Path(EntryName(version))
	created, err := l.store.CreateIfAbsent(ctx, name, data)
	if err != nil {
		return fmt.Errorf("failed to write version %d: %w", version, err)
	}
	if !created {
		existing, err := l.store.Get(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to read version %d: %w", version, err)
		}
		if !bytes.Equal(existing, data) {
			return ConcurrentWriteConflictError{Version: version}
		}
	}
	if err := l.commits.Complete(ctx, l.root, version); err != nil {
		return fmt.Errorf("failed to complete version %d: %w", version, err)
	}
	return nil
}

// Recover completes coordinated commits that were claimed but never written.
// It is a no-op without a commit store.
func (l *Log) Recover(ctx context.Context) error {
	if l.commits == nil {
		return nil
	}
	pending, err := l.commits.Incomplete(ctx, l.root)
	if err != nil {
		return fmt.Errorf("failed to list incomplete commits: %w", err)
	}
	for _, entry := range pending {
		if err := l.completeClaim(ctx, entry.Version, entry.Data); err != nil {
			return fmt.Errorf("failed to recover version %d: %w", entry.Version, err)
		}
		log.Infow(ctx, "recovered incomplete commit", "version", entry.Version)
	}
	return nil
}

// Read returns the entry for version.
func (l *Log) Read(ctx context.Context, version int64) (*Entry, error) {
	if entry, ok := l.cache.Get(version); ok {
		return entry, nil
	}
	data, err := l.store.Get(ctx, l.Path(EntryName(version)))
	if err != nil {
		if !errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("failed to read version %d: %w", version, err)
		}
		data, err = l.readClaimed(ctx, version)
		if err != nil {
			return nil, err
		}
	}
	acts, err := actions.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode version %d: %w", version, err)
	}
	entry := &Entry{Version: version, Actions: acts}
	if ci, ok := actions.CommitInfoOf(acts); ok {
		entry.CommitTimestamp = clock.FromMillis(ci.Timestamp)
	}
	l.cache.Put(version, entry)
	return entry, nil
}

// readClaimed finishes an incomplete coordinated commit for a version whose
// artifact is missing, and returns its data.
func (l *Log) readClaimed(ctx context.Context, version int64) ([]byte, error) {
	if l.commits == nil {
		return nil, VersionNotFoundError{Version: version}
	}
	claim, err := l.commits.Get(ctx, l.root, version)
	if err != nil {
		if errors.Is(err, commitstore.EntryNotFoundError{}) {
			return nil, VersionNotFoundError{Version: version}
		}
		return nil, fmt.Errorf("failed to read commit store: %w", err)
	}
	if claim.Complete {
		// written and since deleted
		return nil, VersionNotFoundError{Version: version}
	}
	if err := l.completeClaim(ctx, version, claim.Data); err != nil {
		return nil, err
	}
	return claim.Data, nil
}

// ListArtifacts returns the log entries and checkpoints on storage, ordered
// by version with the entry before the checkpoint of the same version.
func (l *Log) ListArtifacts(ctx context.Context) ([]Artifact, error) {
	dir := l.Dir()
	listing, err := l.store.List(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list log: %w", err)
	}
	result := make([]Artifact, 0, len(listing))
	for _, info := range listing {
		base := strings.TrimPrefix(info.Name, dir)
		if strings.Contains(base, "/") {
			continue
		}
		version, kind, ok := ParseArtifactName(base)
		if !ok {
			continue
		}
		result = append(result, Artifact{
			Name:         info.Name,
			Version:      version,
			Kind:         kind,
			Size:         info.Size,
			LastModified: info.LastModified,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Version != result[j].Version {
			return result[i].Version < result[j].Version
		}
		return result[i].Kind < result[j].Kind
	})
	return result, nil
}

// ListVersions returns an iterator over the entry versions in [from, to]
// present on storage. A negative to means no upper bound.
func (l *Log) ListVersions(ctx context.Context, from, to int64) (*VersionIterator, error) {
	artifacts, err := l.ListArtifacts(ctx)
	if err != nil {
		return nil, err
	}
	versions := []int64{}
	for _, a := range artifacts {
		if a.Kind != KindEntry || a.Version < from || (to >= 0 && a.Version > to) {
			continue
		}
		versions = append(versions, a.Version)
	}
	return &VersionIterator{versions: versions}, nil
}

// LatestVersion returns the highest committed version, or NoVersion if the
// log is empty.
func (l *Log) LatestVersion(ctx context.Context) (int64, error) {
	artifacts, err := l.ListArtifacts(ctx)
	if err != nil {
		return NoVersion, err
	}
	latest := LatestVersionOf(artifacts)
	if l.commits != nil {
		claim, err := l.commits.Latest(ctx, l.root)
		switch {
		case err == nil:
			latest = max(latest, claim.Version)
		case errors.Is(err, commitstore.EntryNotFoundError{}):
		default:
			return NoVersion, fmt.Errorf("failed to read commit store: %w", err)
		}
	}
	return latest, nil
}

// LatestVersionOf returns the highest entry version in a listing. A
// checkpoint implies its entry was committed even if since deleted.
func LatestVersionOf(artifacts []Artifact) int64 {
	latest := NoVersion
	for _, a := range artifacts {
		latest = max(latest, a.Version)
	}
	return latest
}

// WriteCheckpoint stores a checkpoint artifact, replacing any existing
// checkpoint at the version.
func (l *Log) WriteCheckpoint(ctx context.Context, version int64, data []byte) error {
	if err := l.store.Put(ctx, l.Path(CheckpointName(version)), data); err != nil {
		return fmt.Errorf("failed to write checkpoint %d: %w", version, err)
	}
	return nil
}

// ReadCheckpoint returns the checkpoint artifact at version.
func (l *Log) ReadCheckpoint(ctx context.Context, version int64) ([]byte, error) {
	data, err := l.store.Get(ctx, l.Path(CheckpointName(version)))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("checkpoint %d: %w", version, err)
		}
		return nil, fmt.Errorf("failed to read checkpoint %d: %w", version, err)
	}
	return data, nil
}

// Delete removes an artifact. It returns storage.ErrObjectNotFound if the
// artifact is already gone.
func (l *Log) Delete(ctx context.Context, a Artifact) error {
	if a.Kind == KindEntry {
		l.cache.Delete(a.Version)
	}
	if err := l.store.Delete(ctx, a.Name); err != nil {
		return fmt.Errorf("failed to delete %s %d: %w", a.Kind, a.Version, err)
	}
	return nil
}

// VersionIterator iterates over a fixed set of versions. It is restartable
// with Reset.
type VersionIterator struct {
	versions []int64
	next     int
}

// Next returns the next version, or false when exhausted.
func (it *VersionIterator) Next() (int64, bool) {
	if it.next >= len(it.versions) {
		return 0, false
	}
	v := it.versions[it.next]
	it.next++
	return v, true
}

// Reset restarts the iteration from the first version.
func (it *VersionIterator) Reset() {
	it.next = 0
}

// Len returns the number of versions in the iterator.
func (it *VersionIterator) Len() int {
	return len(it.versions)
}
