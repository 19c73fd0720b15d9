package commitstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

/*
memcommitstore is an in-memory commit store. It is only suitable for tests and
for single-process use.
*/

////////////////////////////////////////////////////////////////////////////////

type key struct {
	table   string
	version int64
}

type memCommitStore struct {
	entries map[key]Entry
	mtx     *sync.Mutex
}

// NewMemCommitStore returns an in-memory commit store.
func NewMemCommitStore() CommitStore {
	return &memCommitStore{
		entries: make(map[key]Entry),
		mtx:     &sync.Mutex{},
	}
}

func (m *memCommitStore) Claim(_ context.Context, table string, version int64, data []byte) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	k := key{table, version}
	if _, ok := m.entries[k]; ok {
		return VersionClaimedError{table, version}
	}
	m.entries[k] = Entry{
		Table:     table,
		Version:   version,
		Data:      append([]byte(nil), data...),
		ClaimedAt: time.Now(),
	}
	return nil
}

func (m *memCommitStore) Complete(_ context.Context, table string, version int64) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	k := key{table, version}
	entry, ok := m.entries[k]
	if !ok {
		return EntryNotFoundError{table, version}
	}
	entry.Complete = true
	entry.Data = nil
	m.entries[k] = entry
	return nil
}

func (m *memCommitStore) Get(_ context.Context, table string, version int64) (Entry, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	entry, ok := m.entries[key{table, version}]
	if !ok {
		return Entry{}, EntryNotFoundError{table, version}
	}
	return entry, nil
}

func (m *memCommitStore) Latest(_ context.Context, table string) (Entry, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	var latest *Entry
	for k, entry := range m.entries {
		if k.table != table {
			continue
		}
		if latest == nil || entry.Version > latest.Version {
			e := entry
			latest = &e
		}
	}
	if latest == nil {
		return Entry{}, EntryNotFoundError{table, -1}
	}
	return *latest, nil
}

func (m *memCommitStore) Incomplete(_ context.Context, table string) ([]Entry, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	result := []Entry{}
	for k, entry := range m.entries {
		if k.table == table && !entry.Complete {
			result = append(result, entry)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Version < result[j].Version
	})
	return result, nil
}
