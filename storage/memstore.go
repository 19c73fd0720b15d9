package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wkalt/tablelog/clock"
)

/*
Memstore is an in-memory storage provider backed by a map. It is only suitable
for tests. Modification times come from the supplied clock, so that retention
can be exercised against a manual clock.
*/

////////////////////////////////////////////////////////////////////////////////

type object struct {
	data     []byte
	modified time.Time
}

// MemStore is an in-memory store.
type MemStore struct {
	data  map[string]object
	clock clock.Clock
	mtx   *sync.RWMutex
}

// CreateIfAbsent stores an object if nothing is stored under the name.
func (m *MemStore) CreateIfAbsent(_ context.Context, name string, data []byte) (bool, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if _, ok := m.data[name]; ok {
		return false, nil
	}
	m.data[name] = object{data: append([]byte(nil), data...), modified: m.clock.Now()}
	return true, nil
}

// Put stores an object in the store.
func (m *MemStore) Put(_ context.Context, name string, data []byte) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.data[name] = object{data: append([]byte(nil), data...), modified: m.clock.Now()}
	return nil
}

// Get retrieves an object from the store.
func (m *MemStore) Get(_ context.Context, name string) ([]byte, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	obj, ok := m.data[name]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return append([]byte(nil), obj.data...), nil
}

// List returns the objects under prefix.
func (m *MemStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	result := []ObjectInfo{}
	for name, obj := range m.data {
		if strings.HasPrefix(name, prefix) {
			result = append(result, ObjectInfo{
				Name:         name,
				Size:         int64(len(obj.data)),
				LastModified: obj.modified,
			})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// Delete removes an object from the store.
func (m *MemStore) Delete(_ context.Context, name string) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if _, ok := m.data[name]; !ok {
		return ErrObjectNotFound
	}
	delete(m.data, name)
	return nil
}

// SetModified overrides the modification time of an existing object.
func (m *MemStore) SetModified(name string, t time.Time) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	obj, ok := m.data[name]
	if !ok {
		return ErrObjectNotFound
	}
	obj.modified = t
	m.data[name] = obj
	return nil
}

func (m *MemStore) String() string {
	return "memory"
}

// NewMemStore returns a new in-memory store that stamps objects using c. A nil
// clock means the system clock.
func NewMemStore(c clock.Clock) *MemStore {
	if c == nil {
		c = clock.NewSystemClock()
	}
	return &MemStore{
		data:  make(map[string]object),
		clock: c,
		mtx:   &sync.RWMutex{},
	}
}
