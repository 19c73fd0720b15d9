package table

import (
	"context"
	"errors"
	"path"
	"regexp"
	"sync"

	"github.com/wkalt/tablelog/storage"
)

// ErrInvalidTableName is returned for table names that cannot be used as a
// path segment.
var ErrInvalidTableName = errors.New("invalid table name")

var tableName = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_.-]*$`)

// Catalog hands out table handles for the tables under a prefix of a store.
// Handles are opened on first use and shared afterwards.
type Catalog struct {
	store  storage.Provider
	prefix string
	opts   []Option

	mtx    *sync.Mutex
	tables map[string]*Table
}

// NewCatalog returns a catalog of the tables under prefix. The options are
// applied to each table opened.
func NewCatalog(store storage.Provider, prefix string, opts ...Option) *Catalog {
	return &Catalog{
		store:  store,
		prefix: prefix,
		opts:   opts,
		mtx:    &sync.Mutex{},
		tables: make(map[string]*Table),
	}
}

// Store returns the catalog's storage provider.
func (c *Catalog) Store() storage.Provider {
	return c.store
}

// Table returns the handle for the named table, opening it if needed. A
// table that does not exist yet opens empty.
func (c *Catalog) Table(ctx context.Context, name string) (*Table, error) {
	if !tableName.MatchString(name) {
		return nil, ErrInvalidTableName
	}
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if t, ok := c.tables[name]; ok {
		return t, nil
	}
	t, err := Open(ctx, c.store, path.Join(c.prefix, name), c.opts...)
	if err != nil {
		return nil, err
	}
	c.tables[name] = t
	return t, nil
}
