package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

/*
DirectoryStore is a storage provider that stores objects as files under a
local directory. Object names map to relative paths.

CreateIfAbsent writes to a hidden temporary file, syncs it, and hard-links it
into place. The link fails if the target exists, which gives the atomic
create-if-absent the commit protocol relies on, and the target is never
observed partially written.
*/

////////////////////////////////////////////////////////////////////////////////

const tmpPrefix = ".tmp-"

type DirectoryStore struct {
	root string
}

// NewDirectoryStore creates a new DirectoryStore.
func NewDirectoryStore(root string) *DirectoryStore {
	return &DirectoryStore{root: root}
}

func (d *DirectoryStore) path(name string) string {
	return filepath.Join(d.root, filepath.FromSlash(name))
}

func (d *DirectoryStore) writeTemp(name string, data []byte) (string, error) {
	dir := filepath.Dir(d.path(name))
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	tmp := filepath.Join(dir, tmpPrefix+uuid.NewString())
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return tmp, nil
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

// CreateIfAbsent stores an object unless one already exists under name.
func (d *DirectoryStore) CreateIfAbsent(_ context.Context, name string, data []byte) (bool, error) {
	tmp, err := d.writeTemp(name, data)
	if err != nil {
		return false, failure("create", name, err)
	}
	defer os.Remove(tmp)
	target := d.path(name)
	if err := os.Link(tmp, target); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, failure("create", name, err)
	}
	if err := syncDir(filepath.Dir(target)); err != nil {
		return true, failure("create", name, err)
	}
	return true, nil
}

// Put stores an object in the directory, replacing any existing one.
func (d *DirectoryStore) Put(_ context.Context, name string, data []byte) error {
	tmp, err := d.writeTemp(name, data)
	if err != nil {
		return failure("put", name, err)
	}
	target := d.path(name)
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return failure("put", name, err)
	}
	if err := syncDir(filepath.Dir(target)); err != nil {
		return failure("put", name, err)
	}
	return nil
}

// Get retrieves an object from the directory.
func (d *DirectoryStore) Get(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(d.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, failure("get", name, err)
	}
	return data, nil
}

// List returns the objects under prefix. Temporary files are not listed.
func (d *DirectoryStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	base := d.root
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		base = d.path(prefix[:i])
	}
	result := []ObjectInfo{}
	err := filepath.WalkDir(base, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), tmpPrefix) {
			return nil
		}
		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if !strings.HasPrefix(name, prefix) {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) { // deleted during the walk
				return nil
			}
			return err
		}
		result = append(result, ObjectInfo{
			Name:         name,
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, failure("list", prefix, err)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// Delete removes an object from the directory.
func (d *DirectoryStore) Delete(_ context.Context, name string) error {
	err := os.Remove(d.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrObjectNotFound
		}
		return failure("delete", name, err)
	}
	return nil
}

func (d *DirectoryStore) String() string {
	return fmt.Sprintf("directory(%s)", d.root)
}
