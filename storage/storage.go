package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

/*
The storage package defines the durable artifact store the log is written to,
and providers for memory, a local directory, and S3-compatible object storage.

Object names are slash-separated keys. Providers do not interpret them beyond
prefix matching in List.
*/

////////////////////////////////////////////////////////////////////////////////

// ErrObjectNotFound is returned when an object does not exist. Delete returns
// it for objects that are already absent, which callers may choose to
// tolerate.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes a listed object.
type ObjectInfo struct {
	Name         string
	Size         int64
	LastModified time.Time
}

// Provider is the interface to durable storage.
type Provider interface {
	// CreateIfAbsent writes data under name only if no object exists there.
	// It returns false, with no error, if the object already exists. The write
	// is durable when the call returns true.
	CreateIfAbsent(ctx context.Context, name string, data []byte) (bool, error)

	// Put writes data under name, replacing any existing object.
	Put(ctx context.Context, name string, data []byte) error

	// Get returns the contents of the object.
	Get(ctx context.Context, name string) ([]byte, error)

	// List returns the objects whose names start with prefix, sorted by name.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Delete removes the object, returning ErrObjectNotFound if it is absent.
	Delete(ctx context.Context, name string) error

	String() string
}

// StorageFailureError wraps an I/O failure from a provider with the operation
// and object that produced it.
type StorageFailureError struct {
	Op   string
	Name string
	Err  error
}

func (e StorageFailureError) Error() string {
	return fmt.Sprintf("storage failure: %s %s: %s", e.Op, e.Name, e.Err)
}

func (e StorageFailureError) Unwrap() error {
	return e.Err
}

func (e StorageFailureError) Is(target error) bool {
	_, ok := target.(StorageFailureError)
	return ok
}

func failure(op, name string, err error) error {
	return StorageFailureError{Op: op, Name: name, Err: err}
}
