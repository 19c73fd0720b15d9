package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/minio/minio-go/v7"
)

/*
Storage provider for S3-compatible object storage. We use the minio client
library.

S3 offers no create-if-absent primitive through this client, so CreateIfAbsent
is a stat followed by a put, serialized within the process. That is not atomic
across processes: tables on S3 with more than one writer process must route
commits through a commit store (see the commitstore package).
*/

////////////////////////////////////////////////////////////////////////////////

const (
	minioCodeNoSuchKey = "NoSuchKey"
)

type s3store struct {
	mc     *minio.Client
	bucket string
	mtx    *sync.Mutex
}

// NewS3Store returns a provider storing objects in bucket.
func NewS3Store(mc *minio.Client, bucket string) Provider {
	return &s3store{
		mc:     mc,
		bucket: bucket,
		mtx:    &sync.Mutex{},
	}
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == minioCodeNoSuchKey
}

func (s *s3store) exists(ctx context.Context, name string) (bool, error) {
	_, err := s.mc.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *s3store) put(ctx context.Context, name string, data []byte) error {
	_, err := s.mc.PutObject(
		ctx,
		s.bucket,
		name,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"},
	)
	return err
}

// CreateIfAbsent stores the object if it does not already exist.
func (s *s3store) CreateIfAbsent(ctx context.Context, name string, data []byte) (bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	exists, err := s.exists(ctx, name)
	if err != nil {
		return false, failure("create", name, err)
	}
	if exists {
		return false, nil
	}
	if err := s.put(ctx, name, data); err != nil {
		return false, failure("create", name, err)
	}
	return true, nil
}

// Put stores the data in the object store.
func (s *s3store) Put(ctx context.Context, name string, data []byte) error {
	if err := s.put(ctx, name, data); err != nil {
		return failure("put", name, err)
	}
	return nil
}

// Get retrieves an object from the object store.
func (s *s3store) Get(ctx context.Context, name string) ([]byte, error) {
	obj, err := s.mc.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrObjectNotFound
		}
		return nil, failure("get", name, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrObjectNotFound
		}
		return nil, failure("get", name, err)
	}
	return data, nil
}

// List returns the objects under prefix. S3 lists keys in lexical order.
func (s *s3store) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	result := []ObjectInfo{}
	for obj := range s.mc.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, failure("list", prefix, obj.Err)
		}
		result = append(result, ObjectInfo{
			Name:         obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	return result, nil
}

// Delete removes an object from the object store. RemoveObject succeeds for
// missing keys, so existence is checked first.
func (s *s3store) Delete(ctx context.Context, name string) error {
	exists, err := s.exists(ctx, name)
	if err != nil {
		return failure("delete", name, err)
	}
	if !exists {
		return ErrObjectNotFound
	}
	if err := s.mc.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return ErrObjectNotFound
		}
		return failure("delete", name, err)
	}
	return nil
}

func (s *s3store) String() string {
	return fmt.Sprintf("s3(%s)", s.bucket)
}
