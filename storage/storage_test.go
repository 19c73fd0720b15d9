package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wkalt/tablelog/clock"
	"github.com/wkalt/tablelog/storage"
	"github.com/wkalt/tablelog/storage/minioutil"
)

func TestStorageProviders(t *testing.T) {
	ctx := context.Background()

	srv := minioutil.NewServer(t, "test")
	tmpdir := t.TempDir()

	cases := []struct {
		assertion string
		store     storage.Provider
	}{
		{
			"s3 store",
			storage.NewS3Store(srv.Client, srv.Bucket),
		},
		{
			"memory store",
			storage.NewMemStore(nil),
		},
		{
			"directory store",
			storage.NewDirectoryStore(tmpdir),
		},
	}

	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			t.Run("put and get", func(t *testing.T) {
				require.NoError(t, c.store.Put(ctx, "t/test", []byte("hello")))
				data, err := c.store.Get(ctx, "t/test")
				require.NoError(t, err)
				require.Equal(t, []byte("hello"), data)
			})
			t.Run("put overwrites", func(t *testing.T) {
				require.NoError(t, c.store.Put(ctx, "t/test", []byte("goodbye")))
				data, err := c.store.Get(ctx, "t/test")
				require.NoError(t, err)
				require.Equal(t, []byte("goodbye"), data)
			})
			t.Run("create if absent", func(t *testing.T) {
				created, err := c.store.CreateIfAbsent(ctx, "t/log/0", []byte("first"))
				require.NoError(t, err)
				require.True(t, created)

				created, err = c.store.CreateIfAbsent(ctx, "t/log/0", []byte("second"))
				require.NoError(t, err)
				require.False(t, created)

				data, err := c.store.Get(ctx, "t/log/0")
				require.NoError(t, err)
				require.Equal(t, []byte("first"), data)
			})
			t.Run("list by prefix", func(t *testing.T) {
				_, err := c.store.CreateIfAbsent(ctx, "t/log/1", []byte("b"))
				require.NoError(t, err)
				require.NoError(t, c.store.Put(ctx, "u/log/0", []byte("c")))
				listing, err := c.store.List(ctx, "t/log/")
				require.NoError(t, err)
				names := []string{}
				for _, info := range listing {
					names = append(names, info.Name)
					assert.False(t, info.LastModified.IsZero())
				}
				require.Equal(t, []string{"t/log/0", "t/log/1"}, names)
				require.Equal(t, int64(5), listing[0].Size)
			})
			t.Run("list of missing prefix is empty", func(t *testing.T) {
				listing, err := c.store.List(ctx, "missing/")
				require.NoError(t, err)
				require.Empty(t, listing)
			})
			t.Run("delete", func(t *testing.T) {
				require.NoError(t, c.store.Put(ctx, "t/test3", []byte("hello")))
				require.NoError(t, c.store.Delete(ctx, "t/test3"))
				_, err := c.store.Get(ctx, "t/test3")
				require.ErrorIs(t, err, storage.ErrObjectNotFound)
			})
			t.Run("get object that does not exist returns error", func(t *testing.T) {
				_, err := c.store.Get(ctx, "t/test4")
				require.ErrorIs(t, err, storage.ErrObjectNotFound)
			})
			t.Run("deleting object that does not exist reports absence", func(t *testing.T) {
				err := c.store.Delete(ctx, "t/test100")
				require.ErrorIs(t, err, storage.ErrObjectNotFound)
			})
		})
	}
}

func TestCreateIfAbsentIsExclusive(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		assertion string
		store     storage.Provider
	}{
		{"memory store", storage.NewMemStore(nil)},
		{"directory store", storage.NewDirectoryStore(t.TempDir())},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			var wg sync.WaitGroup
			wins := make(chan int, 20)
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					created, err := c.store.CreateIfAbsent(ctx, "log/00", []byte{byte(i)})
					assert.NoError(t, err)
					if created {
						wins <- i
					}
				}(i)
			}
			wg.Wait()
			close(wins)
			winners := []int{}
			for w := range wins {
				winners = append(winners, w)
			}
			require.Len(t, winners, 1)
			data, err := c.store.Get(ctx, "log/00")
			require.NoError(t, err)
			require.Equal(t, []byte{byte(winners[0])}, data)
		})
	}
}

func TestMemStoreModificationTimes(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewManualClock(start)
	store := storage.NewMemStore(c)
	require.NoError(t, store.Put(ctx, "a", []byte("a")))
	c.Advance(time.Hour)
	require.NoError(t, store.Put(ctx, "b", []byte("b")))

	listing, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, listing, 2)
	assert.Equal(t, start, listing[0].LastModified)
	assert.Equal(t, start.Add(time.Hour), listing[1].LastModified)

	require.NoError(t, store.SetModified("a", start.Add(-time.Hour)))
	listing, err = store.List(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, start.Add(-time.Hour), listing[0].LastModified)

	require.ErrorIs(t, store.SetModified("c", start), storage.ErrObjectNotFound)
}

func TestDirectoryStoreSkipsTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := storage.NewDirectoryStore(dir)
	require.NoError(t, store.Put(ctx, "log/a", []byte("a")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "log", ".tmp-abandoned"), []byte("x"), 0600))
	listing, err := store.List(ctx, "log/")
	require.NoError(t, err)
	require.Len(t, listing, 1)
	assert.Equal(t, "log/a", listing[0].Name)
}
