package util_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wkalt/tablelog/util"
)

func TestLRU(t *testing.T) {
	t.Run("inserts are most recent first", func(t *testing.T) {
		lru := util.NewLRU[int64, string](100, nil)
		lru.Put(1, "a")
		lru.Put(2, "a")
		lru.Put(3, "a")
		assert.Equal(t, []int64{3, 2, 1}, lru.Keys())
	})
	t.Run("eviction", func(t *testing.T) {
		lru := util.NewLRU[int64, string](2, nil)
		lru.Put(1, "a")
		lru.Put(2, "a")
		lru.Put(3, "a")
		assert.Equal(t, []int64{3, 2}, lru.Keys())
	})
	t.Run("get moves items to front", func(t *testing.T) {
		lru := util.NewLRU[int64, string](100, nil)
		lru.Put(1, "a")
		lru.Put(2, "a")
		lru.Put(3, "a")
		v, ok := lru.Get(1)
		assert.True(t, ok)
		assert.Equal(t, "a", v)
		assert.Equal(t, []int64{1, 3, 2}, lru.Keys())
	})
	t.Run("overwrite moves item to the front", func(t *testing.T) {
		lru := util.NewLRU[int64, string](100, nil)
		lru.Put(1, "a")
		lru.Put(2, "a")
		lru.Put(1, "ab")
		assert.Equal(t, []int64{1, 2}, lru.Keys())
		v, _ := lru.Get(1)
		assert.Equal(t, "ab", v)
	})
	t.Run("delete", func(t *testing.T) {
		lru := util.NewLRU[int64, string](100, nil)
		lru.Put(1, "a")
		lru.Put(2, "b")
		lru.Delete(1)
		lru.Delete(5)
		_, ok := lru.Get(1)
		assert.False(t, ok)
		assert.Equal(t, []int64{2}, lru.Keys())
	})
	t.Run("zero capacity stores nothing", func(t *testing.T) {
		lru := util.NewLRU[int64, string](0, nil)
		lru.Put(1, "a")
		_, ok := lru.Get(1)
		assert.False(t, ok)
		assert.Equal(t, 0, lru.Stats().Entries)
	})
	t.Run("weighted eviction", func(t *testing.T) {
		weigh := func(s string) int64 { return int64(len(s)) }
		lru := util.NewLRU[int64, string](5, weigh)
		lru.Put(1, "aa")
		lru.Put(2, "bb")
		lru.Put(3, "ccc")
		assert.Equal(t, []int64{3, 2}, lru.Keys())
		assert.Equal(t, int64(5), lru.Stats().Weight)

		lru.Put(4, "dddddd")
		assert.Equal(t, []int64{3, 2}, lru.Keys())

		lru.Put(2, "b")
		assert.Equal(t, int64(4), lru.Stats().Weight)
	})
	t.Run("stats", func(t *testing.T) {
		lru := util.NewLRU[int64, string](10, nil)
		lru.Put(1, "a")
		lru.Get(1)
		lru.Get(1)
		lru.Get(2)
		assert.Equal(t, util.CacheStats{Hits: 2, Misses: 1, Entries: 1, Weight: 1}, lru.Stats())
	})
}
