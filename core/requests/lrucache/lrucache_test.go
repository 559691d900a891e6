// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package lrucache

import (
	"bytes"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLRUCacheInvalidSize(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, -1} {
		cache, err := NewLRUCache(size, false)
		require.ErrorIs(t, err, ErrInvalidSize)
		assert.Nil(t, cache)
	}
}

func TestLRUCacheEviction(t *testing.T) {
	t.Parallel()

	for _, compress := range []bool{false, true} {
		t.Run("compress="+strconv.FormatBool(compress), func(t *testing.T) {
			t.Parallel()

			cache, err := NewLRUCache(2, compress)
			require.NoError(t, err)

			assert.False(t, cache.Add("a", []byte("1")))
			assert.False(t, cache.Add("b", []byte("2")))

			// Touch "a" so "b" becomes the oldest.
			_, ok := cache.Get("a")
			require.True(t, ok)

			assert.True(t, cache.Add("c", []byte("3")))
			assert.Equal(t, []string{"a", "c"}, cache.Keys())

			_, ok = cache.Get("b")
			assert.False(t, ok)

			// Updating an existing key never evicts.
			assert.False(t, cache.Add("a", []byte("10")))
			got, ok := cache.Get("a")
			require.True(t, ok)
			assert.Equal(t, []byte("10"), got)
			assert.Equal(t, 2, cache.Len())
		})
	}
}

func TestLRUCachePeekKeepsOrder(t *testing.T) {
	t.Parallel()

	cache, err := NewLRUCache(2, false)
	require.NoError(t, err)

	cache.Add("a", []byte("1"))
	cache.Add("b", []byte("2"))

	_, ok := cache.Peek("a")
	require.True(t, ok)

	cache.Add("c", []byte("3"))

	_, ok = cache.Peek("a")
	assert.False(t, ok, "peeked entry should still be evicted first")
	assert.Equal(t, []string{"b", "c"}, cache.Keys())
}

func TestLRUCacheRemove(t *testing.T) {
	t.Parallel()

	cache, err := NewLRUCache(2, false)
	require.NoError(t, err)

	cache.Add("a", []byte("1"))

	assert.True(t, cache.Remove("a"))
	assert.False(t, cache.Remove("a"))
	assert.Empty(t, cache.Keys())
	assert.Zero(t, cache.Len())
}

func TestLRUCacheCompression(t *testing.T) {
	t.Parallel()

	cache, err := NewLRUCache(4, true)
	require.NoError(t, err)

	large := bytes.Repeat([]byte(`{"status":200,"result":"aaaa"}`), 200)
	small := []byte("x")

	cache.Add("large", large)
	cache.Add("small", small)
	cache.Add("empty", nil)

	assert.True(t, cache.items["large"].Value.(*entry).compressed)
	assert.False(t, cache.items["small"].Value.(*entry).compressed)

	got, ok := cache.Get("large")
	require.True(t, ok)
	assert.Equal(t, large, got)

	got, ok = cache.Get("small")
	require.True(t, ok)
	assert.Equal(t, small, got)

	got, ok = cache.Get("empty")
	require.True(t, ok)
	assert.Nil(t, got)
}

func TestLRUCacheReturnsCopies(t *testing.T) {
	t.Parallel()

	cache, err := NewLRUCache(1, false)
	require.NoError(t, err)

	value := []byte("abc")
	cache.Add("k", value)
	value[0] = 'X'

	got, _ := cache.Get("k")
	assert.Equal(t, []byte("abc"), got)

	got[0] = 'Y'

	again, _ := cache.Peek("k")
	assert.Equal(t, []byte("abc"), again)
}

func TestLRUCacheConcurrentUse(t *testing.T) {
	t.Parallel()

	cache, err := NewLRUCache(16, true)
	require.NoError(t, err)

	var wg sync.WaitGroup

	for worker := range 8 {
		wg.Go(func() {
			for i := range 100 {
				key := strconv.Itoa((worker + i) % 32)
				cache.Add(key, bytes.Repeat([]byte(key), 64))

				if got, ok := cache.Get(key); ok {
					assert.Equal(t, bytes.Repeat([]byte(key), 64), got)
				}
			}
		})
	}

	wg.Wait()

	assert.LessOrEqual(t, cache.Len(), 16)
}
