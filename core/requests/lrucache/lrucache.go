// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package lrucache provides a fixed-capacity least-recently-used byte store that
is safe for concurrent use.

Values may be kept zstd-compressed; callers always see the original bytes.
*/
package lrucache

import (
	"container/list"
	"errors"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var ErrInvalidSize = errors.New("must provide a positive size")

// LRUCache maps string keys to byte slices, evicting the least recently used
// entry once it holds size entries. Construct it with NewLRUCache.
type LRUCache struct {
	size int

	mu    sync.Mutex
	order *list.List // front is the most recently used
	items map[string]*list.Element

	enc *zstd.Encoder
	dec *zstd.Decoder
}

type entry struct {
	key        string
	data       []byte
	compressed bool
}

// NewLRUCache creates a cache holding at most size entries.
//
// With compress set, a value is stored compressed whenever that makes it smaller.
func NewLRUCache(size int, compress bool) (*LRUCache, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	c := &LRUCache{
		size:  size,
		order: list.New(),
		items: make(map[string]*list.Element, size),
	}

	if compress {
		// A nil writer/reader allows the stateless EncodeAll/DecodeAll.
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}

		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
		if err != nil {
			return nil, err
		}

		c.enc, c.dec = enc, dec
	}

	return c, nil
}

// Add stores a copy of value under key and marks it most recently used.
// It reports whether another entry was evicted to make room.
func (c *LRUCache) Add(key string, value []byte) bool {
	e := c.pack(key, value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value = e
		c.order.MoveToFront(el)

		return false
	}

	c.items[key] = c.order.PushFront(e)

	if c.order.Len() <= c.size {
		return false
	}

	oldest := c.order.Back()
	c.order.Remove(oldest)
	delete(c.items, oldest.Value.(*entry).key)

	return true
}

// Get returns a copy of the value for key and marks it most recently used.
func (c *LRUCache) Get(key string) ([]byte, bool) {
	return c.lookup(key, true)
}

// Peek is Get without touching the eviction order.
func (c *LRUCache) Peek(key string) ([]byte, bool) {
	return c.lookup(key, false)
}

func (c *LRUCache) lookup(key string, touch bool) ([]byte, bool) {
	c.mu.Lock()

	el, ok := c.items[key]
	if !ok {
		c.mu.Unlock()

		return nil, false
	}

	if touch {
		c.order.MoveToFront(el)
	}

	e := el.Value.(*entry)

	c.mu.Unlock()

	return c.unpack(e)
}

// Remove deletes key, reporting whether it was present.
func (c *LRUCache) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}

	c.order.Remove(el)
	delete(c.items, key)

	return true
}

// Keys returns every key from the least to the most recently used.
func (c *LRUCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.items))
	for el := c.order.Back(); el != nil; el = el.Prev() {
		keys = append(keys, el.Value.(*entry).key)
	}

	return keys
}

// Len returns the number of entries.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.order.Len()
}

// pack builds the stored form of value. It runs outside the lock; EncodeAll
// is safe for concurrent use.
func (c *LRUCache) pack(key string, value []byte) *entry {
	if c.enc != nil && len(value) > 0 {
		if packed := c.enc.EncodeAll(value, nil); len(packed) < len(value) {
			return &entry{key: key, data: packed, compressed: true}
		}
	}

	return &entry{key: key, data: clone(value)}
}

// unpack returns a private copy of the original bytes. Entries are never
// mutated after pack, so no lock is needed.
func (c *LRUCache) unpack(e *entry) ([]byte, bool) {
	if !e.compressed {
		return clone(e.data), true
	}

	data, err := c.dec.DecodeAll(e.data, nil)
	if err != nil {
		return nil, false
	}

	return data, true
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}

	return append(make([]byte, 0, len(b)), b...)
}
