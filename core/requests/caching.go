// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package requests

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"codeberg.org/advisoryportal/portalfe/core/requests/lrucache"
)

// Cache stores successful GET responses for a limited time.
//
// A nil *Cache is valid and caches nothing.
type Cache struct {
	lru *lrucache.LRUCache
	ttl time.Duration
	now func() time.Time
}

// cachedItem is the gob-encoded form of a cached response.
type cachedItem struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	ExpiresAt  time.Time
	URL        string

	// TokenDigest identifies the session the response was cached for.
	TokenDigest string
}

// cachePolicy defines the caching behavior for a request.
type cachePolicy struct {
	// Whether to store any OK response that we receive.
	shouldUseCache bool

	// The cached item if available and valid.
	cachedItem *cachedItem
}

// NewCache creates a response cache holding at most size entries for ttl each.
func NewCache(size int, ttl time.Duration, compress bool) (*Cache, error) {
	lru, err := lrucache.NewLRUCache(size, compress)
	if err != nil {
		return nil, fmt.Errorf("failed to create response cache: %w", err)
	}

	log.Info().
		Int("size", size).
		Dur("ttl", ttl).
		Bool("compress", compress).
		Msg("Initialized API response cache")

	return &Cache{lru: lru, ttl: ttl, now: time.Now}, nil
}

// generateCacheKey binds a cached response to both the URL and the full
// token that requested it.
func generateCacheKey(url, token string) string {
	sum := sha256.Sum256([]byte(url + "\x00" + token))

	return hex.EncodeToString(sum[:])
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))

	return hex.EncodeToString(sum[:])
}

// belongsTo reports whether item was cached for rawURL under token.
func (item *cachedItem) belongsTo(rawURL, token string) bool {
	return item.URL == rawURL && item.TokenDigest == tokenDigest(token)
}

// policy determines whether a cached response can be served for a request,
// or whether a new response should be stored.
func (c *Cache) policy(rawURL, token string, headers http.Header) cachePolicy {
	if c == nil {
		return cachePolicy{}
	}

	// Honor "no-cache" from the caller: skip both read and write.
	lowerCacheControl := strings.ToLower(headers.Get("Cache-Control"))
	if strings.Contains(lowerCacheControl, "no-cache") {
		return cachePolicy{}
	}

	key := generateCacheKey(rawURL, token)

	if cached, found := c.lru.Get(key); found {
		item, err := decodeCachedItem(cached)

		switch {
		case err != nil:
			log.Warn().Err(err).Str("key", key).Msg("Failed to decode cached item; removing")
			c.lru.Remove(key)
		case !item.belongsTo(rawURL, token):
			// Key collision. The entry is left for its owner and overwritten
			// if this response gets stored.
			log.Warn().Str("key", key).Msg("Cached item belongs to another request; ignoring")
		case c.now().Before(item.ExpiresAt):
			return cachePolicy{shouldUseCache: true, cachedItem: item}
		default:
			c.lru.Remove(key)
		}
	}

	return cachePolicy{
		shouldUseCache: !strings.Contains(lowerCacheControl, "no-store"),
	}
}

// store saves resp under rawURL and token.
func (c *Cache) store(ctx context.Context, rawURL, token string, resp *Response) {
	if c == nil {
		return
	}

	item := cachedItem{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
		ExpiresAt:  c.now().Add(c.ttl),
		URL:        rawURL,

		TokenDigest: tokenDigest(token),
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(item); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("url", rawURL).Msg("Failed to encode response for cache")

		return
	}

	c.lru.Add(generateCacheKey(rawURL, token), buf.Bytes())
}

// InvalidateURLs removes all cached items whose URL starts with any of
// urlPrefixes, returning the removed URLs.
func (c *Cache) InvalidateURLs(urlPrefixes ...string) []string {
	var invalidated []string

	if c == nil || len(urlPrefixes) == 0 {
		return invalidated
	}

	for _, key := range c.lru.Keys() {
		stored, ok := c.lru.Peek(key)
		if !ok {
			continue
		}

		// Corrupt entries are evicted on the next Get.
		item, err := decodeCachedItem(stored)
		if err != nil {
			continue
		}

		for _, prefix := range urlPrefixes {
			if strings.HasPrefix(item.URL, prefix) {
				c.lru.Remove(key)

				invalidated = append(invalidated, item.URL)

				break
			}
		}
	}

	log.Info().
		Int("count", len(invalidated)).
		Strs("urls", invalidated).
		Msg("Invalidated URLs")

	return invalidated
}

// Len returns the number of cached responses.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}

	return c.lru.Len()
}

func decodeCachedItem(data []byte) (*cachedItem, error) {
	var item cachedItem
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&item); err != nil {
		return nil, err
	}

	return &item, nil
}
