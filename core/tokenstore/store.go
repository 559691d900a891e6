// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package tokenstore reads and writes the portal API token.

Where the token lives depends on who is calling: an interactive client keeps
it in a cookie jar (Jar), while server code handling an inbound request reads
it from that request's cookies (Incoming). Neither ever fails; a missing token
just means the request goes out unauthenticated.
*/
package tokenstore

import (
	"context"
	"sync"
	"time"
)

// Store is a source of, and optionally a sink for, the bearer token.
type Store interface {
	// Read returns the current token and whether one is present.
	Read(ctx context.Context) (string, bool)

	// Write replaces the current token. ttl <= 0 means the store's default.
	Write(ctx context.Context, token string, ttl time.Duration)
}

// Memory is a Store that keeps the token in process memory.
//
// The zero value is an empty store ready for use.
type Memory struct {
	mu      sync.RWMutex
	token   string
	expires time.Time
}

// NewMemory returns a Memory store holding token, which never expires.
func NewMemory(token string) *Memory {
	return &Memory{token: token}
}

func (m *Memory) Read(_ context.Context) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.token == "" {
		return "", false
	}

	if !m.expires.IsZero() && time.Now().After(m.expires) {
		return "", false
	}

	return m.token, true
}

func (m *Memory) Write(_ context.Context, token string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = token
	m.expires = time.Time{}

	if ttl > 0 {
		m.expires = time.Now().Add(ttl)
	}
}
