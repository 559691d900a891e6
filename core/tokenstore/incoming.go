// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package tokenstore

import (
	"context"
	"time"
)

// TokenSource extracts the inbound request's token from a context.
type TokenSource func(ctx context.Context) string

// Incoming is the server-side Store. It reads the token the user agent sent
// with the request currently being handled.
//
// Writes are ignored: cookies of an inbound request that is already being
// served cannot be changed, so rotated tokens are surfaced to the caller
// instead (see requests.Backend).
type Incoming struct {
	source TokenSource
}

// NewIncoming returns an Incoming store reading tokens through source.
func NewIncoming(source TokenSource) Incoming {
	return Incoming{source: source}
}

func (s Incoming) Read(ctx context.Context) (string, bool) {
	if s.source == nil {
		return "", false
	}

	token := s.source(ctx)

	return token, token != ""
}

func (Incoming) Write(context.Context, string, time.Duration) {}
