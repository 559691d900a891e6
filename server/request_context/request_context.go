// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package request_context provides per-request state management for HTTP handlers.

This package is separate because Go disallows a cyclic import graph.
*/
package request_context

import (
	"context"
	"net/http"
	"sync"

	"codeberg.org/advisoryportal/portalfe/core/idgen"
	"codeberg.org/advisoryportal/portalfe/core/untrusted"
)

// RequestContext carries request-scoped data through the middleware chain.
//
// This data survives the entire lifetime of a single HTTP request and is safe
// for concurrent access from multiple goroutines handling the same request.
type RequestContext struct {
	// RequestID is an identifier for tracing requests.
	RequestID string

	// Token is the API token sent by the user in the token cookie, if any.
	Token string

	// Holds any critical error encountered during request processing.
	//
	// Automatically populated by middleware.CatchError when handlers return errors.
	RequestError error

	// HTTP status code to be sent in the response. Defaults to 200 OK.
	StatusCode int

	mu           sync.Mutex
	rotatedToken string
}

// SetRotatedToken records a token issued by the API while serving this request.
func (rc *RequestContext) SetRotatedToken(token string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.rotatedToken = token
}

// RotatedToken returns the token recorded by SetRotatedToken, or "".
func (rc *RequestContext) RotatedToken() string {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	return rc.rotatedToken
}

// requestContextKeyType defines a unique type for a RequestContext key.
type requestContextKeyType struct{}

// requestContextKey is a unique key used to access RequestContext
// values from a context.Context.
var requestContextKey = requestContextKeyType{}

// WithRequestContext initializes a new request context and attaches it to
// the parent context.
//
// This is called once per request, early in the middleware chain (see router.RegisterMiddleware).
func WithRequestContext(ctx context.Context, r *http.Request) context.Context {
	rc := &RequestContext{
		RequestID:  idgen.Make(),
		Token:      untrusted.GetUserToken(r),
		StatusCode: http.StatusOK,
	}

	return context.WithValue(ctx, requestContextKey, rc)
}

// FromContext extracts the RequestContext from a context, always returning
// a valid pointer.
//
// If no context is found, returns a zero-value instance.
func FromContext(ctx context.Context) *RequestContext {
	if v := ctx.Value(requestContextKey); v != nil {
		if rc, ok := v.(*RequestContext); ok {
			return rc
		}
	}

	return &RequestContext{}
}

// FromRequest is a convenience wrapper for extracting RequestContext
// directly from HTTP requests.
//
// Prefer this in handlers that have access to the *http.Request object.
func FromRequest(r *http.Request) *RequestContext {
	return FromContext(r.Context())
}

// TokenFrom returns the inbound token of the request served by ctx.
func TokenFrom(ctx context.Context) string {
	return FromContext(ctx).Token
}

// RequestIDFrom returns the ID of the request served by ctx.
func RequestIDFrom(ctx context.Context) string {
	return FromContext(ctx).RequestID
}

// RecordRotatedToken stores token on the request served by ctx.
func RecordRotatedToken(ctx context.Context, token string) {
	FromContext(ctx).SetRotatedToken(token)
}
