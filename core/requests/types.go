// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package requests

import (
	"context"
	"maps"
	"net/http"
	"net/url"
	"strings"
)

// Content types understood when encoding payloads.
const (
	ContentTypeJSON      = "application/json"
	ContentTypeMultipart = "multipart/form-data"
	ContentTypeOctet     = "application/octet-stream"
	ContentTypePDF       = "application/pdf"
)

const bearerPrefix = "Bearer "

// Doer sends a Request through a pipeline and returns the successful Response.
//
// Failure statuses are returned as errors from package apierr.
type Doer interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Request describes one call to the portal API.
type Request struct {
	Method string

	// Path is resolved against the pipeline's base URL unless it is absolute.
	Path  string
	Query url.Values

	// Payload is the request body. Supported kinds are nil, []byte, string,
	// io.Reader, map[string]string (multipart when ContentType says so) and
	// any JSON-encodable value.
	Payload     any
	ContentType string
	Accept      string
	Header      http.Header

	// OnProgress, if set, is called while the response body is read.
	// total is -1 when the length is unknown.
	OnProgress func(loaded, total int64)

	attempt int
	bearer  string
}

// Attempt returns 0 for the original request and 1 for its single re-issue.
func (r *Request) Attempt() int {
	return r.attempt
}

// next returns a copy of r for the following attempt. bearer, when set,
// overrides the token read from the store.
func (r *Request) next(bearer string) *Request {
	c := *r
	c.attempt = r.attempt + 1
	c.bearer = bearer
	c.Header = r.Header.Clone()
	c.Query = maps.Clone(r.Query)

	return &c
}

// Response is a successful API response with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// Request is the request that produced this response.
	Request *Request
}

// RotatedToken returns the bearer token carried by the response's
// Authorization header, or "".
func (r *Response) RotatedToken() string {
	return bearerToken(r.Header)
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(h http.Header) string {
	value := h.Get("Authorization")

	_, token, found := strings.Cut(value, bearerPrefix)
	if !found {
		return ""
	}

	return strings.TrimSpace(token)
}

// succeeded reports whether status is a 2xx or 3xx code.
func succeeded(status int) bool {
	return status >= http.StatusOK && status < http.StatusBadRequest
}
