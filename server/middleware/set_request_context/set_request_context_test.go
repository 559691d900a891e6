// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package set_request_context

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/advisoryportal/portalfe/core/cookie"
	"codeberg.org/advisoryportal/portalfe/server/middleware"
	"codeberg.org/advisoryportal/portalfe/server/request_context"
)

func TestWithRequestContext(t *testing.T) {
	t.Parallel()

	var got *request_context.RequestContext

	handler := middleware.Wrap(WithRequestContext, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = request_context.FromRequest(r)

		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(&http.Cookie{Name: string(cookie.TokenCookie), Value: "abc"})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	require.NotNil(t, got)
	assert.NotEmpty(t, got.RequestID)
	assert.Equal(t, "abc", got.Token)
	assert.Equal(t, http.StatusOK, got.StatusCode)
	assert.NoError(t, got.RequestError)
}

func TestWithRequestContextUniqueIDs(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)

	handler := middleware.Wrap(WithRequestContext, http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen[request_context.FromRequest(r).RequestID] = true
	}))

	for range 3 {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}

	assert.Len(t, seen, 3)
}
