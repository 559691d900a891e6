// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package request_context

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithRequestContext(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	r.AddCookie(&http.Cookie{Name: "token", Value: "abc"})

	ctx := WithRequestContext(r.Context(), r)
	rc := FromContext(ctx)

	assert.NotEmpty(t, rc.RequestID)
	assert.Equal(t, "abc", rc.Token)
	assert.Equal(t, http.StatusOK, rc.StatusCode)
	assert.Equal(t, "abc", TokenFrom(ctx))
	assert.Equal(t, rc.RequestID, RequestIDFrom(ctx))

	RecordRotatedToken(ctx, "fresh")
	assert.Equal(t, "fresh", rc.RotatedToken())
}

func TestFromContext_Missing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	rc := FromContext(ctx)
	assert.NotNil(t, rc)
	assert.Empty(t, rc.RequestID)
	assert.Empty(t, TokenFrom(ctx))

	// Recording on a context without a RequestContext is harmless.
	RecordRotatedToken(ctx, "lost")
}
