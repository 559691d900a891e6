// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package requests

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/advisoryportal/portalfe/core/apierr"
	"codeberg.org/advisoryportal/portalfe/core/tokenstore"
)

func newTestBackend(t *testing.T, handler http.HandlerFunc, store tokenstore.Store) *Backend {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	backend, err := NewBackend(store, Options{BaseURL: srv.URL})
	require.NoError(t, err)

	return backend
}

func TestBackend_RotationPropagatesAuthorization(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		retryStatus int
		retryBearer string
		wantStatus  int
	}{
		{name: "retry succeeds", retryStatus: http.StatusOK, wantStatus: http.StatusOK},
		{name: "retry rotates again", retryStatus: http.StatusCreated, retryBearer: "second", wantStatus: http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var (
				mu      sync.Mutex
				auths   []string
				rotated []string
			)

			store := tokenstore.NewMemory("old")

			backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				auths = append(auths, r.Header.Get("Authorization"))
				first := len(auths) == 1
				mu.Unlock()

				if first {
					w.Header().Set("Authorization", "Bearer fresh")
					w.WriteHeader(http.StatusCreated)

					return
				}

				if tt.retryBearer != "" {
					w.Header().Set("Authorization", "Bearer "+tt.retryBearer)
				}

				w.WriteHeader(tt.retryStatus)
				_, _ = io.WriteString(w, `{"status":200,"result":{"id":1}}`)
			}, store)

			backend.OnRotate = func(_ context.Context, token string) {
				rotated = append(rotated, token)
			}

			resp, err := backend.Do(context.Background(), &Request{Path: "/api/v1/items"})
			require.NoError(t, err)

			// Exactly one re-send, whatever the retry answers.
			mu.Lock()
			assert.Equal(t, []string{"Bearer old", "Bearer fresh"}, auths)
			mu.Unlock()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, "Bearer fresh", resp.Header.Get("Authorization"))
			assert.Equal(t, "fresh", resp.RotatedToken())
			assert.Equal(t, []string{"fresh"}, rotated)

			// The server variant never writes to the store.
			token, _ := store.Read(context.Background())
			assert.Equal(t, "old", token)
		})
	}
}

func TestBackend_NoRotateHookOnFailedRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	backend := newTestBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Authorization", "Bearer fresh")
			w.WriteHeader(http.StatusCreated)

			return
		}

		w.WriteHeader(http.StatusInternalServerError)
	}, tokenstore.NewMemory("old"))

	backend.OnRotate = func(context.Context, string) {
		t.Error("OnRotate called for a failed retry")
	}

	_, err := backend.Do(context.Background(), &Request{Path: "/x"})
	require.Error(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestBackend_AuthErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		path        string
		status      int
		body        string
		wantAuth    bool
		wantMessage string
	}{
		{name: "401 with result", path: "/x", status: http.StatusUnauthorized, body: `{"result":"세션 없음"}`, wantAuth: true, wantMessage: "세션 없음"},
		{name: "403 without body", path: "/x", status: http.StatusForbidden, wantAuth: true, wantMessage: apierr.MessageAuthRequired},
		{name: "400 on user info", path: DefaultAuthEndpoint, status: http.StatusBadRequest, wantAuth: true, wantMessage: apierr.MessageAuthRequired},
		{name: "400 on user info with query", path: DefaultAuthEndpoint + "?x=1", status: http.StatusBadRequest, wantAuth: true, wantMessage: apierr.MessageAuthRequired},
		{name: "expired token", path: "/x", status: http.StatusUnauthorized, body: `{"result":"토큰이 만료되었습니다."}`, wantAuth: true, wantMessage: apierr.TokenExpiredSentinel},
		{name: "400 elsewhere", path: "/x", status: http.StatusBadRequest},
		{name: "500", path: "/x", status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			backend := newTestBackend(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}, &tokenstore.Memory{})

			_, err := backend.Do(context.Background(), &Request{Path: tt.path})
			require.Error(t, err)

			var authErr *apierr.AuthError
			if !tt.wantAuth {
				assert.False(t, errors.As(err, &authErr))

				return
			}

			require.ErrorAs(t, err, &authErr)
			assert.Equal(t, apierr.AuthErrorStatus, authErr.Status)
			assert.Equal(t, tt.wantMessage, authErr.Message)
			assert.Equal(t, tt.status, authErr.StatusCode)
		})
	}
}

func TestBackend_ReadsIncomingToken(t *testing.T) {
	t.Parallel()

	type tokenKey struct{}

	var gotAuth atomic.Value

	store := tokenstore.NewIncoming(func(ctx context.Context) string {
		token, _ := ctx.Value(tokenKey{}).(string)

		return token
	})

	backend := newTestBackend(t, func(_ http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
	}, store)

	ctx := context.WithValue(context.Background(), tokenKey{}, "inbound")

	_, err := backend.Do(ctx, &Request{Path: "/x"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer inbound", gotAuth.Load())
}
