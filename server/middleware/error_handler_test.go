// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/advisoryportal/portalfe/config"
	"codeberg.org/advisoryportal/portalfe/core/apierr"
	"codeberg.org/advisoryportal/portalfe/server/request_context"
)

func newTestRequest(t *testing.T) *http.Request {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)

	return req.WithContext(request_context.WithRequestContext(req.Context(), req))
}

func TestCatchErrorSuccess(t *testing.T) {
	t.Parallel()

	handler := CatchError(func(w http.ResponseWriter, _ *http.Request) error {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, err := w.Write([]byte(`{"ok":true}`))

		return err
	})

	req := newTestRequest(t)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ok":true}`, rr.Body.String())

	rc := request_context.FromRequest(req)
	assert.NoError(t, rc.RequestError)
	assert.Equal(t, http.StatusAccepted, rc.StatusCode)
}

func TestCatchErrorStatuses(t *testing.T) {
	t.Parallel()

	unauthorized := &apierr.ResponseError{
		Method:     http.MethodGet,
		URL:        "/api/v1/cnsut/notices",
		StatusCode: http.StatusUnauthorized,
		Body:       []byte(`{"result":"권한이 없습니다."}`),
	}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "generic error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"message":"` + apierr.MessageInvalidRequest + `"}`,
		},
		{
			name:       "unreachable API",
			err:        &apierr.TransportError{Method: http.MethodGet, URL: "/x", Err: errors.New("dial tcp: refused")},
			wantStatus: http.StatusBadGateway,
			wantBody:   `{"message":"` + apierr.MessageUnreachable + `"}`,
		},
		{
			name:       "error response",
			err:        &apierr.ResponseError{Method: http.MethodGet, URL: "/x", StatusCode: 500, Body: []byte(`{"message":"DB 오류"}`)},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"message":"DB 오류"}`,
		},
		{
			name:       "authentication failure",
			err:        apierr.NewAuthError(unauthorized, unauthorized.Result()),
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"status":"AUTH_ERROR","message":"권한이 없습니다."}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := CatchError(func(w http.ResponseWriter, _ *http.Request) error {
				_, _ = w.Write([]byte("partial output"))

				return tt.err
			})

			req := newTestRequest(t)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.JSONEq(t, tt.wantBody, rr.Body.String())
			assert.NotContains(t, rr.Body.String(), "partial output")
			assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

			rc := request_context.FromRequest(req)
			assert.ErrorIs(t, rc.RequestError, tt.err)
			assert.Equal(t, tt.wantStatus, rc.StatusCode)
		})
	}
}

func TestCatchErrorTokenExpired(t *testing.T) {
	t.Parallel()

	expired := apierr.NewTokenExpiredError(&apierr.ResponseError{
		Method:     http.MethodGet,
		URL:        "/api/v1/cnsut/notices",
		StatusCode: http.StatusUnauthorized,
		Body:       []byte(`{"result":"` + apierr.TokenExpiredSentinel + `"}`),
	})

	handler := CatchError(func(http.ResponseWriter, *http.Request) error {
		return expired
	})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newTestRequest(t))

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, apierr.LoginPath, rr.Header().Get("Location"))
}

func TestCatchErrorRotatedToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{name: "success"},
		{name: "failure", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := CatchError(func(w http.ResponseWriter, r *http.Request) error {
				request_context.RecordRotatedToken(r.Context(), "rotated")

				if tt.err == nil {
					_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
				}

				return tt.err
			})

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, newTestRequest(t))

			cookies := rr.Result().Cookies()
			require.Len(t, cookies, 1)
			assert.Equal(t, "token", cookies[0].Name)
			assert.Equal(t, "rotated", cookies[0].Value)
		})
	}
}

// Not parallel: it changes config.Global.
func TestCatchErrorRotatedTokenMaxAge(t *testing.T) {
	previous := config.Global.Token.MaxAge

	t.Cleanup(func() { config.Global.Token.MaxAge = previous })

	config.Global.Token.MaxAge = 5 * time.Minute

	handler := CatchError(func(w http.ResponseWriter, r *http.Request) error {
		request_context.RecordRotatedToken(r.Context(), "fresh")
		w.WriteHeader(http.StatusNoContent)

		return nil
	})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newTestRequest(t))

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "fresh", cookies[0].Value)
	assert.Equal(t, 300, cookies[0].MaxAge)
}

func TestCatchErrorNoRotation(t *testing.T) {
	t.Parallel()

	handler := CatchError(func(w http.ResponseWriter, _ *http.Request) error {
		w.WriteHeader(http.StatusNoContent)

		return nil
	})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newTestRequest(t))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Result().Cookies())
}
