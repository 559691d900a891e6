// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package router

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/advisoryportal/portalfe/core/api"
	"codeberg.org/advisoryportal/portalfe/core/apierr"
	"codeberg.org/advisoryportal/portalfe/core/cookie"
	"codeberg.org/advisoryportal/portalfe/core/requests"
	"codeberg.org/advisoryportal/portalfe/core/tokenstore"
	"codeberg.org/advisoryportal/portalfe/server/request_context"
	"codeberg.org/advisoryportal/portalfe/server/routes"
)

// newTestRouter serves the portal routes against upstream as the API.
func newTestRouter(t *testing.T, upstream http.Handler) *Router {
	t.Helper()

	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	backend, err := requests.NewBackend(
		tokenstore.NewIncoming(request_context.TokenFrom),
		requests.Options{BaseURL: srv.URL, RequestID: request_context.RequestIDFrom},
	)
	require.NoError(t, err)

	backend.OnRotate = request_context.RecordRotatedToken

	router := NewRouter()
	router.DefineRoutes(&routes.Portal{Service: apiService(backend, srv.URL), NoticePageSize: 10})
	router.RegisterMiddleware()

	return router
}

func apiService(doer requests.Doer, baseURL string) *api.Service {
	return api.NewBackend(doer, baseURL)
}

func serve(router http.Handler, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: string(cookie.TokenCookie), Value: token})
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	return rr
}

func TestSessionForwardsToken(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/cnsut/users/get-user-basic-info", r.URL.Path)
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(`{"status":200,"result":{"name":"kim"}}`))
	}))

	rr := serve(router, http.MethodGet, "/api/session", "abc")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"name":"kim"}`, rr.Body.String())
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rr.Header().Get("Portal-Version"))
	assert.Empty(t, rr.Result().Cookies())
}

func TestSessionRotatesToken(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	router := newTestRouter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			assert.Equal(t, "Bearer old", r.Header.Get("Authorization"))
			w.Header().Set("Authorization", "Bearer new")
			w.WriteHeader(http.StatusCreated)

			return
		}

		assert.Equal(t, "Bearer new", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"status":200,"result":{"name":"kim"}}`))
	}))

	rr := serve(router, http.MethodGet, "/api/session", "old")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int32(2), calls.Load())

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "new", cookies[0].Value)
}

func TestSessionTokenExpired(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"result":"` + apierr.TokenExpiredSentinel + `"}`))
	}))

	rr := serve(router, http.MethodGet, "/api/session", "stale")

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, apierr.LoginPath, rr.Header().Get("Location"))
}

func TestSessionAuthFailure(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"result":"사용자 정보가 없습니다."}`))
	}))

	rr := serve(router, http.MethodGet, "/api/session", "")

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"status":"AUTH_ERROR","message":"사용자 정보가 없습니다."}`, rr.Body.String())
}

func TestNotices(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/cnsut/notices", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("size"))

		_, _ = w.Write([]byte(`{"status":200,"result":{"content":[],"number":2,"size":10,"empty":true}}`))
	}))

	rr := serve(router, http.MethodGet, "/api/notices?page=2", "abc")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"number":2`)

	rr = serve(router, http.MethodGet, "/api/notices?page=two", "abc")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"message":"`+apierr.MessageInvalidRequest+`"}`, rr.Body.String())
}

func TestFileDownload(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/cnsut/files/7", r.URL.Path)
		assert.Equal(t, requests.ContentTypeOctet, r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", "attachment; filename*=UTF-8''%EB%B3%B4%EA%B3%A0%EC%84%9C.pdf")
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))

	rr := serve(router, http.MethodGet, "/api/files/api/v1/cnsut/files/7", "abc")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename*=UTF-8''%EB%B3%B4%EA%B3%A0%EC%84%9C.pdf", rr.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.7", rr.Body.String())
}

func TestHealthAndNormalization(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, http.NotFoundHandler())

	rr := serve(router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)

	rr = serve(router, http.MethodGet, "/api/session/", "")
	assert.Equal(t, http.StatusPermanentRedirect, rr.Code)
	assert.Equal(t, "/api/session", rr.Header().Get("Location"))
}

func TestBackendUnreachable(t *testing.T) {
	t.Parallel()

	backend, err := requests.NewBackend(
		tokenstore.NewIncoming(request_context.TokenFrom),
		requests.Options{BaseURL: "http://127.0.0.1:1"},
	)
	require.NoError(t, err)

	router := NewRouter()
	router.DefineRoutes(&routes.Portal{Service: apiService(backend, "http://127.0.0.1:1"), NoticePageSize: 10})
	router.RegisterMiddleware()

	rr := serve(router, http.MethodGet, "/api/session", "abc")

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.JSONEq(t, `{"message":"`+apierr.MessageUnreachable+`"}`, rr.Body.String())
}

func TestLogoutClearsToken(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, http.NotFoundHandler())

	rr := serve(router, http.MethodPost, "/api/logout", "abc")

	assert.Equal(t, http.StatusNoContent, rr.Code)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, string(cookie.TokenCookie), cookies[0].Name)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestMiddlewareOrder(t *testing.T) {
	t.Parallel()

	var trail []string

	tag := func(name string) func(http.ResponseWriter, *http.Request, http.Handler) {
		return func(w http.ResponseWriter, r *http.Request, next http.Handler) {
			trail = append(trail, name)
			next.ServeHTTP(w, r)
		}
	}

	router := NewRouter()
	router.HandleFunc("GET /ping", func(w http.ResponseWriter, _ *http.Request) {
		trail = append(trail, "handler")
		w.WriteHeader(http.StatusNoContent)
	})
	router.Use(tag("outer"), tag("middle"))
	router.Use(tag("inner"))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, []string{"outer", "middle", "inner", "handler"}, trail)
}
