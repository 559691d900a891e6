// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package router

import (
	"net/http"
	"slices"
	"sync"

	"codeberg.org/advisoryportal/portalfe/server/middleware"
)

// Router is a ServeMux behind a middleware chain.
//
// The chain is assembled on the first request; middleware added after that
// is ignored.
type Router struct {
	*http.ServeMux

	middlewares []middleware.Middleware

	buildOnce sync.Once
	handler   http.Handler
}

func NewRouter() *Router {
	return &Router{ServeMux: http.NewServeMux()}
}

// Use appends middlewares to the chain. The first one registered sees the
// request first.
func (router *Router) Use(middlewares ...middleware.Middleware) {
	router.middlewares = append(router.middlewares, middlewares...)
}

func (router *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	router.buildOnce.Do(func() {
		var handler http.Handler = router.ServeMux

		for _, m := range slices.Backward(router.middlewares) {
			handler = middleware.Wrap(m, handler)
		}

		router.handler = handler
	})

	router.handler.ServeHTTP(w, r)
}
