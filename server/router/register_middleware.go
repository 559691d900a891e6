// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package router

import (
	"codeberg.org/advisoryportal/portalfe/server/middleware"
	"codeberg.org/advisoryportal/portalfe/server/middleware/set_request_context"
)

// RegisterMiddleware installs the middleware chain. The first one registered
// runs outermost.
func (router *Router) RegisterMiddleware() {
	router.Use(middleware.WithServerTiming)
	router.Use(middleware.NormalizeURL)                // trailing slashes
	router.Use(set_request_context.WithRequestContext) // request ID and token cookie
	router.Use(middleware.SetResponseHeaders)
}
