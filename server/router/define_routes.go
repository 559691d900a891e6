// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package router

import (
	"net/http"
	"net/http/pprof"
	"runtime/trace"
	"time"

	"codeberg.org/advisoryportal/portalfe/config"
	"codeberg.org/advisoryportal/portalfe/server/middleware"
	"codeberg.org/advisoryportal/portalfe/server/routes"
)

// DefineRoutes registers the portal routes on the router.
//
// Middleware is added separately by RegisterMiddleware.
func (router *Router) DefineRoutes(portal *routes.Portal) {
	router.HandleFunc("GET /healthz", middleware.CatchError(routes.HealthPage))

	router.HandleFunc("GET /api/session", middleware.CatchError(portal.SessionPage))
	router.HandleFunc("GET /api/notices", middleware.CatchError(portal.NoticesPage))
	router.HandleFunc("POST /api/logout", middleware.CatchError(routes.LogoutPage))

	// The remainder of the path after /api/files is the API path of the file.
	router.HandleFunc("GET /api/files/", middleware.CatchError(StripPrefix("/api/files", portal.FilePage)))

	if config.Global.Development.InDevelopment {
		registerDebugRoutes(router)
	}
}

var flightRecorder = trace.NewFlightRecorder(trace.FlightRecorderConfig{MinAge: time.Minute})

func registerDebugRoutes(router *Router) {
	if !flightRecorder.Enabled() {
		if err := flightRecorder.Start(); err != nil {
			panic(err)
		}
	}

	router.HandleFunc("GET /debug/pprof/", pprof.Index)
	router.HandleFunc("GET /debug/pprof/cmdline", pprof.Cmdline)
	router.HandleFunc("GET /debug/pprof/profile", pprof.Profile)
	router.HandleFunc("GET /debug/pprof/symbol", pprof.Symbol)
	router.HandleFunc("GET /debug/pprof/trace", pprof.Trace)
	router.HandleFunc("GET /debug/flight", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = flightRecorder.WriteTo(w)
	})
}
