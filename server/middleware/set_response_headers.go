// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package middleware

import (
	"maps"
	"net/http"
	"strings"

	"codeberg.org/advisoryportal/portalfe/config"
)

// baseHeaders defines the default headers to be set in responses.
//
// Portal-Version and Portal-Revision are added dynamically in SetResponseHeaders.
var baseHeaders = http.Header{
	"Referrer-Policy":         {"no-referrer"},
	"X-Frame-Options":         {"DENY"},
	"X-Content-Type-Options":  {"nosniff"},
	"Content-Security-Policy": {"default-src 'none'; frame-ancestors 'none'"},
}

// SetResponseHeaders adds default headers to HTTP responses.
func SetResponseHeaders(w http.ResponseWriter, r *http.Request, next http.Handler) {
	headers := w.Header()

	maps.Insert(headers, maps.All(baseHeaders))

	setCacheControl(headers, r.URL.Path)

	headers.Set("Portal-Version", config.BuildVersion)
	headers.Set("Portal-Revision", config.Global.Build.Revision())

	next.ServeHTTP(w, r)
}

// setCacheControl keeps per-user API responses out of shared caches.
func setCacheControl(headers http.Header, path string) {
	cacheDuration := "private, no-cache"

	if strings.HasPrefix(path, "/api/") {
		cacheDuration = "no-store"
	}

	headers.Set("Cache-Control", cacheDuration)
}
