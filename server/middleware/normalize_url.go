// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package middleware

import (
	"net/http"
	"strings"
)

// NormalizeURL is a middleware that redirects URLs with a trailing slash
// (except the root and prefix routes) to their canonical form.
func NormalizeURL(w http.ResponseWriter, r *http.Request, next http.Handler) {
	if hasTrailingSlash(r) {
		removeTrailingSlash(w, r)

		return
	}

	next.ServeHTTP(w, r)
}

// prefixRoutes are routes whose trailing slash is meaningful.
var prefixRoutes = []string{"/api/files/", "/debug/"}

// hasTrailingSlash checks if a request path has a trailing slash (except root).
func hasTrailingSlash(r *http.Request) bool {
	path := r.URL.Path

	if path == "/" || !strings.HasSuffix(path, "/") {
		return false
	}

	for _, prefix := range prefixRoutes {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}

	return true
}

// removeTrailingSlash removes trailing slash and redirects.
func removeTrailingSlash(w http.ResponseWriter, r *http.Request) {
	url := *r.URL

	url.Path = strings.TrimRight(url.Path, "/")
	url.RawPath = ""

	http.Redirect(w, r, url.String(), http.StatusPermanentRedirect)
}
