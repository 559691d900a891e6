// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package router

import (
	"net/http"
	"net/url"
	"strings"
)

// FallibleHandler is a handler whose errors are answered by middleware.CatchError.
type FallibleHandler = func(w http.ResponseWriter, r *http.Request) error

// StripPrefix serves requests under prefix with h after removing prefix from
// the URL path. Other requests get a 404.
func StripPrefix(prefix string, h FallibleHandler) FallibleHandler {
	if prefix == "" {
		return h
	}

	return func(w http.ResponseWriter, r *http.Request) error {
		p := strings.TrimPrefix(r.URL.Path, prefix)

		rp := strings.TrimPrefix(r.URL.RawPath, prefix)
		if len(p) < len(r.URL.Path) && (r.URL.RawPath == "" || len(rp) < len(r.URL.RawPath)) {
			r2 := new(http.Request)

			*r2 = *r
			r2.URL = new(url.URL)
			*r2.URL = *r.URL
			r2.URL.Path = p
			r2.URL.RawPath = rp

			return h(w, r2)
		}

		http.NotFound(w, r)

		return nil
	}
}
