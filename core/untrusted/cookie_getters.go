// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package untrusted

import (
	"net/http"
	"time"

	"codeberg.org/advisoryportal/portalfe/core/cookie"
)

// GetUserToken retrieves the portal API token from the request's 'token' cookie.
func GetUserToken(r *http.Request) string {
	return GetCookie(r, cookie.TokenCookie)
}

// SetUserToken stores a rotated portal API token on the response for maxAge.
// A non-positive maxAge falls back to cookie.TokenMaxAge.
func SetUserToken(w http.ResponseWriter, r *http.Request, token string, maxAge time.Duration) {
	if maxAge <= 0 {
		maxAge = cookie.TokenMaxAge
	}

	SetCookie(w, r, cookie.TokenCookie, token, maxAge)
}
