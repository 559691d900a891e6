// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
This package defines the cookie names used by this application.
*/
package cookie

import "time"

type CookieName string

// Cookie names defined as constants.
//
// NOTE: the token cookie keeps the bare name "token" because the portal's
// browser code reads it directly.
const (
	TokenCookie CookieName = "token" // #nosec:G101 - false positive
)

// TokenMaxAge is how long a rotated token cookie lives.
const TokenMaxAge = time.Hour

// TokenPath scopes the token cookie to the whole application.
const TokenPath = "/"

// AllCookieNames defines all cookies that can be set by this application.
var AllCookieNames = []CookieName{
	TokenCookie,
}

// IsHttpOnly reports whether the cookie must be hidden from scripts.
//
// The token cookie is read by browser code, so nothing is HttpOnly today.
func IsHttpOnly(name CookieName) bool {
	switch name {
	case TokenCookie:
		return false
	default:
		return true
	}
}
