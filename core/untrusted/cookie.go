// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package untrusted

import (
	"net/http"
	"net/url"
	"time"

	"codeberg.org/advisoryportal/portalfe/core/cookie"
	"codeberg.org/advisoryportal/portalfe/server/utils"
)

// SameSite=Lax allows cookies on top-level navigations, preventing authentication issues
// when users arrive from external links (Strict would require a page refresh).
const CookieSameSite = http.SameSiteLaxMode

// Clear a cookie by setting its expiration date to this
var cookieExpireDelete = time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC)

func createCookieUnencoded(name cookie.CookieName, value string, maxAge time.Duration, isSecure bool) http.Cookie {
	c := http.Cookie{
		Name:     string(name),
		Value:    value,
		Path:     cookie.TokenPath,
		Secure:   isSecure,
		HttpOnly: cookie.IsHttpOnly(name),
		SameSite: CookieSameSite,
	}

	if maxAge > 0 {
		c.MaxAge = int(maxAge / time.Second)
		c.Expires = time.Now().Add(maxAge)
	} else {
		c.MaxAge = -1
		c.Expires = cookieExpireDelete
	}

	return c
}

// GetCookie returns the unescaped value of the named cookie, or "" if it is
// absent or malformed.
func GetCookie(r *http.Request, name cookie.CookieName) string {
	c, err := r.Cookie(string(name))
	if err != nil {
		return ""
	}

	value, err := url.QueryUnescape(c.Value)
	if err != nil {
		return ""
	}

	return value
}

// SetCookie writes the named cookie with the given lifetime.
// An empty value clears the cookie instead.
func SetCookie(w http.ResponseWriter, r *http.Request, name cookie.CookieName, value string, maxAge time.Duration) {
	if value == "" {
		ClearCookie(w, r, name)

		return
	}

	c := createCookieUnencoded(name, url.QueryEscape(value), maxAge, utils.IsConnectionSecure(r))
	http.SetCookie(w, &c)
}

// ClearCookie expires the named cookie.
func ClearCookie(w http.ResponseWriter, r *http.Request, name cookie.CookieName) {
	c := createCookieUnencoded(name, "", 0, utils.IsConnectionSecure(r))
	http.SetCookie(w, &c)
}

// ClearAllCookies expires every cookie this application sets.
func ClearAllCookies(w http.ResponseWriter, r *http.Request) {
	for _, name := range cookie.AllCookieNames {
		ClearCookie(w, r, name)
	}
}
