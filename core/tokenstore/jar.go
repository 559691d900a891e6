// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package tokenstore

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"golang.org/x/net/publicsuffix"

	"codeberg.org/advisoryportal/portalfe/core/cookie"
)

// Jar is the client-side Store. It keeps the token as a cookie in an
// http.CookieJar scoped to the API origin, the same jar the client's
// http.Client sends cookies from.
type Jar struct {
	jar        http.CookieJar
	origin     *url.URL
	defaultTTL time.Duration
}

// NewJar creates a Jar for the API at baseURL.
//
// defaultTTL is used when Write is called with ttl <= 0; if it is also <= 0,
// cookie.TokenMaxAge applies.
func NewJar(baseURL string, defaultTTL time.Duration) (*Jar, error) {
	origin, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token jar origin %q: %w", baseURL, err)
	}

	// Cookies are scoped to the whole application path.
	origin = &url.URL{Scheme: origin.Scheme, Host: origin.Host, Path: cookie.TokenPath}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	if defaultTTL <= 0 {
		defaultTTL = cookie.TokenMaxAge
	}

	return &Jar{jar: jar, origin: origin, defaultTTL: defaultTTL}, nil
}

// CookieJar exposes the underlying jar so an http.Client can share it.
func (j *Jar) CookieJar() http.CookieJar {
	return j.jar
}

func (j *Jar) Read(_ context.Context) (string, bool) {
	for _, c := range j.jar.Cookies(j.origin) {
		if c.Name == string(cookie.TokenCookie) && c.Value != "" {
			return c.Value, true
		}
	}

	return "", false
}

func (j *Jar) Write(_ context.Context, token string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = j.defaultTTL
	}

	j.jar.SetCookies(j.origin, []*http.Cookie{{
		Name:   string(cookie.TokenCookie),
		Value:  token,
		Path:   cookie.TokenPath,
		MaxAge: int(ttl / time.Second),
	}})
}

// Clear removes the token from the jar.
func (j *Jar) Clear() {
	j.jar.SetCookies(j.origin, []*http.Cookie{{
		Name:   string(cookie.TokenCookie),
		Path:   cookie.TokenPath,
		MaxAge: -1,
	}})
}
