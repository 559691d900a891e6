// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"time"

	"codeberg.org/advisoryportal/portalfe/core/cookie"
	"codeberg.org/advisoryportal/portalfe/core/requests"
)

const (
	// DefaultClientBaseURL is where interactive clients reach the API.
	DefaultClientBaseURL = "http://localhost:3000"

	// DefaultBackendBaseURL is where server code reaches the API.
	DefaultBackendBaseURL = "http://211.253.241.27:8090"

	defaultClientTimeoutSeconds  = 180
	defaultBackendTimeoutSeconds = 60
	defaultCacheTTLMinutes       = 5
	defaultNoticesPageSize       = 10
)

// SetDefaults populates the configuration with default values.
func (cfg *ServerConfig) SetDefaults() {
	cfg.Basic.Host = "localhost"
	cfg.Basic.Port = "8282"

	cfg.API.ClientBaseURL = DefaultClientBaseURL
	cfg.API.BackendBaseURL = DefaultBackendBaseURL
	cfg.API.ClientTimeout = defaultClientTimeoutSeconds * time.Second
	cfg.API.BackendTimeout = defaultBackendTimeoutSeconds * time.Second
	cfg.API.AuthEndpoint = requests.DefaultAuthEndpoint

	cfg.Token.MaxAge = cookie.TokenMaxAge

	cfg.Cache.Enabled = false
	cfg.Cache.Size = 100
	cfg.Cache.TTL = defaultCacheTTLMinutes * time.Minute
	cfg.Cache.Compress = true

	cfg.Request.AcceptLanguage = "ko-KR,ko;q=0.9,en-US;q=0.5"
	cfg.Request.UserAgent = "portalfe/" + BuildVersion
	cfg.Request.RateLimit = 0
	cfg.Request.MaxRetries = 0

	cfg.Notices.PageSize = defaultNoticesPageSize

	cfg.Development.SaveResponses = false
	cfg.Development.ResponseSaveLocation = "/tmp/portalfe/responses"

	cfg.Log.Level = "info"
	cfg.Log.Outputs = []string{"/dev/stderr"}
	cfg.Log.Format = "console"
}
