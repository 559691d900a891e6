// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"

	"codeberg.org/advisoryportal/portalfe/server/utils"
)

// validation errors.
var (
	errUnixSocketWithHostPort       = errors.New("unix socket configured - cannot specify Host and Port simultaneously")
	errUnixSocketInvalidPermissions = errors.New("invalid Basic.UnixSocketPermissions value")
	errUnixSocketUserDoesNotExist   = errors.New("user does not exist")
	errUnixSocketGroupDoesNotExist  = errors.New("group does not exist")
	errNegativeTimeout              = errors.New("API timeouts cannot be negative")
	errInvalidAuthEndpoint          = errors.New("API.AuthEndpoint must be an absolute path")
	errInvalidTokenMaxAge           = errors.New("Token.MaxAge must be positive")
	errInvalidCacheSize             = errors.New("Cache.Size must be positive when the cache is enabled")
	errInvalidCacheTTL              = errors.New("Cache.TTL must be positive when the cache is enabled")
	errNegativeRateLimit            = errors.New("Request.RateLimit cannot be negative")
	errNegativeMaxRetries           = errors.New("Request.MaxRetries cannot be negative")
	errInvalidNoticesPageSize       = errors.New("Notices.PageSize must be positive")
	errInvalidLogFormat             = errors.New(`Log.Format must be "console" or "json"`)
)

var (
	fileModeOctalRegexp  = regexp.MustCompile(`^0?[0-7]{3}$`)
	fileModeStringRegexp = regexp.MustCompile(`^(?:[r-][w-][x-]){3}$`)
	digitsRegexp         = regexp.MustCompile(`^[0-9]+$`)
)

// validateAndSet validates the server configuration and populates some fields.
func (cfg *ServerConfig) validateAndSet() error {
	if err := cfg.validateListener(); err != nil {
		return err
	}

	for _, endpoint := range []struct {
		raw  *string
		name string
	}{
		{&cfg.API.ClientBaseURL, "client API base"},
		{&cfg.API.BackendBaseURL, "backend API base"},
	} {
		parsed, err := utils.ParseURL(*endpoint.raw, endpoint.name)
		if err != nil {
			return err
		}

		*endpoint.raw = parsed.String()
	}

	if cfg.API.ClientTimeout < 0 || cfg.API.BackendTimeout < 0 {
		return errNegativeTimeout
	}

	if cfg.API.AuthEndpoint != "" && !strings.HasPrefix(cfg.API.AuthEndpoint, "/") {
		return errInvalidAuthEndpoint
	}

	if cfg.Token.MaxAge <= 0 {
		return errInvalidTokenMaxAge
	}

	if cfg.Cache.Enabled {
		if cfg.Cache.Size <= 0 {
			return errInvalidCacheSize
		}

		if cfg.Cache.TTL <= 0 {
			return errInvalidCacheTTL
		}
	}

	if cfg.Request.AcceptLanguage != "" {
		if _, _, err := language.ParseAcceptLanguage(cfg.Request.AcceptLanguage); err != nil {
			return fmt.Errorf("invalid Request.AcceptLanguage %q: %w", cfg.Request.AcceptLanguage, err)
		}
	}

	if cfg.Request.RateLimit < 0 {
		return errNegativeRateLimit
	}

	if cfg.Request.MaxRetries < 0 {
		return errNegativeMaxRetries
	}

	if cfg.Notices.PageSize <= 0 {
		return errInvalidNoticesPageSize
	}

	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("invalid Log.Level: %w", err)
	}

	switch cfg.Log.Format {
	case "console", "json":
	default:
		return errInvalidLogFormat
	}

	return nil
}

// validateListener checks the TCP or unix socket listener settings.
func (cfg *ServerConfig) validateListener() error {
	if cfg.Basic.UnixSocket == "" {
		if cfg.Basic.Host == "" {
			cfg.Basic.Host = "localhost"
			log.Info().
				Str("host", cfg.Basic.Host).
				Msg("Binding to default host")
		}

		if cfg.Basic.Port == "" {
			cfg.Basic.Port = "8282"
			log.Info().
				Str("port", cfg.Basic.Port).
				Msg("Using default port")
		}

		return nil
	}

	if cfg.Basic.Host != "" || cfg.Basic.Port != "" {
		return errUnixSocketWithHostPort
	}

	switch {
	case cfg.Basic.RawUnixSocketPermissions == "":
		cfg.Basic.UnixSocketPermissions = 0o666
	case fileModeOctalRegexp.MatchString(cfg.Basic.RawUnixSocketPermissions):
		rawModeUint64, _ := strconv.ParseUint(cfg.Basic.RawUnixSocketPermissions, 8, 32)

		cfg.Basic.UnixSocketPermissions = os.FileMode(rawModeUint64)
	case fileModeStringRegexp.MatchString(cfg.Basic.RawUnixSocketPermissions):
		mode := os.FileMode(0)

		for i, c := range cfg.Basic.RawUnixSocketPermissions {
			if c != '-' {
				// Set i-th bit from the end
				const bitsInByte = 8

				mode |= 1 << (bitsInByte - i)
			}
		}

		cfg.Basic.UnixSocketPermissions = mode
	default:
		return errUnixSocketInvalidPermissions
	}

	if cfg.Basic.UnixSocketUser != "" {
		lookup := user.Lookup
		if digitsRegexp.MatchString(cfg.Basic.UnixSocketUser) {
			lookup = user.LookupId
		}

		if _, err := lookup(cfg.Basic.UnixSocketUser); err != nil {
			return errUnixSocketUserDoesNotExist
		}
	}

	if cfg.Basic.UnixSocketGroup != "" {
		lookup := user.LookupGroup
		if digitsRegexp.MatchString(cfg.Basic.UnixSocketGroup) {
			lookup = user.LookupGroupId
		}

		if _, err := lookup(cfg.Basic.UnixSocketGroup); err != nil {
			return errUnixSocketGroupDoesNotExist
		}
	}

	return nil
}
