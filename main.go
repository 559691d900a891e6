// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
portalfe is a gateway in front of the advisory portal API. It forwards the
token cookie of each browser request as a bearer token and hands rotated
tokens back to the browser.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"os/user"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"codeberg.org/advisoryportal/portalfe/config"
	"codeberg.org/advisoryportal/portalfe/core/api"
	"codeberg.org/advisoryportal/portalfe/core/audit"
	"codeberg.org/advisoryportal/portalfe/core/requests"
	"codeberg.org/advisoryportal/portalfe/core/tokenstore"
	"codeberg.org/advisoryportal/portalfe/server/request_context"
	"codeberg.org/advisoryportal/portalfe/server/router"
	"codeberg.org/advisoryportal/portalfe/server/routes"
)

const (
	// Values for http.Server timeouts.
	// ref: gosec: G112
	readHeaderTimeout time.Duration = 15 * time.Second
	readTimeout       time.Duration = 15 * time.Second
	idleTimeout       time.Duration = 30 * time.Second

	serverShutdownDeadline time.Duration = 5 * time.Second
)

var (
	errChmodSocket = errors.New("failed to change unix socket permissions")
	errChownSocket = errors.New("failed to change unix socket ownership")
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Application failed")
	}
}

// run loads the configuration, serves until SIGINT or SIGTERM, then shuts
// the server down gracefully.
func run() error {
	audit.SetDefaultLogger()

	if err := config.Global.LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	portal, err := newPortal(&config.Global)
	if err != nil {
		return fmt.Errorf("failed to set up API pipeline: %w", err)
	}

	router := router.NewRouter()
	router.DefineRoutes(portal)
	router.RegisterMiddleware()

	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		// Downloads wait on the API, so writes get the backend timeout plus slack.
		WriteTimeout: config.Global.API.BackendTimeout + readTimeout,
		IdleTimeout:  idleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := chooseListener(ctx)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()

		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownDeadline)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		return nil
	})

	if err := group.Wait(); err != nil {
		return err
	}

	log.Info().Msg("Server exited gracefully")

	return nil
}

// newPortal builds the server request pipeline and the handlers using it.
//
// Every call made while serving a request authenticates with that request's
// token cookie, and a token rotated by the API is handed back to the browser.
func newPortal(cfg *config.ServerConfig) (*routes.Portal, error) {
	var cache *requests.Cache

	if cfg.Cache.Enabled {
		var err error

		cache, err = requests.NewCache(cfg.Cache.Size, cfg.Cache.TTL, cfg.Cache.Compress)
		if err != nil {
			return nil, err
		}
	}

	backend, err := requests.NewBackend(tokenstore.NewIncoming(request_context.TokenFrom), requests.Options{
		BaseURL:        cfg.API.BackendBaseURL,
		Timeout:        cfg.API.BackendTimeout,
		AcceptLanguage: cfg.Request.AcceptLanguage,
		UserAgent:      cfg.Request.UserAgent,
		RateLimit:      cfg.Request.RateLimit,
		MaxRetries:     cfg.Request.MaxRetries,
		Cache:          cache,
		RequestID:      request_context.RequestIDFrom,
	})
	if err != nil {
		return nil, err
	}

	backend.AuthEndpoint = cfg.API.AuthEndpoint
	backend.OnRotate = request_context.RecordRotatedToken

	return &routes.Portal{
		Service:        api.NewBackend(backend, cfg.API.BackendBaseURL),
		NoticePageSize: cfg.Notices.PageSize,
	}, nil
}

func chooseListener(ctx context.Context) (net.Listener, error) {
	// Check if we should use a Unix domain socket
	if config.Global.Basic.UnixSocket != "" {
		unixAddr := config.Global.Basic.UnixSocket

		unixListener, err := (&net.ListenConfig{}).Listen(ctx, "unix", unixAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to start Unix socket listener on %v: %w", unixAddr, err)
		}

		if err = setupSocket(); err != nil {
			_ = unixListener.Close()

			return nil, err
		}

		// Assign the listener and log where we are listening
		log.Info().
			Str("address", unixAddr).
			Msg("Listening on Unix domain socket")

		return unixListener, nil
	}

	// Otherwise, fall back to TCP listener
	addr := net.JoinHostPort(config.Global.Basic.Host, config.Global.Basic.Port)

	tcpListener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start TCP listener on %v: %w", addr, err)
	}

	addr = tcpListener.Addr().String()

	// Extract the port for logging
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		_ = tcpListener.Close()

		return nil, fmt.Errorf("failed to parse listener address %q: %w", addr, err)
	}

	// Log the address and convenient URL for local development
	log.Info().
		Str("address", addr).
		Str("port", port).
		Str("url", fmt.Sprintf("http://localhost:%v/", port)).
		Msg("Listening on address")

	return tcpListener, nil
}

func setupSocket() error {
	cfg := config.Global.Basic

	if cfg.UnixSocket == "" {
		return nil
	}

	uid, gid := -1, -1

	var err error

	if cfg.UnixSocketUser != "" {
		uid, err = parseUserOrGroupID(cfg.UnixSocketUser, "user")
		if err != nil {
			return err
		}
	}

	if cfg.UnixSocketGroup != "" {
		gid, err = parseUserOrGroupID(cfg.UnixSocketGroup, "group")
		if err != nil {
			return err
		}
	}

	if uid != -1 || gid != -1 {
		if err := os.Chown(cfg.UnixSocket, uid, gid); err != nil {
			return fmt.Errorf("%w: %w", errChownSocket, err)
		}
	}

	if err := os.Chmod(cfg.UnixSocket, cfg.UnixSocketPermissions); err != nil {
		return fmt.Errorf("%w: %w", errChmodSocket, err)
	}

	return nil
}

// parseUserOrGroupID attempts to parse a user or group identifier.
//
// It first tries to convert the value to an integer. If that fails, it
// performs a system lookup for the given kind ("user" or "group").
func parseUserOrGroupID(value, kind string) (int, error) {
	// Try to parse as a numeric ID first.
	if id, err := strconv.Atoi(value); err == nil {
		return id, nil
	}

	// If parsing fails, assume it's a name and look it up.
	var idStr string

	if kind == "user" {
		u, err := user.Lookup(value)
		if err != nil {
			return -1, fmt.Errorf("failed to lookup user '%s': %w", value, err)
		}

		idStr = u.Uid
	} else { // kind == "group"
		g, err := user.LookupGroup(value)
		if err != nil {
			return -1, fmt.Errorf("failed to lookup group '%s': %w", value, err)
		}

		idStr = g.Gid
	}

	// Parse the ID from the looked-up struct.
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return -1, fmt.Errorf("failed to parse %s ID from looked-up value '%s': %w", kind, value, err)
	}

	return id, nil
}
