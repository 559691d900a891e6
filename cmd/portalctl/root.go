// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"codeberg.org/advisoryportal/portalfe/config"
	"codeberg.org/advisoryportal/portalfe/core/api"
	"codeberg.org/advisoryportal/portalfe/core/apierr"
	"codeberg.org/advisoryportal/portalfe/core/audit"
	"codeberg.org/advisoryportal/portalfe/core/requests"
	"codeberg.org/advisoryportal/portalfe/core/tokenstore"
)

// app holds the flags shared by every command and what is built from them.
type app struct {
	baseURL     string
	sessionPath string
	timeout     time.Duration
	tokenTTL    time.Duration
	verbose     bool

	store *tokenstore.FileJar
	svc   *api.Service
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "portalctl",
		Short:         "Call the advisory portal API",
		Version:       config.BuildVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.open()
		},
	}

	defaults := clientDefaults()

	root.PersistentFlags().StringVar(&a.baseURL, "base-url", defaults.API.ClientBaseURL, "API base URL")
	root.PersistentFlags().StringVar(&a.sessionPath, "session", defaultSessionPath(), "Session file holding the token")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", defaults.API.ClientTimeout, "Request timeout")
	root.PersistentFlags().DurationVar(&a.tokenTTL, "token-ttl", defaults.Token.MaxAge, "Lifetime of a stored token")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log every request")

	root.AddCommand(newTokenCmd(a))
	root.AddCommand(newWhoamiCmd(a))
	root.AddCommand(newNoticesCmd(a))
	root.AddCommand(newGetCmd(a))
	root.AddCommand(newPostCmd(a))
	root.AddCommand(newPutCmd(a))
	root.AddCommand(newDeleteCmd(a))
	root.AddCommand(newDownloadCmd(a))
	root.AddCommand(newViewCmd(a))

	return root
}

// printError reports err on the command's error stream, with a hint when
// the token has expired.
func printError(cmd *cobra.Command, err error) {
	cmd.PrintErrf("Error: %v\n", err)

	if errors.Is(err, apierr.ErrTokenExpired) {
		cmd.PrintErrln(`The token has expired. Set a new one with "portalctl token set".`)
	}
}

// open builds the token store and the client pipeline.
func (a *app) open() error {
	audit.SetDefaultLogger()

	if err := ensureDir(a.sessionPath); err != nil {
		return err
	}

	level := zerolog.WarnLevel
	if a.verbose {
		level = zerolog.DebugLevel
	}

	zerolog.SetGlobalLevel(level)

	store, err := tokenstore.LoadFileJar(a.sessionPath, a.baseURL, a.tokenTTL)
	if err != nil {
		return err
	}

	client, err := requests.NewClient(store, requests.Options{
		BaseURL:   a.baseURL,
		Timeout:   a.timeout,
		Jar:       store.CookieJar(),
		UserAgent: "portalctl/" + config.BuildVersion,
	}, a.tokenTTL)
	if err != nil {
		return err
	}

	a.store = store
	a.svc = api.New(client, api.WithBaseURL(a.baseURL))

	log.Debug().Str("base_url", a.baseURL).Str("session", a.sessionPath).Msg("Client ready")

	return nil
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}

	return filepath.Join(dir, "portalfe", "session.yaml")
}

// clientDefaults returns the configuration defaults with PORTAL_*
// environment variables applied, so the CLI and the server share
// PORTAL_CLIENT_BASE_URL, PORTAL_CLIENT_TIMEOUT and PORTAL_TOKEN_MAX_AGE.
func clientDefaults() config.ServerConfig {
	var cfg config.ServerConfig

	cfg.SetDefaults()

	if err := cfg.ReadEnv(); err != nil {
		log.Warn().Err(err).Msg("Ignoring invalid environment configuration")

		cfg.SetDefaults()
	}

	return cfg
}

// ensureDir creates the parent directory of path.
func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}

	return nil
}
