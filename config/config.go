// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog/log"
)

// Global exposes the server configuration.
var Global ServerConfig

// ServerConfig holds the application configuration.
type ServerConfig struct {
	Build buildInfo `yaml:"-"`

	Basic struct {
		Host                     string      `env:"PORTAL_HOST,overwrite" yaml:"host"`
		Port                     string      `env:"PORTAL_PORT,overwrite" yaml:"port"`
		UnixSocket               string      `env:"PORTAL_UNIXSOCKET" yaml:"unixSocket"`
		RawUnixSocketPermissions string      `env:"PORTAL_UNIXSOCKET_PERMISSIONS" yaml:"unixSocketPermissions"`
		UnixSocketPermissions    os.FileMode `yaml:"-"`
		UnixSocketUser           string      `env:"PORTAL_UNIXSOCKET_USER" yaml:"unixSocketUser"`
		UnixSocketGroup          string      `env:"PORTAL_UNIXSOCKET_GROUP" yaml:"unixSocketGroup"`
	} `yaml:"basic"`

	// API holds the upstream endpoints. Interactive clients and server code
	// reach the API through different hosts.
	API struct {
		ClientBaseURL  string        `env:"PORTAL_CLIENT_BASE_URL,overwrite,url" yaml:"clientBaseUrl"`
		BackendBaseURL string        `env:"PORTAL_BACKEND_BASE_URL,overwrite,url" yaml:"backendBaseUrl"`
		ClientTimeout  time.Duration `env:"PORTAL_CLIENT_TIMEOUT,overwrite,positive" yaml:"clientTimeout"`
		BackendTimeout time.Duration `env:"PORTAL_BACKEND_TIMEOUT,overwrite,positive" yaml:"backendTimeout"`
		AuthEndpoint   string        `env:"PORTAL_AUTH_ENDPOINT,overwrite" yaml:"authEndpoint"`
	} `yaml:"api"`

	Token struct {
		MaxAge time.Duration `env:"PORTAL_TOKEN_MAX_AGE,overwrite,positive" yaml:"maxAge"`
	} `yaml:"token"`

	Cache struct {
		Enabled  bool          `env:"PORTAL_CACHE,overwrite" yaml:"enabled"`
		Size     int           `env:"PORTAL_CACHE_SIZE,overwrite,positive" yaml:"cacheSize"`
		TTL      time.Duration `env:"PORTAL_CACHE_TTL,overwrite,positive" yaml:"cacheTTL"`
		Compress bool          `env:"PORTAL_CACHE_COMPRESS,overwrite" yaml:"compress"`
	} `yaml:"cache"`

	Request struct {
		AcceptLanguage string  `env:"PORTAL_ACCEPTLANGUAGE,overwrite" yaml:"acceptLanguage"`
		UserAgent      string  `env:"PORTAL_USER_AGENT,overwrite" yaml:"userAgent"`
		RateLimit      float64 `env:"PORTAL_RATE_LIMIT,overwrite,nonnegative" yaml:"rateLimit"`
		MaxRetries     int     `env:"PORTAL_MAX_RETRIES,overwrite,nonnegative" yaml:"maxRetries"`
	} `yaml:"request"`

	Notices struct {
		PageSize int `env:"PORTAL_NOTICES_PAGE_SIZE,overwrite,positive" yaml:"pageSize"`
	} `yaml:"notices"`

	Instance struct {
		StartingTime string `yaml:"-"`
	} `yaml:"-"`

	Development struct {
		InDevelopment        bool   `env:"PORTAL_DEV" yaml:"inDevelopment"`
		SaveResponses        bool   `env:"PORTAL_SAVE_RESPONSES,overwrite" yaml:"saveResponses"`
		ResponseSaveLocation string `env:"PORTAL_RESPONSE_SAVE_LOCATION,overwrite" yaml:"responseSaveLocation"`
	} `yaml:"development"`

	Log struct {
		Level   string   `env:"PORTAL_LOG_LEVEL,overwrite" yaml:"logLevel"`
		Outputs []string `env:"PORTAL_LOG_OUTPUTS,overwrite" yaml:"logOutputs"`
		Format  string   `env:"PORTAL_LOG_FORMAT,overwrite" yaml:"logFormat"`
	} `yaml:"log"`
}

// LoadConfig loads the configuration from various sources.
func (cfg *ServerConfig) LoadConfig() error {
	parsedConfigFlagValue := parseCommandLineArgs()

	// Check if the -config flag was explicitly set by the user.
	configFlagUserSet := false

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			configFlagUserSet = true
		}
	})

	return cfg.load(resolveConfigPath(parsedConfigFlagValue, configFlagUserSet))
}

// resolveConfigPath picks the YAML file to read, in order of precedence:
// the -config flag, PORTAL_CONFIGFILE, then ./config.yaml with a fallback to
// ./config.yml.
func resolveConfigPath(flagValue string, flagSet bool) string {
	if flagSet {
		return flagValue
	}

	if envVar := os.Getenv("PORTAL_CONFIGFILE"); envVar != "" {
		return envVar
	}

	if _, err := os.Stat(flagValue); os.IsNotExist(err) {
		ymlPath := "./config.yml"
		if _, statErr := os.Stat(ymlPath); statErr == nil {
			return ymlPath
		}
	}

	return flagValue
}

// load runs every configuration stage against the YAML file at configFilePath.
func (cfg *ServerConfig) load(configFilePath string) error {
	cfg.SetDefaults()

	cfg.Build.load()

	cfg.Instance.StartingTime = time.Now().UTC().Format("2006-01-02 15:04")

	if err := cfg.readYAML(configFilePath); err != nil {
		return fmt.Errorf("error loading YAML config: %w", err)
	}

	if err := useDotEnv(dotEnvPaths()...); err != nil {
		return fmt.Errorf("error using .env file: %w", err)
	}

	if err := cfg.ReadEnv(); err != nil {
		return fmt.Errorf("error loading environment variables: %w", err)
	}

	if err := cfg.validateAndSet(); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	if err := cfg.setupAudit(); err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	cfg.print()

	// Heuristically check for containerized environment and warn if host is not a wildcard address.
	if isContainerized() && cfg.Basic.UnixSocket == "" && cfg.Basic.Host != "0.0.0.0" && cfg.Basic.Host != "::" {
		log.Warn().
			Str("host", cfg.Basic.Host).
			Msg("Running in a containerized environment but host is not a wildcard address (e.g., '0.0.0.0' or '::'). This may prevent the service from being accessible outside the container.")
	}

	return nil
}

var (
	skippedPathPrefixes    = []string{"/healthz"}
	devSkippedPathPrefixes = []string{"/debug/"}
)

// ShouldSkipServerLogging determines if a request should bypass the logging middleware.
func (cfg *ServerConfig) ShouldSkipServerLogging(path string) bool {
	for _, prefix := range skippedPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}

	if cfg.Development.InDevelopment {
		for _, prefix := range devSkippedPathPrefixes {
			if strings.HasPrefix(path, prefix) {
				return true
			}
		}
	}

	return false
}

// isContainerized checks for common indicators of a containerized environment.
//
// This is a heuristic and may not be 100% accurate.
func isContainerized() bool {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true
	}

	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}

	if _, err := os.Stat("/.containerenv"); err == nil {
		return true
	}

	// #nosec G304 -- We are checking for the existence and content of a well-known system file for heuristics.
	cgroup, err := os.ReadFile("/proc/self/cgroup")
	if err == nil {
		content := string(cgroup)

		return strings.Contains(content, "docker") ||
			strings.Contains(content, "kubepods") ||
			strings.Contains(content, "containerd") ||
			strings.Contains(content, "lxc") ||
			strings.Contains(content, "crio") ||
			strings.Contains(content, ".machine")
	}

	return false
}

// GetDurationEncoderOption returns a YAML encoder option that marshals
// time.Duration into a human-readable string format (e.g., "30m", "1h").
func GetDurationEncoderOption() yaml.EncodeOption {
	return yaml.CustomMarshaler[time.Duration](
		func(d time.Duration) ([]byte, error) {
			return yaml.Marshal(d.String())
		},
	)
}
