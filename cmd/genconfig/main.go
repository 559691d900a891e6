// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

// Command genconfig writes the example configuration files under deploy/.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/natefinch/atomic"
	"github.com/rs/zerolog/log"

	"codeberg.org/advisoryportal/portalfe/config"
	"codeberg.org/advisoryportal/portalfe/core/audit"
)

const (
	envOutputFile  = "deploy/.env.example"
	yamlOutputFile = "deploy/config.yaml.example"

	envFileHeader = `# portalfe configuration (via environment variables)
#
# Copy this file to .env and customize the values below.
#
# This file was auto-generated using go run ./cmd/genconfig.

`
	yamlFileHeader = `# portalfe configuration (via configuration file)
#
# Copy this file to config.yaml and customize the values below.
#
# This file was auto-generated using go run ./cmd/genconfig.
`
	proxySettingsComment = `## Network proxy settings
## ref: https://pkg.go.dev/net/http#ProxyFromEnvironment
# HTTPS_PROXY=
# HTTP_PROXY=`
)

// essentialVars are written uncommented in the .env example.
var essentialVars = map[string]bool{
	"PORTAL_HOST":             true,
	"PORTAL_PORT":             true,
	"PORTAL_BACKEND_BASE_URL": true,
}

// essentialYAMLKeys are left uncommented in the YAML example.
var essentialYAMLKeys = []string{"host:", "port:", "backendBaseUrl:"}

func main() {
	audit.SetDefaultLogger()

	cfg := &config.ServerConfig{}
	cfg.SetDefaults()

	writeFile(envOutputFile, renderEnv(cfg))

	yamlContent, err := renderYAML(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to marshal config to YAML")
	}

	writeFile(yamlOutputFile, yamlContent)
}

func writeFile(path, content string) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to create output directory")
	}

	if err := atomic.WriteFile(path, strings.NewReader(content)); err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to write example file")
	}

	log.Info().Str("path", path).Msg("Successfully generated example file")
}

// renderEnv lists every environment variable of cfg, grouped by section.
func renderEnv(cfg *config.ServerConfig) string {
	var sb strings.Builder

	sb.WriteString(envFileHeader)

	section := ""

	for _, envVar := range cfg.EnvVars() {
		if envVar.Section != section {
			if section != "" {
				sb.WriteString("\n")
			}

			section = envVar.Section
			fmt.Fprintf(&sb, "## %s\n", section)
		}

		writeEnvLine(&sb, envVar)
	}

	sb.WriteString("\n" + proxySettingsComment + "\n")

	return sb.String()
}

func writeEnvLine(sb *strings.Builder, envVar config.EnvVar) {
	value := envVar.Value()

	switch {
	case essentialVars[envVar.Name]:
		fmt.Fprintf(sb, "%s=\"%v\"\n", envVar.Name, value)
	case envVar.Kind() == reflect.Slice:
		fmt.Fprintf(sb, "# %s=%s\n", envVar.Name, strings.Join(value.([]string), ","))
	case value == "":
		// Leave the value out to prompt for one.
		fmt.Fprintf(sb, "# %s=\n", envVar.Name)
	default:
		fmt.Fprintf(sb, "# %s=%v\n", envVar.Name, value)
	}
}

// renderYAML marshals cfg and comments out every value except the essential ones.
func renderYAML(cfg *config.ServerConfig) (string, error) {
	var yamlContent strings.Builder

	encoderOpts := []yaml.EncodeOption{
		config.GetDurationEncoderOption(),
		yaml.Indent(2),
	}
	if err := yaml.NewEncoder(&yamlContent, encoderOpts...).Encode(cfg); err != nil {
		return "", err
	}

	var sb strings.Builder

	sb.WriteString(yamlFileHeader)

	for line := range strings.SplitSeq(yamlContent.String(), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		// Top-level keys are section headers.
		if !strings.HasPrefix(line, " ") {
			fmt.Fprintf(&sb, "\n%s\n", line)

			continue
		}

		if isEssentialYAMLKey(trimmed) {
			sb.WriteString(line + "\n")

			continue
		}

		indentSize := len(line) - len(strings.TrimLeft(line, " "))
		fmt.Fprintf(&sb, "%s# %s\n", strings.Repeat(" ", indentSize), trimmed)
	}

	return sb.String(), nil
}

func isEssentialYAMLKey(line string) bool {
	for _, key := range essentialYAMLKeys {
		if strings.HasPrefix(line, key) {
			return true
		}
	}

	return false
}
