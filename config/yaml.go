// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog/log"
)

// readYAML overlays the YAML file at path onto cfg. An empty path or a
// missing file leaves cfg unchanged. Unknown keys are rejected so that a
// misspelt setting does not silently keep its default.
func (cfg *ServerConfig) readYAML(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path) // #nosec G304 -- only loading a config file
	if errors.Is(err, fs.ErrNotExist) {
		log.Info().Str("path", path).Msg("No YAML configuration file found, skipping")

		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to read configuration file %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data), yaml.DisallowUnknownField())
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse %s:\n%s", path, yaml.FormatError(err, false, true))
	}

	log.Info().Str("path", path).Msg("Loaded configuration file")

	return nil
}
