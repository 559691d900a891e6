// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"bufio"
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// dotEnvPaths lists where a .env file is looked for: the working directory,
// then the directory of the binary.
func dotEnvPaths() []string {
	var paths []string

	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	} else {
		log.Warn().Err(err).Msg("Could not get current working directory")
	}

	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), ".env"))
	}

	return paths
}

// useDotEnv exports the variables of the first .env file found in paths.
// Variables already present in the environment win over the file.
// A missing file is not an error.
func useDotEnv(paths ...string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path) // #nosec G304 -- fixed .env locations
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}

		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Could not read .env file")

			continue
		}

		vars, badLines := parseDotEnv(data)
		for _, line := range badLines {
			log.Warn().Str("path", path).Int("line", line).Msg("Ignoring malformed line in .env file")
		}

		for key, value := range vars {
			if os.Getenv(key) != "" {
				continue
			}

			if err := os.Setenv(key, value); err != nil {
				return err
			}
		}

		log.Info().Str("path", path).Int("variables", len(vars)).Msg("Loaded configuration from .env file")

		return nil
	}

	log.Info().Strs("paths", paths).Msg("No .env file found, skipping")

	return nil
}

// parseDotEnv reads KEY=VALUE lines. Blank lines and # comments are skipped,
// an "export " prefix is allowed, and one pair of matching quotes around the
// value is removed. It also returns the 1-based numbers of lines it could
// not parse.
func parseDotEnv(data []byte) (map[string]string, []int) {
	vars := make(map[string]string)

	var badLines []int

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for lineNumber := 1; scanner.Scan(); lineNumber++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(strings.TrimPrefix(line, "export "), "=")
		key = strings.TrimSpace(key)

		if !ok || key == "" || strings.ContainsAny(key, " \t") {
			badLines = append(badLines, lineNumber)

			continue
		}

		vars[key] = unquote(strings.TrimSpace(value))
	}

	return vars, badLines
}

func unquote(value string) string {
	if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
		return value[1 : len(value)-1]
	}

	return value
}
