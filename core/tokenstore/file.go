// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package tokenstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/natefinch/atomic"
	"github.com/rs/zerolog/log"
)

// session is the on-disk form of a persisted token.
type session struct {
	Token   string    `yaml:"token"`
	Expires time.Time `yaml:"expires"`
}

// FileJar is a Jar whose token survives process restarts.
//
// Every Write is flushed to path; LoadFileJar restores an unexpired token.
type FileJar struct {
	*Jar

	path string
}

// LoadFileJar opens the session file at path, creating an empty jar if it
// does not exist yet.
func LoadFileJar(path, baseURL string, defaultTTL time.Duration) (*FileJar, error) {
	jar, err := NewJar(baseURL, defaultTTL)
	if err != nil {
		return nil, err
	}

	fj := &FileJar{Jar: jar, path: path}

	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the user's own configuration
	if errors.Is(err, os.ErrNotExist) {
		return fj, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read session file %s: %w", path, err)
	}

	var s session
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session file %s: %w", path, err)
	}

	if remaining := time.Until(s.Expires); s.Token != "" && remaining > 0 {
		jar.Write(context.Background(), s.Token, remaining)
	}

	return fj, nil
}

func (f *FileJar) Write(ctx context.Context, token string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = f.defaultTTL
	}

	f.Jar.Write(ctx, token, ttl)

	if err := f.save(session{Token: token, Expires: time.Now().Add(ttl)}); err != nil {
		log.Warn().Err(err).Str("path", f.path).Msg("Failed to persist token")
	}
}

// Clear removes the token from the jar and from disk.
func (f *FileJar) Clear() error {
	f.Jar.Clear()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file %s: %w", f.path, err)
	}

	return nil
}

func (f *FileJar) save(s session) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if err := atomic.WriteFile(f.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	return os.Chmod(f.path, sessionFilePermissions)
}

const sessionFilePermissions = 0o600
