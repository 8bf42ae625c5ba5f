// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

// Package xdg resolves XDG Base Directory paths for AuthCore.
package xdg

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

const appName = "authcore"

// ConfigFileName is the file DefaultConfigFile looks for.
const ConfigFileName = "config.yaml"

// LookupEnv matches os.LookupEnv.
type LookupEnv func(key string) (string, bool)

// ConfigDir returns the XDG config directory for authcore.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir(lookupEnv LookupEnv) string {
	if base, ok := lookupEnv("XDG_CONFIG_HOME"); ok && base != "" {
		return filepath.Join(base, appName)
	}
	home, _ := lookupEnv("HOME")
	return filepath.Join(home, ".config", appName)
}

// DefaultConfigFile returns ConfigDir/config.yaml if it exists, or "" when
// there is no such file.
func DefaultConfigFile(lookupEnv LookupEnv) (string, error) {
	path := filepath.Join(ConfigDir(lookupEnv), ConfigFileName)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err //nolint:wrapcheck // caller adds context
	}
	if info.IsDir() {
		return "", nil
	}
	return path, nil
}
