// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package xdg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDir(t *testing.T) {
	t.Run("honors XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		got, err := ConfigDir()
		require.NoError(t, err)
		assert.Equal(t, "/custom/config/warden", got)
	})

	t.Run("falls back to the home directory", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("HOME", "/home/tester")
		got, err := ConfigDir()
		require.NoError(t, err)
		assert.Equal(t, "/home/tester/.config/warden", got)
	})
}

func TestRuntimeDir(t *testing.T) {
	t.Run("honors XDG_RUNTIME_DIR", func(t *testing.T) {
		t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
		got, err := RuntimeDir()
		require.NoError(t, err)
		assert.Equal(t, "/run/user/1000/warden", got)
	})

	t.Run("falls back under the state directory", func(t *testing.T) {
		t.Setenv("XDG_RUNTIME_DIR", "")
		t.Setenv("XDG_STATE_HOME", "/var/state")
		got, err := RuntimeDir()
		require.NoError(t, err)
		assert.Equal(t, "/var/state/warden/run", got)
	})
}

func TestDefaultConfigFile(t *testing.T) {
	t.Run("empty when no file exists", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		assert.Empty(t, DefaultConfigFile())
	})

	t.Run("returns the conventional path when present", func(t *testing.T) {
		base := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", base)
		dir := filepath.Join(base, "warden")
		require.NoError(t, EnsureDir(dir))
		path := filepath.Join(dir, "warden.yaml")
		require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o600))

		assert.Equal(t, path, DefaultConfigFile())
	})
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "run")
	require.NoError(t, EnsureDir(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())

	// Idempotent on an existing directory.
	require.NoError(t, EnsureDir(dir))
}
