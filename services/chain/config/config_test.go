// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chain.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_Validates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
backend:
  base_url: http://10.0.0.5:8080/v1
  model: LFM2-1.2B-Tool
  temperature: 0.2
chain:
  max_chain_depth: 8
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "http://10.0.0.5:8080/v1", cfg.Backend.BaseURL)
	require.Equal(t, 8, cfg.Chain.MaxChainDepth)
	// Untouched fields keep their defaults.
	require.Equal(t, 10, cfg.Chain.MaxIterationsPerTurn)
	require.Equal(t, 30, cfg.Backend.TimeoutSeconds)
}

func TestLoad_EnvWinsOverFile(t *testing.T) {
	path := writeConfig(t, `
backend:
  base_url: http://from-file:8080/v1
  model: from-file
`)
	t.Setenv(EnvModel, "from-env")
	t.Setenv(EnvBraveAPIKey, "brave-secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "from-env", cfg.Backend.Model)
	require.Equal(t, "http://from-file:8080/v1", cfg.Backend.BaseURL)
	require.Equal(t, "brave-secret", cfg.Research.BraveAPIKey)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, `
backend:
  base_url: "not a url"
  model: m
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_RejectsBadResetMode(t *testing.T) {
	path := writeConfig(t, `
chain:
  reset_mode: sometimes
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default().Chain, cfg.Chain)
}
