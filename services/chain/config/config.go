// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the explicit configuration object the engine
// components are constructed from.
//
// There is no package-level mutable configuration: every limit lives on
// a Config value passed in at construction time, so multiple engine
// instances can run with independent limits in one process.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// MaxConfigFileSize caps config files (1MB).
const MaxConfigFileSize = 1024 * 1024

// Environment overrides applied after file load. Secrets come from the
// environment, never from checked-in config files.
const (
	EnvBaseURL     = "TOOLCHAIN_BASE_URL"
	EnvModel       = "TOOLCHAIN_MODEL"
	EnvAPIKey      = "TOOLCHAIN_API_KEY"
	EnvBraveAPIKey = "TOOLCHAIN_BRAVE_API_KEY"
)

var configValidate = validator.New()

// BackendConfig configures the chat backend client.
type BackendConfig struct {
	// BaseURL is the OpenAI-style endpoint root, e.g.
	// http://localhost:8080/v1.
	BaseURL string `yaml:"base_url" validate:"required,url"`

	// Model is the model name sent with every request.
	Model string `yaml:"model" validate:"required"`

	// APIKey is the bearer token; local llama.cpp servers ignore it.
	APIKey string `yaml:"api_key"`

	// TimeoutSeconds bounds one chat request. 0 selects the client
	// default.
	TimeoutSeconds int `yaml:"timeout_seconds" validate:"gte=0,lte=600"`

	// Temperature for tool-calling turns.
	Temperature float32 `yaml:"temperature" validate:"gte=0,lte=2"`

	// MaxTokens per completion. 0 lets the backend default apply.
	MaxTokens int `yaml:"max_tokens" validate:"gte=0"`

	// RequestIntervalMS spaces consecutive backend calls. 0 disables
	// the limiter.
	RequestIntervalMS int `yaml:"request_interval_ms" validate:"gte=0"`
}

// ChainConfig configures conversation state and the turn loop.
type ChainConfig struct {
	// MaxChainDepth is the depth at which the chain counter resets.
	MaxChainDepth int `yaml:"max_chain_depth" validate:"gte=0,lte=100"`

	// MaxHistoryMessages triggers history compression.
	MaxHistoryMessages int `yaml:"max_history_messages" validate:"gte=0,lte=1000"`

	// KeepRecent is the verbatim tail kept by compression.
	KeepRecent int `yaml:"keep_recent" validate:"gte=0,lte=100"`

	// MaxIterationsPerTurn bounds backend round-trips per user turn.
	MaxIterationsPerTurn int `yaml:"max_iterations_per_turn" validate:"gte=0,lte=50"`

	// ResultCacheSize bounds the recall buffer.
	ResultCacheSize int `yaml:"result_cache_size" validate:"gte=0,lte=100"`

	// ResetMode is "counter_only" or "clear_history".
	ResetMode string `yaml:"reset_mode" validate:"omitempty,oneof=counter_only clear_history"`
}

// ResearchConfig configures the phase pipeline.
type ResearchConfig struct {
	// BraveAPIKey is the Brave Search subscription token.
	BraveAPIKey string `yaml:"brave_api_key"`

	// MaxDepth is 1 (quick), 2 (moderate), or 3 (deep).
	MaxDepth int `yaml:"max_depth" validate:"gte=0,lte=3"`

	// MaxStepsPerPhase bounds each phase's turn loop.
	MaxStepsPerPhase int `yaml:"max_steps_per_phase" validate:"gte=0,lte=20"`
}

// Config is the full engine configuration.
type Config struct {
	Backend  BackendConfig  `yaml:"backend"`
	Chain    ChainConfig    `yaml:"chain"`
	Research ResearchConfig `yaml:"research"`
}

// Default returns the configuration for a local LFM2 tool server.
func Default() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL:        "http://localhost:8080/v1",
			Model:          "LFM2-1.2B-Tool",
			TimeoutSeconds: 30,
			Temperature:    0.1,
			MaxTokens:      1024,
		},
		Chain: ChainConfig{
			MaxChainDepth:        5,
			MaxHistoryMessages:   20,
			KeepRecent:           10,
			MaxIterationsPerTurn: 10,
			ResultCacheSize:      5,
			ResetMode:            "counter_only",
		},
		Research: ResearchConfig{
			MaxDepth:         3,
			MaxStepsPerPhase: 5,
		},
	}
}

// Load reads a YAML config file over the defaults and applies
// environment overrides.
//
// Description:
//
//	Missing file fields keep their default values. The file is size
//	capped; environment variables win over both file and defaults.
//	The result is validated before returning.
//
// Inputs:
//
//	path - YAML file path. Empty means defaults plus environment.
//
// Outputs:
//
//	Config - The merged, validated configuration.
//	error - Non-nil on unreadable file, oversized file, bad YAML, or
//	validation failure.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return Config{}, fmt.Errorf("Load: stat %s: %w", path, err)
		}
		if info.Size() > MaxConfigFileSize {
			return Config{}, fmt.Errorf("Load: config file too large: %d bytes (max %d)",
				info.Size(), MaxConfigFileSize)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("Load: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("Load: unmarshaling %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays environment overrides onto a config.
func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		cfg.Backend.Model = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.Backend.APIKey = v
	}
	if v := os.Getenv(EnvBraveAPIKey); v != "" {
		cfg.Research.BraveAPIKey = v
	}
}

// Validate checks the struct tags.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("Validate: %w", err)
	}
	return nil
}
