// Flowatlas - Origin-Destination Flow Analytics and Visualization
// Copyright 2026 Flowatlas Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/flowatlas/flowatlas

// Package config loads and validates application configuration from
// layered sources: built-in defaults, an optional YAML file, and
// environment variables, in increasing priority. Config is immutable
// after Load and safe for concurrent reads.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Engine  EngineConfig  `koanf:"engine"`
	API     APIConfig     `koanf:"api"`
	Logging LoggingConfig `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"min=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"min=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=0"`

	// CORSOrigins lists allowed origins; "*" allows any.
	CORSOrigins []string `koanf:"cors_origins"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"min=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"min=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// Addr returns the host:port the server binds to.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// EngineConfig controls hierarchy building and view evaluation.
type EngineConfig struct {
	// ClusterRadiusPx is the screen-space merge radius in pixels.
	ClusterRadiusPx float64 `koanf:"cluster_radius_px" validate:"min=1"`

	// ClusterMaxZoom is the zoom where every location is its own node.
	ClusterMaxZoom int `koanf:"cluster_max_zoom" validate:"min=1,max=24"`

	// MaxTopFlows caps the flows returned per view.
	MaxTopFlows int `koanf:"max_top_flows" validate:"min=1"`

	// ViewportPadPx expands the viewport cull rectangle on every side.
	ViewportPadPx int `koanf:"viewport_pad_px" validate:"min=0"`

	ViewCacheSize int           `koanf:"view_cache_size" validate:"min=1"`
	ViewCacheTTL  time.Duration `koanf:"view_cache_ttl" validate:"min=0"`
}

// APIConfig holds request handling limits.
type APIConfig struct {
	// MaxDatasetBytes bounds the accepted dataset upload body size.
	MaxDatasetBytes int64 `koanf:"max_dataset_bytes" validate:"min=1"`

	// MaxSearchResults caps search endpoint responses.
	MaxSearchResults int `koanf:"max_search_results" validate:"min=1"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Validate checks field constraints and cross-field consistency.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if !c.Server.RateLimitDisabled && c.Server.RateLimitReqs > 0 && c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("server.rate_limit_window must be positive when rate limiting is enabled")
	}
	return nil
}
