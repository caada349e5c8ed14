// Flowatlas - Origin-Destination Flow Analytics and Visualization
// Copyright 2026 Flowatlas Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/flowatlas/flowatlas

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/flowatlas/config.yaml",
	"/etc/flowatlas/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "FLOWATLAS_CONFIG"

// envPrefix is stripped from environment variable names before mapping.
const envPrefix = "FLOWATLAS_"

// defaultConfig returns the built-in defaults. They are applied first,
// then overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Engine: EngineConfig{
			ClusterRadiusPx: 40,
			ClusterMaxZoom:  18,
			MaxTopFlows:     5000,
			ViewportPadPx:   64,
			ViewCacheSize:   128,
			ViewCacheTTL:    0,
		},
		API: APIConfig{
			MaxDatasetBytes:  64 << 20, // 64MB
			MaxSearchResults: 50,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// envMappings translates environment variable names (after stripping the
// FLOWATLAS_ prefix and lowercasing) to koanf paths. Explicit mappings
// keep multi-word field names unambiguous.
var envMappings = map[string]string{
	"server_host":                "server.host",
	"server_port":                "server.port",
	"server_read_timeout":        "server.read_timeout",
	"server_write_timeout":       "server.write_timeout",
	"server_idle_timeout":        "server.idle_timeout",
	"server_shutdown_timeout":    "server.shutdown_timeout",
	"server_cors_origins":        "server.cors_origins",
	"server_rate_limit_reqs":     "server.rate_limit_reqs",
	"server_rate_limit_window":   "server.rate_limit_window",
	"server_rate_limit_disabled": "server.rate_limit_disabled",

	"engine_cluster_radius_px": "engine.cluster_radius_px",
	"engine_cluster_max_zoom":  "engine.cluster_max_zoom",
	"engine_max_top_flows":     "engine.max_top_flows",
	"engine_viewport_pad_px":   "engine.viewport_pad_px",
	"engine_view_cache_size":   "engine.view_cache_size",
	"engine_view_cache_ttl":    "engine.view_cache_ttl",

	"api_max_dataset_bytes":  "api.max_dataset_bytes",
	"api_max_search_results": "api.max_search_results",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// Load builds the configuration from layered sources, in increasing
// priority: defaults, optional YAML file, environment variables. The
// result is validated before it is returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// CORS origins arrive as a comma-separated string from env.
	if raw := k.String("server.cors_origins"); raw != "" && strings.Contains(raw, ",") {
		parts := strings.Split(raw, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if err := k.Set("server.cors_origins", parts); err != nil {
			return nil, fmt.Errorf("failed to split cors origins: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps FLOWATLAS_SERVER_PORT to server.port and so on.
// Unmapped variables are dropped so unrelated environment noise never
// lands in the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
