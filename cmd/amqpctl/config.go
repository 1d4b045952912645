package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// toolConfig holds amqpctl process settings. Connection settings live in the
// client config file it points to.
type toolConfig struct {
	ClientConfig       string
	AdminAddr          string
	Heartbeat          time.Duration
	MaxConnectAttempts *int
	CorsOrigins        []string
}

type fileConfig struct {
	ClientConfig       string   `toml:"client_config"`
	AdminAddr          string   `toml:"admin_addr"`
	Heartbeat          string   `toml:"heartbeat"`
	MaxConnectAttempts int      `toml:"max_connect_attempts"`
	CorsOrigins        []string `toml:"cors_origins"`
}

func defaultToolConfig() toolConfig {
	return toolConfig{
		ClientConfig: "client.toml",
		AdminAddr:    ":9200",
	}
}

// loadToolConfig reads path; client_config is resolved against the directory
// of path when relative.
func loadToolConfig(path string) (toolConfig, error) {
	cfg := defaultToolConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return toolConfig{}, fmt.Errorf("load amqpctl config: %w", err)
	}

	if meta.IsDefined("client_config") {
		if v := strings.TrimSpace(raw.ClientConfig); v != "" {
			cfg.ClientConfig = v
		}
	}

	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}

	if meta.IsDefined("heartbeat") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Heartbeat))
		if err != nil {
			return toolConfig{}, fmt.Errorf("parse heartbeat: %w", err)
		}
		if d < 0 {
			return toolConfig{}, fmt.Errorf("heartbeat must not be negative")
		}
		cfg.Heartbeat = d
	}

	if meta.IsDefined("max_connect_attempts") {
		if raw.MaxConnectAttempts < 0 {
			return toolConfig{}, fmt.Errorf("max_connect_attempts must be >= 0")
		}
		n := raw.MaxConnectAttempts
		cfg.MaxConnectAttempts = &n
	}

	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeOrigins(raw.CorsOrigins)
	}

	if !filepath.IsAbs(cfg.ClientConfig) {
		cfg.ClientConfig = filepath.Join(filepath.Dir(path), cfg.ClientConfig)
	}
	return cfg, nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
