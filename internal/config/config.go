package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/amqpwire/internal/protocol/session"
	"github.com/pelletier/go-toml/v2"
)

// ClientConfig is the on-disk client file.
type ClientConfig struct {
	Name               string        `toml:"name"`
	Address            string        `toml:"address"`
	MaxConnectAttempts int           `toml:"max_connect_attempts"`
	Session            SessionConfig `toml:"session"`
}

// SessionConfig mirrors session.Config with durations as strings ("250ms").
type SessionConfig struct {
	ConnectTimeout   string        `toml:"connect_timeout"`
	HandshakeTimeout string        `toml:"handshake_timeout"`
	WriteTimeout     string        `toml:"write_timeout"`
	Heartbeat        string        `toml:"heartbeat"`
	FrameMax         uint32        `toml:"frame_max"`
	Queue            QueueConfig   `toml:"queue"`
	Backoff          BackoffConfig `toml:"backoff"`
}

type QueueConfig struct {
	MaxPending int    `toml:"max_pending"`
	Overflow   string `toml:"overflow"`
}

type BackoffConfig struct {
	Initial    string  `toml:"initial"`
	Max        string  `toml:"max"`
	Multiplier float64 `toml:"multiplier"`
	Jitter     *bool   `toml:"jitter"`
}

func LoadClientConfig(path string) (ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	cfg, err := ParseClientConfig(data)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	return cfg, nil
}

// ParseClientConfig decodes TOML bytes, fills defaults and validates.
func ParseClientConfig(data []byte) (ClientConfig, error) {
	var cfg ClientConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("config parse failed: %w", err)
	}
	if cfg.Name == "" {
		cfg.Name = "amqpctl"
	}
	if err := ValidateClientConfig(cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func ValidateClientConfig(cfg ClientConfig) error {
	if strings.TrimSpace(cfg.Address) == "" {
		return fmt.Errorf("client config missing address")
	}
	if cfg.MaxConnectAttempts < 0 {
		return fmt.Errorf("client config max_connect_attempts must be >= 0")
	}
	sc, err := cfg.Session.Resolve()
	if err != nil {
		return err
	}
	if err := sc.Validate(); err != nil {
		return fmt.Errorf("session invalid: %w", err)
	}
	return nil
}

// Resolve converts the file form into a session.Config. Unset fields take
// session defaults; an explicit "0" disables write timeout and heartbeat.
func (c SessionConfig) Resolve() (session.Config, error) {
	out := session.DefaultConfig()
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"connect_timeout", c.ConnectTimeout, &out.ConnectTimeout},
		{"handshake_timeout", c.HandshakeTimeout, &out.HandshakeTimeout},
		{"write_timeout", c.WriteTimeout, &out.WriteTimeout},
		{"heartbeat", c.Heartbeat, &out.HeartbeatInterval},
		{"backoff.initial", c.Backoff.Initial, &out.Backoff.InitialDelay},
		{"backoff.max", c.Backoff.Max, &out.Backoff.MaxDelay},
	}
	for _, f := range fields {
		if err := parseDuration(f.name, f.raw, f.dst); err != nil {
			return session.Config{}, err
		}
	}
	if c.FrameMax != 0 {
		out.FrameMax = c.FrameMax
	}
	out.Queue.MaxPending = c.Queue.MaxPending
	if c.Queue.Overflow != "" {
		out.Queue.Overflow = session.OverflowPolicy(strings.ToLower(strings.TrimSpace(c.Queue.Overflow)))
	}
	if c.Backoff.Multiplier != 0 {
		out.Backoff.Multiplier = c.Backoff.Multiplier
	}
	if c.Backoff.Jitter != nil {
		out.Backoff.Jitter = *c.Backoff.Jitter
	}
	return out, nil
}

// SessionConfig returns the resolved session settings. The config must have
// passed ValidateClientConfig.
func (c ClientConfig) SessionConfig() session.Config {
	sc, _ := c.Session.Resolve()
	return sc
}

func parseDuration(name, raw string, dst *time.Duration) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if raw == "0" {
		*dst = 0
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("session.%s invalid duration %q: %w", name, raw, err)
	}
	if d < 0 {
		return fmt.Errorf("session.%s must not be negative", name)
	}
	*dst = d
	return nil
}
