package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/amqpwire/internal/protocol/frame"
)

var ErrInvalidConfig = errors.New("session: invalid config")

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines transport/session reliability defaults.
// WriteTimeout and HeartbeatInterval are disabled when zero.
type Config struct {
	ConnectTimeout    time.Duration
	HandshakeTimeout  time.Duration
	WriteTimeout      time.Duration
	HeartbeatInterval time.Duration
	FrameMax          uint32
	Queue             QueueConfig
	Backoff           BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout:    5 * time.Second,
		HandshakeTimeout:  5 * time.Second,
		WriteTimeout:      15 * time.Second,
		HeartbeatInterval: 10 * time.Second,
		FrameMax:          frame.DefaultLimits().MaxFrameSize,
		Queue: QueueConfig{
			Overflow: OverflowUnbounded,
		},
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}

// WithDefaults fills unset fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.FrameMax == 0 {
		c.FrameMax = def.FrameMax
	}
	if c.Queue.Overflow == "" {
		c.Queue.Overflow = def.Queue.Overflow
	}
	if c.Backoff == (BackoffConfig{}) {
		c.Backoff = def.Backoff
	}
	return c
}

func (c Config) Validate() error {
	if c.ConnectTimeout < 0 || c.HandshakeTimeout < 0 || c.WriteTimeout < 0 || c.HeartbeatInterval < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	}
	if c.Backoff.InitialDelay < 0 || c.Backoff.MaxDelay < 0 {
		return fmt.Errorf("%w: negative backoff delay", ErrInvalidConfig)
	}
	if err := c.Limits().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return c.Queue.Validate()
}

// Limits returns the frame limits implied by FrameMax.
func (c Config) Limits() frame.Limits {
	return frame.Limits{MaxFrameSize: c.FrameMax}
}
