package session

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// NextBackoffDelay returns the retry delay for attempt N (1-based).
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 {
		return jitter(cfg, cfg.InitialDelay, rng)
	}
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return jitter(cfg, time.Duration(delay), rng)
}

func jitter(cfg BackoffConfig, d time.Duration, rng *rand.Rand) time.Duration {
	if !cfg.Jitter || d <= 0 {
		return d
	}
	f := 0.5
	if rng != nil {
		f = 0.5 + rng.Float64()
	}
	return time.Duration(float64(d) * f)
}

// Retrier counts attempts and sleeps between them. Not safe for concurrent use.
type Retrier struct {
	cfg     BackoffConfig
	rng     *rand.Rand
	attempt int
}

func NewRetrier(cfg BackoffConfig) *Retrier {
	return &Retrier{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *Retrier) Attempt() int { return r.attempt }

func (r *Retrier) Reset() { r.attempt = 0 }

// Wait records one failed attempt and sleeps for its backoff delay.
func (r *Retrier) Wait(ctx context.Context) error {
	r.attempt++
	timer := time.NewTimer(NextBackoffDelay(r.cfg, r.attempt, r.rng))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
