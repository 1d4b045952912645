package client

import (
	"context"
	"errors"
	"time"

	"github.com/danmuck/amqpwire/internal/protocol/frame"
	"github.com/rs/zerolog/log"
)

// FrameSender is satisfied by *session.Connection and *Supervisor.
type FrameSender interface {
	Send(f frame.Frame) error
}

// Heartbeater sends a heartbeat frame every Interval.
type Heartbeater struct {
	Sender   FrameSender
	Interval time.Duration
}

// Run sends heartbeats until ctx is done. ErrNoConnection (a supervisor
// between connections) is skipped; any other send error stops Run, including
// session.ErrConnectionClosing from a connection that will not come back.
func (h Heartbeater) Run(ctx context.Context) error {
	if h.Interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		err := h.Sender.Send(frame.Heartbeat())
		switch {
		case err == nil:
		case errors.Is(err, ErrNoConnection):
			log.Debug().Err(err).Msg("client.Heartbeater skipped")
		default:
			return err
		}
	}
}
