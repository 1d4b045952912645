package client

import (
	"context"
	"errors"
	"sync"

	"github.com/danmuck/amqpwire/internal/observability"
	"github.com/danmuck/amqpwire/internal/protocol/frame"
	"github.com/danmuck/amqpwire/internal/protocol/session"
	"github.com/rs/zerolog/log"
)

type State string

const (
	StateIdle       State = "idle"
	StateConnected  State = "connected"
	StateRecovering State = "recovering"
	StateFailed     State = "failed"
	StateClosed     State = "closed"
)

// Status is a snapshot for the admin surface.
type Status struct {
	State      State         `json:"state"`
	Address    string        `json:"address"`
	ConnID     string        `json:"conn_id,omitempty"`
	Recoveries int           `json:"recoveries"`
	LastError  string        `json:"last_error,omitempty"`
	Stats      session.Stats `json:"stats"`
}

type SupervisorOptions struct {
	// OnRecovered runs on the recovery goroutine after a replacement
	// connection is live. Topology replay belongs here.
	OnRecovered func(c *session.Connection)
	// OnGiveUp runs when reconnecting stops for good.
	OnGiveUp func(err error)
}

// Supervisor keeps one live connection, replacing it after a write failure.
type Supervisor struct {
	dialer *Dialer
	opts   SupervisorOptions
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.RWMutex
	current    *session.Connection
	state      State
	lastErr    error
	recoveries int
	closed     bool
}

func NewSupervisor(dialer *Dialer, opts SupervisorOptions) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		dialer: dialer,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		state:  StateIdle,
	}
}

// Start opens the first connection. A connection that faults before it is
// registered is handed to recovery, and Start still returns nil.
func (s *Supervisor) Start(ctx context.Context) error {
	c, err := s.dialer.Connect(ctx, s.onWriteError)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if c != nil {
			_ = c.Close()
		}
		return ErrSupervisorClosed
	}
	defer s.mu.Unlock()
	if err != nil {
		s.state, s.lastErr = StateFailed, err
		return err
	}
	if ferr := c.Err(); ferr != nil {
		// The writer set Err before signalling, and the signal was ignored
		// because c was not yet current.
		s.beginRecoveryLocked(c, ferr)
		return nil
	}
	s.current, s.state = c, StateConnected
	return nil
}

// onWriteError is the failure signal handler. It only records the fault and
// hands recovery to another goroutine.
func (s *Supervisor) onWriteError(c *session.Connection, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.current != c {
		return nil
	}
	s.beginRecoveryLocked(c, err)
	return nil
}

func (s *Supervisor) beginRecoveryLocked(c *session.Connection, err error) {
	s.current, s.state, s.lastErr = nil, StateRecovering, err
	s.wg.Add(1)
	log.Warn().Err(err).Str("conn", c.ID()).Msg("client.Supervisor write failure; recovering")
	go s.redial()
}

// redial replaces the failed connection. Replacements that fault before they
// are registered count as failed attempts against MaxConnectAttempts.
func (s *Supervisor) redial() {
	defer s.wg.Done()
	retry := session.NewRetrier(s.dialer.cfg.Session.Backoff)
	var live *session.Connection
	for {
		c, err := s.dialer.Connect(s.ctx, s.onWriteError)
		if err != nil {
			s.giveUp(err)
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = c.Close()
			return
		}
		ferr := c.Err()
		if ferr == nil {
			s.current, s.state = c, StateConnected
			s.recoveries++
			s.mu.Unlock()
			live = c
			break
		}
		s.lastErr = ferr
		s.mu.Unlock()

		log.Warn().Err(ferr).Str("conn", c.ID()).Msg("client.Supervisor replacement faulted before use")
		if !s.dialer.shouldRetry(retry.Attempt() + 1) {
			s.giveUp(ferr)
			return
		}
		if err := retry.Wait(s.ctx); err != nil {
			return
		}
	}

	observability.RecordRecovery("recovered")
	log.Info().Str("conn", live.ID()).Msg("client.Supervisor recovered")
	if s.opts.OnRecovered != nil {
		s.opts.OnRecovered(live)
	}
}

func (s *Supervisor) giveUp(err error) {
	s.mu.Lock()
	closed := s.closed
	if !closed {
		s.state, s.lastErr = StateFailed, err
	}
	s.mu.Unlock()
	if closed {
		return
	}
	observability.RecordRecovery("failed")
	log.Error().Err(err).Msg("client.Supervisor recovery failed")
	if s.opts.OnGiveUp != nil {
		s.opts.OnGiveUp(err)
	}
}

func (s *Supervisor) Current() *session.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Send forwards f to the live connection.
func (s *Supervisor) Send(f frame.Frame) error {
	s.mu.RLock()
	c, closed := s.current, s.closed
	s.mu.RUnlock()
	if closed {
		return ErrSupervisorClosed
	}
	if c == nil {
		return ErrNoConnection
	}
	err := c.Send(f)
	if errors.Is(err, session.ErrConnectionClosing) {
		// c faulted and its failure signal is on the way.
		return ErrNoConnection
	}
	return err
}

func (s *Supervisor) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{
		State:      s.state,
		Address:    s.dialer.Address(),
		Recoveries: s.recoveries,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	if s.current != nil {
		st.ConnID = s.current.ID()
		st.Stats = s.current.Stats()
		if err := s.current.Err(); err != nil {
			st.State, st.LastError = StateRecovering, err.Error()
		}
	}
	return st
}

// Close stops recovery and closes the live connection, flushing its queue.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	c := s.current
	s.current, s.state = nil, StateClosed
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	if c == nil {
		return nil
	}
	return c.Close()
}
