package client

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/danmuck/amqpwire/internal/protocol"
	"github.com/danmuck/amqpwire/internal/protocol/session"
	"github.com/rs/zerolog/log"
)

var (
	ErrAddressRequired  = errors.New("client: broker address required")
	ErrNoConnection     = errors.New("client: no live connection")
	ErrSupervisorClosed = errors.New("client: supervisor closed")
)

// DialFunc opens the transport; net.Dialer.DialContext by default.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

type DialerConfig struct {
	Address            string
	Session            session.Config
	Header             protocol.ProtocolHeader
	MaxConnectAttempts int
	DialFunc           DialFunc
}

func DefaultDialerConfig() DialerConfig {
	return DialerConfig{
		Session: session.DefaultConfig(),
	}
}

type Dialer struct {
	cfg DialerConfig
}

func NewDialer(cfg DialerConfig) (*Dialer, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, ErrAddressRequired
	}
	cfg.Session = cfg.Session.WithDefaults()
	if err := cfg.Session.Validate(); err != nil {
		return nil, err
	}
	if cfg.DialFunc == nil {
		d := net.Dialer{Timeout: cfg.Session.ConnectTimeout}
		cfg.DialFunc = d.DialContext
	}
	return &Dialer{cfg: cfg}, nil
}

func (d *Dialer) Address() string { return d.cfg.Address }

// Dial opens one transport connection bounded by ConnectTimeout.
func (d *Dialer) Dial(ctx context.Context) (net.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, d.cfg.Session.ConnectTimeout)
	defer cancel()
	return d.cfg.DialFunc(dialCtx, "tcp", d.cfg.Address)
}

// Connect dials with retry and starts a session on the new transport. The
// protocol header is queued before Connect returns.
func (d *Dialer) Connect(ctx context.Context, onWriteError session.WriteErrorFunc) (*session.Connection, error) {
	retry := session.NewRetrier(d.cfg.Session.Backoff)
	for {
		conn, err := d.Dial(ctx)
		if err == nil {
			c, err := session.NewConnection(conn, session.Options{
				Config:       d.cfg.Session,
				Header:       d.cfg.Header,
				OnWriteError: onWriteError,
			})
			if err != nil {
				_ = conn.Close()
				return nil, err
			}
			log.Info().Str("conn", c.ID()).Str("addr", d.cfg.Address).Int("attempt", retry.Attempt()+1).Msg("client.Dialer connected")
			return c, nil
		}
		log.Warn().Err(err).Str("addr", d.cfg.Address).Int("attempt", retry.Attempt()+1).Msg("client.Dialer dial failed")
		if !d.shouldRetry(retry.Attempt() + 1) {
			return nil, err
		}
		if err := retry.Wait(ctx); err != nil {
			return nil, err
		}
	}
}

func (d *Dialer) shouldRetry(attempt int) bool {
	if d.cfg.MaxConnectAttempts <= 0 {
		return true
	}
	return attempt < d.cfg.MaxConnectAttempts
}
