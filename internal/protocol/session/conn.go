package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/danmuck/amqpwire/internal/observability"
	"github.com/danmuck/amqpwire/internal/protocol"
	"github.com/danmuck/amqpwire/internal/protocol/frame"
	"github.com/nats-io/nuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ConnState is the lifecycle state of a Connection.
type ConnState int32

const (
	StateOpen ConnState = iota
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// WriteErrorFunc receives the failure signal: the connection whose socket
// write failed and the error returned by the socket. It runs on the writer
// goroutine with no session locks held and must hand long work off to
// another goroutine. A returned error is logged and kept in SignalErr.
type WriteErrorFunc func(c *Connection, err error) error

// Options configures one Connection.
type Options struct {
	Config Config
	// Header overrides the protocol header; zero uses protocol.DefaultHeader.
	Header       protocol.ProtocolHeader
	OnWriteError WriteErrorFunc
}

// Stats is a point-in-time view of the write pipeline.
type Stats struct {
	Requests uint64
	Bytes    uint64
	Pending  int
}

// Connection is one logical session to a remote peer. It owns one
// WriteQueue and one writer goroutine.
type Connection struct {
	id           string
	sink         io.Writer
	cfg          Config
	limits       frame.Limits
	queue        *WriteQueue
	onWriteError WriteErrorFunc
	logger       zerolog.Logger

	state       atomic.Int32
	writerState atomic.Int32
	requests    atomic.Uint64
	bytes       atomic.Uint64

	done      chan struct{}
	closeOnce sync.Once
	sinkOnce  sync.Once
	sinkErr   error

	mu        sync.Mutex
	err       error
	signalErr error
}

// NewConnection enqueues the protocol header and starts the writer on sink.
func NewConnection(sink io.Writer, opts Options) (*Connection, error) {
	if sink == nil {
		return nil, ErrNilSink
	}
	cfg := opts.Config.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	hs := Handshake
	if opts.Header != (protocol.ProtocolHeader{}) {
		hs = NewHandshakeRequest(opts.Header)
	}
	if err := validateRequest(hs); err != nil {
		return nil, err
	}

	id := nuid.Next()
	c := &Connection{
		id:           id,
		sink:         sink,
		cfg:          cfg,
		limits:       cfg.Limits(),
		queue:        NewWriteQueue(cfg.Queue),
		onWriteError: opts.OnWriteError,
		logger:       log.With().Str("conn", id).Logger(),
		done:         make(chan struct{}),
	}
	c.state.Store(int32(StateOpen))
	if err := c.queue.Enqueue(hs); err != nil {
		return nil, err
	}
	go c.writeLoop()
	return c, nil
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) Config() Config { return c.cfg }

func (c *Connection) State() ConnState { return ConnState(c.state.Load()) }

func (c *Connection) WriterState() WriterState { return WriterState(c.writerState.Load()) }

// Done is closed when the writer has stopped.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Err returns the socket error that faulted the connection, if any.
func (c *Connection) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// SignalErr returns the error returned by the WriteErrorFunc, if any.
func (c *Connection) SignalErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.signalErr
}

func (c *Connection) Pending() int { return c.queue.Len() }

func (c *Connection) Stats() Stats {
	return Stats{
		Requests: c.requests.Load(),
		Bytes:    c.bytes.Load(),
		Pending:  c.queue.Len(),
	}
}

// Send encodes f and enqueues it. Invalid frames are rejected here and never
// reach the writer.
func (c *Connection) Send(f frame.Frame) error {
	return c.SendContext(context.Background(), f)
}

func (c *Connection) SendContext(ctx context.Context, f frame.Frame) error {
	req, err := NewFrameRequest(f, c.limits)
	if err != nil {
		return err
	}
	return c.EnqueueContext(ctx, req)
}

func (c *Connection) Enqueue(req WriteRequest) error {
	return c.EnqueueContext(context.Background(), req)
}

func (c *Connection) EnqueueContext(ctx context.Context, req WriteRequest) error {
	if err := validateRequest(req); err != nil {
		return err
	}
	err := c.queue.EnqueueContext(ctx, req)
	switch {
	case err == nil:
	case errors.Is(err, ErrQueueFull):
		observability.RecordQueueRejected("full")
	case errors.Is(err, ErrConnectionClosing):
		observability.RecordQueueRejected("closing")
	default:
		observability.RecordQueueRejected("canceled")
	}
	return err
}

// Close stops accepting requests, waits for the writer to flush what is
// already queued, then closes the sink when it is an io.Closer. The failure
// signal is not invoked. Close is safe to call from a WriteErrorFunc.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.state.CompareAndSwap(int32(StateOpen), int32(StateClosing))
		c.queue.CloseForDrain()
	})
	if c.WriterState() != WriterFaulted {
		<-c.done
	}
	return c.closeSink()
}

func (c *Connection) closeSink() error {
	c.sinkOnce.Do(func() {
		if closer, ok := c.sink.(io.Closer); ok {
			c.sinkErr = closer.Close()
		}
	})
	return c.sinkErr
}
