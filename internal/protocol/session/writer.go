package session

import (
	"time"

	"github.com/danmuck/amqpwire/internal/observability"
	"github.com/valyala/bytebufferpool"
)

// WriterState is the state of a connection's writer goroutine.
type WriterState int32

const (
	WriterRunning WriterState = iota
	WriterFaulted
	WriterStopped
)

func (s WriterState) String() string {
	switch s {
	case WriterRunning:
		return "running"
	case WriterFaulted:
		return "faulted"
	case WriterStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

func (c *Connection) writeLoop() {
	c.writerState.Store(int32(WriterRunning))
	c.logger.Debug().Msg("session.writer started")

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	for {
		req, ok := c.queue.Dequeue()
		if !ok {
			c.stop()
			return
		}
		buf.Reset()
		// The socket sees one Write per request.
		if err := req.Render(buf); err != nil {
			c.fault(err)
			return
		}
		if err := c.flush(buf.B); err != nil {
			c.fault(err)
			return
		}
		c.requests.Add(1)
		c.bytes.Add(uint64(buf.Len()))
		observability.RecordWrite(req.Kind(), buf.Len())
	}
}

func (c *Connection) flush(b []byte) error {
	if c.cfg.WriteTimeout > 0 {
		if d, ok := c.sink.(writeDeadliner); ok {
			if err := d.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				return err
			}
		}
	}
	return writeAll(c.sink, b)
}

func (c *Connection) stop() {
	c.state.Store(int32(StateClosed))
	c.writerState.Store(int32(WriterStopped))
	c.logger.Debug().Uint64("requests", c.requests.Load()).Msg("session.writer stopped")
	close(c.done)
}

func (c *Connection) fault(err error) {
	c.writerState.Store(int32(WriterFaulted))
	c.state.Store(int32(StateClosed))
	c.queue.CloseForDrain()
	dropped := c.queue.Discard()

	c.mu.Lock()
	c.err = err
	c.mu.Unlock()

	_ = c.closeSink()
	observability.RecordWriteFailure(dropped)
	c.logger.Warn().Err(err).Int("dropped", dropped).Msg("session.writer faulted")

	if c.onWriteError != nil {
		if signalErr := c.onWriteError(c, err); signalErr != nil {
			c.mu.Lock()
			c.signalErr = signalErr
			c.mu.Unlock()
			c.logger.Error().Err(signalErr).Msg("session.writer failure handler returned error")
		}
	}

	c.writerState.Store(int32(WriterStopped))
	close(c.done)
}
