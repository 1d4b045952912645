package brokertest

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/amqpwire/internal/protocol"
	"github.com/danmuck/amqpwire/internal/protocol/frame"
)

// Received is one frame read by the peer, tagged with the connection index.
type Received struct {
	Conn  int
	Frame frame.Frame
}

// Peer is the remote end of client connections in tests. It reads the
// protocol header and then frames until the connection closes.
type Peer struct {
	ln      net.Listener
	mu      sync.Mutex
	conns   []net.Conn
	closed  bool
	wg      sync.WaitGroup
	done    chan struct{}
	headers chan protocol.ProtocolHeader
	frames  chan Received
}

func NewPeer(t testing.TB) *Peer {
	t.Helper()
	p := &Peer{
		done:    make(chan struct{}),
		headers: make(chan protocol.ProtocolHeader, 64),
		frames:  make(chan Received, 1024),
	}
	t.Cleanup(p.Close)
	return p
}

// Listen starts a TCP listener on loopback and serves every accepted conn.
func Listen(t testing.TB) *Peer {
	t.Helper()
	p := NewPeer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	p.ln = ln
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			p.Serve(conn)
		}
	}()
	return p
}

func (p *Peer) Addr() string {
	if p.ln == nil {
		return ""
	}
	return p.ln.Addr().String()
}

// Serve starts reading conn and returns its index.
func (p *Peer) Serve(conn net.Conn) int {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = conn.Close()
		return -1
	}
	idx := len(p.conns)
	p.conns = append(p.conns, conn)
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		h, err := protocol.ReadProtocolHeader(conn)
		if err != nil {
			return
		}
		select {
		case p.headers <- h:
		case <-p.done:
			return
		}
		for {
			f, err := frame.ReadFrame(conn, frame.DefaultLimits())
			if err != nil {
				return
			}
			select {
			case p.frames <- Received{Conn: idx, Frame: f}:
			case <-p.done:
				return
			}
		}
	}()
	return idx
}

// Drop closes connection idx so the client's next write fails.
func (p *Peer) Drop(idx int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if idx >= 0 && idx < len(p.conns) {
		_ = p.conns[idx].Close()
	}
}

func (p *Peer) Conns() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

var errTimeout = errors.New("brokertest: timed out")

func (p *Peer) ExpectHeader(timeout time.Duration) (protocol.ProtocolHeader, error) {
	select {
	case h := <-p.headers:
		return h, nil
	case <-time.After(timeout):
		return protocol.ProtocolHeader{}, errTimeout
	}
}

func (p *Peer) ExpectFrame(timeout time.Duration) (Received, error) {
	select {
	case r := <-p.frames:
		return r, nil
	case <-time.After(timeout):
		return Received{}, errTimeout
	}
}

func (p *Peer) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	if p.ln != nil {
		_ = p.ln.Close()
	}
	for _, conn := range p.conns {
		_ = conn.Close()
	}
	p.mu.Unlock()
	p.wg.Wait()
}
