package session

import (
	"io"

	"github.com/danmuck/amqpwire/internal/protocol"
	"github.com/danmuck/amqpwire/internal/protocol/frame"
)

// WriteRequest is something the writer can render onto the socket.
// The set is closed: HandshakeRequest and FrameRequest.
type WriteRequest interface {
	// Render writes the request bytes to w with a single Write call and
	// returns the sink error unchanged.
	Render(w io.Writer) error
	// Kind labels the request for logs and metrics.
	Kind() string

	writeRequest()
}

// HandshakeRequest renders the protocol header.
type HandshakeRequest struct {
	header protocol.ProtocolHeader
}

// Handshake is the shared request for protocol.DefaultHeader.
var Handshake = HandshakeRequest{header: protocol.DefaultHeader}

func NewHandshakeRequest(h protocol.ProtocolHeader) HandshakeRequest {
	return HandshakeRequest{header: h}
}

func (r HandshakeRequest) Header() protocol.ProtocolHeader { return r.header }

func (r HandshakeRequest) Kind() string { return "handshake" }

func (r HandshakeRequest) Render(w io.Writer) error {
	return writeAll(w, r.header.Bytes())
}

func (HandshakeRequest) writeRequest() {}

// FrameRequest holds one frame already encoded for the wire.
type FrameRequest struct {
	typ     uint8
	channel uint16
	wire    []byte
}

// NewFrameRequest validates f against limits and encodes it. The payload is
// copied, so later changes to f.Payload do not affect the request.
func NewFrameRequest(f frame.Frame, limits frame.Limits) (FrameRequest, error) {
	wire, err := frame.Encode(f, limits)
	if err != nil {
		return FrameRequest{}, err
	}
	return FrameRequest{typ: f.Type, channel: f.Channel, wire: wire}, nil
}

func (r FrameRequest) Type() uint8 { return r.typ }

func (r FrameRequest) Channel() uint16 { return r.channel }

// Size is the encoded length including header and frame-end.
func (r FrameRequest) Size() int { return len(r.wire) }

func (r FrameRequest) Kind() string { return protocol.FrameTypeName(r.typ) }

func (r FrameRequest) Render(w io.Writer) error {
	return writeAll(w, r.wire)
}

func (FrameRequest) writeRequest() {}

func writeAll(w io.Writer, b []byte) error {
	n, err := w.Write(b)
	if err != nil {
		return err
	}
	if n < len(b) {
		return io.ErrShortWrite
	}
	return nil
}

func validateRequest(req WriteRequest) error {
	switch r := req.(type) {
	case nil:
		return ErrNilRequest
	case HandshakeRequest:
		if string(r.header.ID[:]) != protocol.ProtocolID {
			return ErrInvalidRequest
		}
	case FrameRequest:
		if len(r.wire) < protocol.FrameOverhead {
			return ErrInvalidRequest
		}
	default:
		return ErrInvalidRequest
	}
	return nil
}
