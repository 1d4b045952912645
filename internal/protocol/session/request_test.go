package session

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/danmuck/amqpwire/internal/protocol"
	"github.com/danmuck/amqpwire/internal/protocol/frame"
	"github.com/danmuck/amqpwire/internal/testutil/testlog"
)

var handshakeBytes = []byte{'A', 'M', 'Q', 'P', 0, 0, 9, 1}

func TestHandshakeRenderIsIdempotent(t *testing.T) {
	testlog.Start(t)
	for i := 0; i < 5; i++ {
		var buf bytes.Buffer
		if err := Handshake.Render(&buf); err != nil {
			t.Fatalf("render %d: %v", i, err)
		}
		if !bytes.Equal(buf.Bytes(), handshakeBytes) {
			t.Fatalf("render %d: got=%v", i, buf.Bytes())
		}
	}
}

func TestHandshakeCustomVersion(t *testing.T) {
	testlog.Start(t)
	req := NewHandshakeRequest(protocol.NewProtocolHeader(0, 10, 0))
	var buf bytes.Buffer
	if err := req.Render(&buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), []byte{'A', 'M', 'Q', 'P', 0, 0, 10, 0}) {
		t.Fatalf("unexpected bytes: %v", buf.Bytes())
	}
	if req.Kind() != "handshake" {
		t.Fatalf("unexpected kind: %q", req.Kind())
	}
}

func TestFrameRequestRendersEncodedFrame(t *testing.T) {
	testlog.Start(t)
	f := frame.Frame{Type: protocol.FrameBody, Channel: 1, Payload: []byte{0x01, 0x02}}
	req, err := NewFrameRequest(f, frame.DefaultLimits())
	if err != nil {
		t.Fatalf("new frame request: %v", err)
	}
	want, _ := frame.Encode(f, frame.DefaultLimits())
	var buf bytes.Buffer
	if err := req.Render(&buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("render mismatch: got=%v want=%v", buf.Bytes(), want)
	}
	if req.Type() != protocol.FrameBody || req.Channel() != 1 || req.Size() != len(want) || req.Kind() != "body" {
		t.Fatalf("unexpected metadata: type=%d channel=%d size=%d kind=%s", req.Type(), req.Channel(), req.Size(), req.Kind())
	}
}

func TestFrameRequestCopiesPayload(t *testing.T) {
	testlog.Start(t)
	payload := []byte{0x01, 0x02}
	req, err := NewFrameRequest(frame.Frame{Type: protocol.FrameBody, Channel: 1, Payload: payload}, frame.DefaultLimits())
	if err != nil {
		t.Fatalf("new frame request: %v", err)
	}
	var before bytes.Buffer
	_ = req.Render(&before)
	payload[0] = 0xff
	var after bytes.Buffer
	_ = req.Render(&after)
	if !bytes.Equal(before.Bytes(), after.Bytes()) {
		t.Fatalf("request changed after payload mutation")
	}
}

func TestNewFrameRequestRejectsInvalidFrames(t *testing.T) {
	testlog.Start(t)
	if _, err := NewFrameRequest(frame.Frame{Type: 99}, frame.DefaultLimits()); !errors.Is(err, frame.ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
	big := make([]byte, int(protocol.FrameMinSize))
	limits := frame.Limits{MaxFrameSize: protocol.FrameMinSize}
	if _, err := NewFrameRequest(frame.Frame{Type: protocol.FrameBody, Channel: 1, Payload: big}, limits); !errors.Is(err, frame.ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestRenderPropagatesSinkError(t *testing.T) {
	testlog.Start(t)
	boom := errors.New("broken pipe")
	if err := Handshake.Render(failingWriter{err: boom}); !errors.Is(err, boom) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if err := Handshake.Render(shortWriter{}); !errors.Is(err, io.ErrShortWrite) {
		t.Fatalf("expected io.ErrShortWrite, got %v", err)
	}
}

func TestValidateRequest(t *testing.T) {
	testlog.Start(t)
	if err := validateRequest(nil); !errors.Is(err, ErrNilRequest) {
		t.Fatalf("expected ErrNilRequest, got %v", err)
	}
	if err := validateRequest(FrameRequest{}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("zero frame request accepted: %v", err)
	}
	if err := validateRequest(HandshakeRequest{}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("zero handshake accepted: %v", err)
	}
	if err := validateRequest(&Handshake); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("pointer request accepted: %v", err)
	}
	if err := validateRequest(Handshake); err != nil {
		t.Fatalf("handshake rejected: %v", err)
	}
}

type failingWriter struct{ err error }

func (w failingWriter) Write([]byte) (int, error) { return 0, w.err }

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) { return len(p) / 2, nil }
