package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/amqpwire/internal/protocol"
)

var (
	ErrShortHeader      = errors.New("frame: short header")
	ErrPayloadTooLarge  = errors.New("frame: payload too large")
	ErrBadFrameEnd      = errors.New("frame: missing frame-end octet")
	ErrUnknownType      = errors.New("frame: unknown frame type")
	ErrHeartbeatChannel = errors.New("frame: heartbeat must use channel 0")
	ErrFrameMaxTooSmall = errors.New("frame: frame max below protocol minimum")
)

// Frame is one complete wire unit. The payload is opaque at this layer.
type Frame struct {
	Type    uint8
	Channel uint16
	Payload []byte
}

// Limits constrains frame encode/decode memory use.
type Limits struct {
	// MaxFrameSize is the negotiated frame-max, including header and frame-end.
	MaxFrameSize uint32
}

func DefaultLimits() Limits {
	return Limits{MaxFrameSize: 128 * 1024}
}

func (l Limits) maxPayload() uint64 {
	if l.MaxFrameSize == 0 {
		return uint64(^uint32(0))
	}
	if l.MaxFrameSize <= protocol.FrameOverhead {
		return 0
	}
	return uint64(l.MaxFrameSize - protocol.FrameOverhead)
}

func (l Limits) Validate() error {
	if l.MaxFrameSize != 0 && l.MaxFrameSize < protocol.FrameMinSize {
		return fmt.Errorf("%w: %d < %d", ErrFrameMaxTooSmall, l.MaxFrameSize, protocol.FrameMinSize)
	}
	return nil
}

// Heartbeat returns the channel-0 heartbeat frame.
func Heartbeat() Frame {
	return Frame{Type: protocol.FrameHeartbeat}
}

// Size returns the encoded length of f.
func (f Frame) Size() int {
	return protocol.FrameOverhead + len(f.Payload)
}

// Validate checks f against the frame type set and limits.
func Validate(f Frame, limits Limits) error {
	switch f.Type {
	case protocol.FrameMethod, protocol.FrameHeader, protocol.FrameBody:
	case protocol.FrameHeartbeat:
		if f.Channel != 0 {
			return ErrHeartbeatChannel
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownType, f.Type)
	}
	if uint64(len(f.Payload)) > limits.maxPayload() {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(f.Payload))
	}
	return nil
}

// Append validates f and appends its wire form to dst.
func Append(dst []byte, f Frame, limits Limits) ([]byte, error) {
	if err := Validate(f, limits); err != nil {
		return dst, err
	}
	dst = append(dst, EncodeHeader(f.Type, f.Channel, uint32(len(f.Payload)))...)
	dst = append(dst, f.Payload...)
	return append(dst, protocol.FrameEnd), nil
}

// Encode returns the wire form of f.
func Encode(f Frame, limits Limits) ([]byte, error) {
	return Append(make([]byte, 0, f.Size()), f, limits)
}

func WriteFrame(w io.Writer, f Frame, limits Limits) error {
	buf, err := Encode(f, limits)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	var head [protocol.FrameHeaderSize]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, ErrShortHeader
		}
		return Frame{}, err
	}

	typ, channel, size := DecodeHeader(head)
	if uint64(size) > limits.maxPayload() {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, size)
	}

	body := make([]byte, int(size)+1)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, err
	}
	if body[size] != protocol.FrameEnd {
		return Frame{}, ErrBadFrameEnd
	}
	return Frame{Type: typ, Channel: channel, Payload: body[:size]}, nil
}

func EncodeHeader(typ uint8, channel uint16, size uint32) []byte {
	buf := make([]byte, protocol.FrameHeaderSize)
	buf[0] = typ
	binary.BigEndian.PutUint16(buf[1:3], channel)
	binary.BigEndian.PutUint32(buf[3:7], size)
	return buf
}

func DecodeHeader(b [protocol.FrameHeaderSize]byte) (uint8, uint16, uint32) {
	return b[0], binary.BigEndian.Uint16(b[1:3]), binary.BigEndian.Uint32(b[3:7])
}
