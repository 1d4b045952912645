package protocol

import (
	"errors"
	"fmt"
	"io"
)

// ProtocolHeaderLen is the fixed size of the connection preamble.
const ProtocolHeaderLen = 8

// ProtocolHeader is the connection preamble:
// 4 id bytes, a zero separator, then major, minor and revision.
type ProtocolHeader struct {
	ID       [4]byte
	Major    byte
	Minor    byte
	Revision byte
}

// DefaultHeader is the preamble for the default protocol version.
// It carries no per-connection data and is shared by value.
var DefaultHeader = NewProtocolHeader(VersionMajor, VersionMinor, VersionRevision)

func NewProtocolHeader(major, minor, revision byte) ProtocolHeader {
	h := ProtocolHeader{Major: major, Minor: minor, Revision: revision}
	copy(h.ID[:], ProtocolID)
	return h
}

// Bytes returns the 8-byte wire form.
func (h ProtocolHeader) Bytes() []byte {
	return h.AppendTo(make([]byte, 0, ProtocolHeaderLen))
}

// AppendTo appends the wire form to dst.
func (h ProtocolHeader) AppendTo(dst []byte) []byte {
	return append(dst, h.ID[0], h.ID[1], h.ID[2], h.ID[3], 0, h.Major, h.Minor, h.Revision)
}

// WriteTo writes the preamble with a single Write call.
func (h ProtocolHeader) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(h.Bytes())
	return int64(n), err
}

func (h ProtocolHeader) String() string {
	return fmt.Sprintf("%s %d-%d-%d", string(h.ID[:]), h.Major, h.Minor, h.Revision)
}

// ReadProtocolHeader reads and validates one preamble from r.
func ReadProtocolHeader(r io.Reader) (ProtocolHeader, error) {
	var buf [ProtocolHeaderLen]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return ProtocolHeader{}, ErrTruncated
		}
		return ProtocolHeader{}, err
	}
	return ParseProtocolHeader(buf[:])
}

// ParseProtocolHeader validates the id and separator of an 8-byte preamble.
func ParseProtocolHeader(b []byte) (ProtocolHeader, error) {
	if len(b) != ProtocolHeaderLen {
		return ProtocolHeader{}, fmt.Errorf("%w: length %d", ErrInvalidProtocolHeader, len(b))
	}
	if string(b[0:4]) != ProtocolID {
		return ProtocolHeader{}, fmt.Errorf("%w: id %q", ErrInvalidProtocolHeader, b[0:4])
	}
	if b[4] != 0 {
		return ProtocolHeader{}, fmt.Errorf("%w: separator 0x%02x", ErrInvalidProtocolHeader, b[4])
	}
	h := ProtocolHeader{Major: b[5], Minor: b[6], Revision: b[7]}
	copy(h.ID[:], b[0:4])
	return h, nil
}

// Supports reports whether h matches the default version triple.
func Supports(h ProtocolHeader) error {
	if h.Major != VersionMajor || h.Minor != VersionMinor || h.Revision != VersionRevision {
		return fmt.Errorf("%w: %s", ErrUnsupportedVersion, h)
	}
	return nil
}
