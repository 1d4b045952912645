package protocol

// ProtocolID is the literal 4-byte identifier sent first on every connection.
const ProtocolID = "AMQP"

// Default version triple written in the protocol header.
const (
	VersionMajor    byte = 0
	VersionMinor    byte = 9
	VersionRevision byte = 1
)

// Frame types.
const (
	FrameMethod    uint8 = 1
	FrameHeader    uint8 = 2
	FrameBody      uint8 = 3
	FrameHeartbeat uint8 = 8
)

const (
	// FrameEnd terminates every frame on the wire.
	FrameEnd byte = 0xCE
	// FrameHeaderSize is type(1) + channel(2) + size(4).
	FrameHeaderSize = 7
	// FrameOverhead is the header plus the frame-end octet.
	FrameOverhead = FrameHeaderSize + 1
	// FrameMinSize is the smallest frame-max a peer may negotiate.
	FrameMinSize uint32 = 4096
)

// FrameTypeName returns a short label for diagnostics and metrics.
func FrameTypeName(t uint8) string {
	switch t {
	case FrameMethod:
		return "method"
	case FrameHeader:
		return "header"
	case FrameBody:
		return "body"
	case FrameHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}
