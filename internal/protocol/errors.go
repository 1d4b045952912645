package protocol

import "errors"

var (
	ErrInvalidProtocolHeader = errors.New("protocol: invalid protocol header")
	ErrUnsupportedVersion    = errors.New("protocol: unsupported version")
	ErrTruncated             = errors.New("protocol: truncated data")
)
