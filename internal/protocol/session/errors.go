package session

import "errors"

var (
	ErrConnectionClosing     = errors.New("session: connection closing")
	ErrQueueFull             = errors.New("session: write queue full")
	ErrNilRequest            = errors.New("session: nil write request")
	ErrInvalidRequest        = errors.New("session: invalid write request")
	ErrNilSink               = errors.New("session: nil sink")
	ErrInvalidOverflowPolicy = errors.New("session: invalid overflow policy")
)
