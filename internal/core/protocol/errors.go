package protocol

import "errors"

var (
	ErrNotConnected     = errors.New("transport not connected")
	ErrAlreadyConnected = errors.New("transport already connected")
	ErrClosed           = errors.New("transport closed")
	ErrFrameTooLarge    = errors.New("frame too large")
	ErrUnknownKind      = errors.New("unknown transport kind")
)
