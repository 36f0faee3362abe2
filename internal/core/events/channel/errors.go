package channel

import "errors"

var (
	ErrAlreadySubscribed = errors.New("event type already has a listener")
	ErrEmptyEventType    = errors.New("event type is empty")
	ErrClosed            = errors.New("channel closed")
	ErrMissingField      = errors.New("required field missing")
)
