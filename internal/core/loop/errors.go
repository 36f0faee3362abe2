package loop

import "errors"

var (
	ErrAlreadyRunning = errors.New("loop is already running")
	ErrStopped        = errors.New("loop is stopped")
)
