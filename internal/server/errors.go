package server

import "errors"

var (
	ErrServerRunning    = errors.New("inspector is already running")
	ErrServerNotRunning = errors.New("inspector is not running")
)
