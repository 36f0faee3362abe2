package engine

import "errors"

var (
	ErrAlreadyMounted = errors.New("engine already mounted")
	ErrNotMounted     = errors.New("engine not mounted")
	ErrTornDown       = errors.New("engine was torn down")
)
