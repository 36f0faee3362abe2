package render

import "errors"

var (
	ErrDisposed      = errors.New("render surface disposed")
	ErrHandleExists  = errors.New("handle already exists")
	ErrUnknownHandle = errors.New("unknown handle")
)
