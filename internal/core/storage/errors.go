package storage

import "errors"

var (
	ErrTruncated = errors.New("listing did not fit in a single page")
	ErrNotFound  = errors.New("entity not found")
)
