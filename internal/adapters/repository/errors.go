package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound = errors.New("validator not found")
	ErrClosed   = errors.New("store closed")
)
