package service

import "errors"

var (
	// ErrNotStarted is returned when the service is used before Start or after Stop.
	ErrNotStarted = errors.New("service not started")

	// ErrNoBatches is returned when an ingest call carries no batches.
	ErrNoBatches = errors.New("no batches to ingest")
)
