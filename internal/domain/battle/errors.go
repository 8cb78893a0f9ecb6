package battle

import "errors"

// Sentinel kinds for extraction errors.
var (
	ErrNotAvailable          = errors.New("rating change not available")
	ErrMalformedRatingChange = errors.New("malformed rating change")
	ErrMissingParticipant    = errors.New("missing participant id")
	ErrMissingRatingChange   = errors.New("missing rating change")
	ErrDuplicateParticipant  = errors.New("participant appears twice in batch")
)
