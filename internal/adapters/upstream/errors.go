package upstream

import "errors"

var (
	// ErrUpstreamStatus is returned when the remote API answers with a non-2xx status.
	ErrUpstreamStatus = errors.New("upstream returned unexpected status")

	// ErrDecode is returned when a response body is not the expected JSON.
	ErrDecode = errors.New("upstream response could not be decoded")
)
