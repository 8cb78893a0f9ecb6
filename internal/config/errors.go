package config

import "errors"

var (
	// ErrInvalidConfig wraps validator failures of a loaded Config, such as an
	// empty listen address or a non-positive upstream fetch rate.
	ErrInvalidConfig = errors.New("invalid duelboard config")
	// ErrLoadConfig wraps failures reading the config file, the DUELBOARD_
	// environment or unmarshalling them into Config.
	ErrLoadConfig = errors.New("load duelboard config")
)
