package stream

import "errors"

var (
	// ErrStreamConstruction is returned when a Builder cannot create a stream.
	ErrStreamConstruction = errors.New("stream: construction failed")

	// ErrInvalidConfig is returned when a Config is malformed.
	ErrInvalidConfig = errors.New("stream: invalid config")
)
