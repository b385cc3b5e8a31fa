package syncer

import "errors"

var (
	// ErrAlreadyRunning is returned by Start when the synchronizer is
	// already running; state is left unchanged.
	ErrAlreadyRunning = errors.New("syncer: already running")

	// ErrInvalidCapacity is returned by New when a channel capacity is
	// zero or negative.
	ErrInvalidCapacity = errors.New("syncer: channel capacity must be positive")

	// ErrCollectorStart wraps a collector's failure to register with the
	// hardware during Start.
	ErrCollectorStart = errors.New("syncer: collector start failed")
)
