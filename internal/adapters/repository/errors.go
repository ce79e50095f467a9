package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	// ErrNotFound means no snapshot with the requested tag exists yet.
	ErrNotFound = errors.New("snapshot not found")
	// ErrCorrupt means a snapshot exists but cannot be parsed.
	ErrCorrupt = errors.New("corrupt snapshot")
)
