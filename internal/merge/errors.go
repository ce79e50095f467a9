package merge

import "errors"

// ErrMissingRoster means no roster snapshot exists and bootstrapping is off.
var ErrMissingRoster = errors.New("no roster snapshot and bootstrap disabled")
