package dedupe

import "errors"

// ErrCorruptSnapshot is returned when a snapshot cannot be decoded into an index.
var ErrCorruptSnapshot = errors.New("corrupt index snapshot")
