package service

import "errors"

// Cycle-level failures. Both abort a cycle before any remote call.
var (
	// ErrMissingBootstrapState means there is no roster snapshot and the run
	// is not allowed to bootstrap one.
	ErrMissingBootstrapState = errors.New("missing bootstrap state")
	// ErrCorruptPersistedState means the roster or index snapshot cannot be read.
	ErrCorruptPersistedState = errors.New("corrupt persisted state")
)
