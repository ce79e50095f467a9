package riot

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrNotFound    = errors.New("riot: not found")
	ErrRateLimited = errors.New("riot: rate limited")
	ErrStatus      = errors.New("riot: unexpected status")
	ErrDecode      = errors.New("riot: decode response")
)
