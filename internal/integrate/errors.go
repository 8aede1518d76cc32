package integrate

import "errors"

var (
	// ErrIllDefined marks a ratio whose denominator vanished, typically a
	// surface set with zero total area.
	ErrIllDefined = errors.New("ill-defined ratio")
	ErrNonFinite  = errors.New("non-finite result")
)
