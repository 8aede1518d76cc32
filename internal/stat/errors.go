package stat

import "errors"

var (
	ErrNotConfigured     = errors.New("engine is not configured")
	ErrReconfigureActive = errors.New("cannot reconfigure while sampling is active")
	ErrUnknownSurface    = errors.New("configured surface not found")
	ErrUnknownField      = errors.New("configured field not found")
	ErrOutputUnavailable = errors.New("output file unavailable")
)
