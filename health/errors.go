package health

import "errors"

var (
	// ErrCheckTimeout is reported when a check does not finish before the
	// aggregator's deadline.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound is returned for an unregistered checker name.
	ErrCheckerNotFound = errors.New("health: checker not found")

	// ErrNeverRefreshed is reported for a group that has not been refreshed yet.
	ErrNeverRefreshed = errors.New("health: never refreshed")
)
