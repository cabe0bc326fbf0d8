package config

import "errors"

var (
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("config: invalid")

	// ErrUnknownGroup is returned for a group name that is not configured.
	ErrUnknownGroup = errors.New("config: unknown group")
)
