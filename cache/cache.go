package cache

import (
	"errors"
	"fmt"
	"strings"
)

// MaxNameLength is the maximum allowed length for a parameter name.
const MaxNameLength = 2048

// Sentinel errors for cache operations.
var (
	// ErrConfig indicates invalid construction input.
	ErrConfig = errors.New("cache: invalid configuration")

	// ErrInvalidKey indicates the store does not know a requested key.
	ErrInvalidKey = errors.New("cache: key is invalid")

	// ErrInvalidParam indicates a refresh found one or more unknown names.
	ErrInvalidParam = errors.New("cache: invalid parameters")
)

// InvalidParamError names the parameters a refresh could not find.
// It matches both ErrInvalidParam and ErrInvalidKey.
type InvalidParamError struct {
	Names []string
}

func (e *InvalidParamError) Error() string {
	return "cache: invalid parameters: " + strings.Join(e.Names, ",")
}

// Is reports whether target is ErrInvalidParam or ErrInvalidKey.
func (e *InvalidParamError) Is(target error) bool {
	return target == ErrInvalidParam || target == ErrInvalidKey
}

// Contains reports whether name is among the invalid names.
func (e *InvalidParamError) Contains(name string) bool {
	for _, n := range e.Names {
		if n == name {
			return true
		}
	}
	return false
}

// ValidateName checks that name can be used as a parameter name.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: parameter name is required", ErrConfig)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: parameter name exceeds %d bytes", ErrConfig, MaxNameLength)
	}
	if strings.ContainsAny(name, "\n\r") {
		return fmt.Errorf("%w: parameter name contains a newline", ErrConfig)
	}
	return nil
}
