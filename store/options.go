package store

import (
	"fmt"
	"time"
)

// Options holds backend settings as decoded from a configuration file.
type Options map[string]any

// String returns the string at key, or def when absent.
func (o Options) String(key, def string) (string, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidOption, key, v)
	}
	return s, nil
}

// Int returns the integer at key, or def when absent.
func (o Options) Int(key string, def int) (int, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%w: %s must be a whole number, got %v", ErrInvalidOption, key, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("%w: %s must be an integer, got %T", ErrInvalidOption, key, v)
	}
}

// Bool returns the boolean at key, or def when absent.
func (o Options) Bool(key string, def bool) (bool, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s must be a boolean, got %T", ErrInvalidOption, key, v)
	}
	return b, nil
}

// Duration returns the duration at key, or def when absent. Strings are
// parsed with time.ParseDuration.
func (o Options) Duration(key string, def time.Duration) (time.Duration, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	switch d := v.(type) {
	case time.Duration:
		return d, nil
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrInvalidOption, key, err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("%w: %s must be a duration string, got %T", ErrInvalidOption, key, v)
	}
}

// StringMap returns the string-to-string map at key. Non-string values are
// rejected.
func (o Options) StringMap(key string) (map[string]string, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return nil, nil
	}
	var raw map[string]any
	switch m := v.(type) {
	case map[string]string:
		return m, nil
	case map[string]any:
		raw = m
	default:
		return nil, fmt.Errorf("%w: %s must be a map, got %T", ErrInvalidOption, key, v)
	}
	out := make(map[string]string, len(raw))
	for k, val := range raw {
		s, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s must be a string, got %T", ErrInvalidOption, key, k, val)
		}
		out[k] = s
	}
	return out, nil
}
