package secret

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/jonwraymond/paramcache/observe"
)

const refPrefix = "secretref:"

var inlineRef = regexp.MustCompile(`secretref:([^:\s]+):(\S+)`)

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	// Strict rejects empty provider values with ErrEmptyValue.
	Strict bool

	// Logger receives one debug entry per resolved reference. Values are
	// never logged. Default: no logging.
	Logger observe.Logger
}

// Resolver expands environment variables and secret references in strings.
// It is safe for concurrent use.
type Resolver struct {
	strict bool
	logger observe.Logger

	mu        sync.RWMutex
	providers map[string]Provider
}

// NewResolver creates a resolver answering references with providers.
func NewResolver(cfg ResolverConfig, providers ...Provider) *Resolver {
	r := &Resolver{
		strict:    cfg.Strict,
		logger:    cfg.Logger,
		providers: make(map[string]Provider),
	}
	if r.logger == nil {
		r.logger = observe.NopLogger()
	}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds p, replacing a provider with the same name.
func (r *Resolver) Register(p Provider) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// ResolveValue expands environment variables in value, then replaces every
// secret reference in it.
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	expanded, err := ExpandEnvStrict(value)
	if err != nil {
		return "", err
	}
	if r == nil {
		return expanded, nil
	}

	matches := inlineRef.FindAllStringSubmatchIndex(expanded, -1)
	out := expanded
	// Back to front so earlier indexes stay valid.
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		v, err := r.resolve(ctx, out[m[2]:m[3]], out[m[4]:m[5]])
		if err != nil {
			return "", err
		}
		out = out[:m[0]] + v + out[m[1]:]
	}
	return out, nil
}

// ResolveSlice resolves each element of values.
func (r *Resolver) ResolveSlice(ctx context.Context, values []string) ([]string, error) {
	out := make([]string, len(values))
	for i, v := range values {
		resolved, err := r.ResolveValue(ctx, v)
		if err != nil {
			return nil, err
		}
		out[i] = resolved
	}
	return out, nil
}

// ResolveMap resolves each value of input. Errors name the failing key.
func (r *Resolver) ResolveMap(ctx context.Context, input map[string]string) (map[string]string, error) {
	if input == nil {
		return nil, nil
	}
	out := make(map[string]string, len(input))
	for k, v := range input {
		resolved, err := r.ResolveValue(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", k, err)
		}
		out[k] = resolved
	}
	return out, nil
}

// Close closes every registered provider.
func (r *Resolver) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var errs []error
	for _, p := range r.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ParseSecretRef splits a value that is exactly one reference,
// "secretref:<provider>:<ref>". The ref may itself contain colons.
func ParseSecretRef(value string) (provider, ref string, ok bool) {
	rest, found := strings.CutPrefix(value, refPrefix)
	if !found {
		return "", "", false
	}
	provider, ref, found = strings.Cut(rest, ":")
	if !found || provider == "" || ref == "" {
		return "", "", false
	}
	return provider, ref, true
}

func (r *Resolver) resolve(ctx context.Context, provider, ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", fmt.Errorf("%w: empty ref for provider %q", ErrInvalidRef, provider)
	}

	r.mu.RLock()
	p, ok := r.providers[provider]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}

	v, err := p.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	if r.strict && v == "" {
		return "", fmt.Errorf("%w: %s:%s", ErrEmptyValue, provider, ref)
	}
	r.logger.Debug(ctx, "secret reference resolved",
		observe.Field{Key: "provider", Value: provider},
		observe.Field{Key: "ref", Value: ref},
	)
	return v, nil
}
