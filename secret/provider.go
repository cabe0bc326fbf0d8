package secret

import "context"

// Provider resolves the <ref> part of "secretref:<provider>:<ref>".
//
// Contract:
//   - Resolve and Close are safe for concurrent use.
//   - Implementations never log resolved values.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
	Close() error
}
