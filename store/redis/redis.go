// Package redis adapts a Redis server holding plain-text configuration
// values to store.Store.
//
// Importing the package registers the "redis" backend in
// store.DefaultRegistry.
package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jonwraymond/paramcache/store"
)

// ErrNilClient is returned by New when no client is configured.
var ErrNilClient = errors.New("redis store: nil client")

// Client is the subset of goredis.UniversalClient used by Store.
type Client interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	MGet(ctx context.Context, keys ...string) *goredis.SliceCmd
	Close() error
}

// Config configures a Store.
type Config struct {
	Client      Client
	Prefix      string // prepended to every key on the wire
	CloseClient bool   // set true only if this store exclusively owns the client
}

// Store reads values with GET and MGET. Redis has no encryption, so the
// decrypt flag is ignored.
type Store struct {
	rdb         Client
	prefix      string
	closeClient bool
}

var _ store.Store = (*Store)(nil)

// New creates a Store.
func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Store{rdb: cfg.Client, prefix: cfg.Prefix, closeClient: cfg.CloseClient}, nil
}

func (s *Store) key(k string) string { return s.prefix + k }

// FetchOne issues GET. A missing key is store.ErrKeyNotFound.
func (s *Store) FetchOne(ctx context.Context, key string, _ bool) (string, error) {
	v, err := s.rdb.Get(ctx, s.key(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", fmt.Errorf("%w: %s", store.ErrKeyNotFound, key)
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

// FetchMany issues one MGET. Nil replies are reported as invalid.
func (s *Store) FetchMany(ctx context.Context, keys []string, _ bool) (store.Result, error) {
	if len(keys) > store.MaxBatchSize {
		return store.Result{}, store.ErrBatchTooLarge
	}
	res := store.Result{Found: make(map[string]string, len(keys))}
	if len(keys) == 0 {
		return res, nil
	}

	wire := make([]string, len(keys))
	for i, k := range keys {
		wire[i] = s.key(k)
	}
	vals, err := s.rdb.MGet(ctx, wire...).Result()
	if err != nil {
		return store.Result{}, err
	}
	if len(vals) != len(keys) {
		return store.Result{}, fmt.Errorf("redis store: MGET returned %d values for %d keys", len(vals), len(keys))
	}

	for i, v := range vals {
		switch vv := v.(type) {
		case nil:
			res.Invalid = append(res.Invalid, keys[i])
		case string:
			res.Found[keys[i]] = vv
		case []byte:
			res.Found[keys[i]] = string(vv)
		default:
			res.Found[keys[i]] = fmt.Sprint(vv)
		}
	}
	return res, nil
}

// Close releases the client only when this store owns it.
// Repeated calls are no-ops.
func (s *Store) Close(context.Context) error {
	if s.closeClient {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
