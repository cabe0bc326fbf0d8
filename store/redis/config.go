package redis

import (
	"context"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jonwraymond/paramcache/store"
)

func init() {
	store.DefaultRegistry.MustRegister("redis", Factory)
}

// Factory builds a Store that owns a new client. Options: "addr" (default
// localhost:6379), "username", "password", "db", "prefix".
func Factory(_ context.Context, opts store.Options) (store.Store, error) {
	addr, err := opts.String("addr", "localhost:6379")
	if err != nil {
		return nil, err
	}
	username, err := opts.String("username", "")
	if err != nil {
		return nil, err
	}
	password, err := opts.String("password", "")
	if err != nil {
		return nil, err
	}
	db, err := opts.Int("db", 0)
	if err != nil {
		return nil, err
	}
	prefix, err := opts.String("prefix", "")
	if err != nil {
		return nil, err
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
		DB:       db,
	})
	return New(Config{Client: client, Prefix: prefix, CloseClient: true})
}
