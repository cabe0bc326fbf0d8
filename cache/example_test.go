package cache_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/paramcache/cache"
	"github.com/jonwraymond/paramcache/store"
)

func ExampleParameter() {
	s := store.NewMemoryStore(map[string]string{"/app/feature": "on"})

	p, err := cache.New(s, "/app/feature", cache.WithMaxAge(5*time.Minute))
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	v, _ := p.Value(context.Background())
	fmt.Println(v)
	// Output: on
}

func ExampleGroup() {
	s := store.NewMemoryStore(map[string]string{
		"/db/host": "db.internal",
		"/db/port": "5432",
	})

	g, _ := cache.NewGroup(s, cache.WithGroupName("db"), cache.WithGroupMaxAge(time.Minute))
	host, _ := g.Add("/db/host")
	port, _ := g.Add("/db/port")
	_, _ = g.Add("/db/missing")

	ctx := context.Background()
	h, _ := host.Value(ctx)
	p, _ := port.Value(ctx)
	fmt.Println(h + ":" + p)

	err := g.Refresh(ctx)
	fmt.Println(errors.Is(err, cache.ErrInvalidParam))
	// Output:
	// db.internal:5432
	// true
}

func ExampleRefreshOnError() {
	s := store.NewMemoryStore(map[string]string{"/api/token": "expired"})
	token, _ := cache.New(s, "/api/token")
	ctx := context.Background()
	_, _ = token.Value(ctx)

	s.Set("/api/token", "fresh")
	errUnauthorized := errors.New("401")

	call := cache.RefreshOnError(token, func(ctx context.Context, isRetry bool) (string, error) {
		t, _ := token.Value(ctx)
		if t != "fresh" {
			return "", errUnauthorized
		}
		return "200 OK", nil
	}, cache.RefreshOnErrorConfig{
		RetryIf: cache.ErrorIs(errUnauthorized),
		OnError: func() { fmt.Println("token refreshed") },
	})

	status, err := call(ctx)
	fmt.Println(status, err)
	// Output:
	// token refreshed
	// 200 OK <nil>
}
