package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"

	"github.com/jonwraymond/paramcache/config"
	"github.com/jonwraymond/paramcache/health"
	"github.com/jonwraymond/paramcache/observe"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "keep the configured parameters warm and serve health and metrics",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "listen address",
				Value:   ":8080",
				Sources: cli.EnvVars("PARAMCACHE_ADDR"),
			},
			&cli.DurationFlag{
				Name:  "warm-interval",
				Usage: "refresh every group and parameter this often; 0 disables",
				Value: time.Minute,
			},
			&cli.DurationFlag{
				Name:  "shutdown-timeout",
				Usage: "time allowed for in-flight requests on shutdown",
				Value: 10 * time.Second,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withRuntime(ctx, cmd, func(rt *config.Runtime) error {
				return serve(ctx, rt, cmd.String("addr"), cmd.Duration("warm-interval"), cmd.Duration("shutdown-timeout"))
			})
		},
	}
}

func newMux(rt *config.Runtime) *http.ServeMux {
	mux := http.NewServeMux()
	health.RegisterHandlers(mux, rt.Health())
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func serve(ctx context.Context, rt *config.Runtime, addr string, warmEvery, shutdownTimeout time.Duration) error {
	logger := rt.Logger()
	warm := func() {
		if err := rt.Warm(ctx); err != nil && ctx.Err() == nil {
			logger.Error(ctx, "warm-up failed", observe.Field{Key: "error", Value: err.Error()})
		}
	}
	warm()

	if warmEvery > 0 {
		go func() {
			t := time.NewTicker(warmEvery)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					warm()
				}
			}
		}()
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           newMux(rt),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info(ctx, "listening", observe.Field{Key: "addr", Value: addr})
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	logger.Info(shutdownCtx, "shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
