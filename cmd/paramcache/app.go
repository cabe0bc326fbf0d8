package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/jonwraymond/paramcache/config"
	"github.com/jonwraymond/paramcache/observe"
)

func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "paramcache",
		Usage:   "cached access to SSM parameters",
		Version: version,
		Writer:  out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "configuration file",
				Sources: cli.EnvVars("PARAMCACHE_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "backend",
				Usage:   "store backend when no configuration file is given",
				Value:   "ssm",
				Sources: cli.EnvVars("PARAMCACHE_BACKEND"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "enable logging to stderr at this level (debug, info, warn, error)",
				Sources: cli.EnvVars("PARAMCACHE_LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			getCommand(),
			listCommand(),
			resolveCommand(),
			serveCommand(),
		},
	}
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "print parameter values",
		ArgsUsage: "NAME...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print a JSON object of name to value"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			names := cmd.Args().Slice()
			if len(names) == 0 {
				return cli.Exit("get: at least one parameter name is required", 2)
			}
			return withRuntime(ctx, cmd, func(rt *config.Runtime) error {
				values, err := rt.Values(ctx, names)
				if cmd.Bool("json") {
					enc := json.NewEncoder(cmd.Root().Writer)
					enc.SetIndent("", "  ")
					if encErr := enc.Encode(values); encErr != nil {
						return encErr
					}
					return err
				}
				for _, name := range names {
					if v, ok := values[name]; ok {
						fmt.Fprintf(cmd.Root().Writer, "%s=%s\n", name, v)
					}
				}
				return err
			})
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "list configured groups and parameters",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withRuntime(ctx, cmd, func(rt *config.Runtime) error {
				w := cmd.Root().Writer
				for _, g := range rt.Groups() {
					fmt.Fprintf(w, "group %s (max age %s)\n", g.Name(), g.MaxAge())
					for _, n := range g.Names() {
						fmt.Fprintf(w, "  %s\n", n)
					}
				}
				for _, pc := range rt.Config().Parameters {
					fmt.Fprintf(w, "parameter %s (max age %s)\n", pc.Name, pc.MaxAge)
				}
				return nil
			})
		},
	}
}

func resolveCommand() *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "expand environment variables and secretref:param: references",
		ArgsUsage: "VALUE...",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			values := cmd.Args().Slice()
			if len(values) == 0 {
				return cli.Exit("resolve: at least one value is required", 2)
			}
			return withRuntime(ctx, cmd, func(rt *config.Runtime) error {
				out, err := rt.Resolver().ResolveSlice(ctx, values)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.Root().Writer, strings.Join(out, "\n"))
				return err
			})
		},
	}
}

// loadConfig reads --config, or builds a configuration for --backend when
// no file is given.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := cmd.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.Parse(nil)
		if err == nil {
			cfg.Store.Backend = cmd.String("backend")
		}
	}
	if err != nil {
		return nil, err
	}

	if level := cmd.String("log-level"); level != "" {
		cfg.Observe.Logging.Enabled = true
		cfg.Observe.Logging.Level = level
		oc := cfg.ObserverConfig()
		if err := oc.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func withRuntime(ctx context.Context, cmd *cli.Command, fn func(*config.Runtime) error) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	rt, err := config.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(context.WithoutCancel(ctx)); cerr != nil {
			rt.Logger().Warn(ctx, "close failed", observe.Field{Key: "error", Value: cerr.Error()})
		}
	}()
	return fn(rt)
}
