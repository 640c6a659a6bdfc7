package main

import (
	"context"
	"errors"

	flag "github.com/spf13/pflag"

	"github.com/alnah/go-ggbexport/internal/server"
)

// runServe exposes the render pool over HTTP until ctx is cancelled.
func runServe(ctx context.Context, args []string, env *Environment) error {
	flags, err := parseServeFlags(args)
	if errors.Is(err, flag.ErrHelp) {
		printServeUsage(env.Stdout)
		return nil
	}
	if err != nil {
		return err
	}

	cfg, err := resolveConfig(flags.common.config)
	if err != nil {
		return err
	}
	mergeCommonFlags(&flags.common, cfg)
	mergeEngineFlags(&flags.engine, cfg)
	if flags.addr != "" {
		cfg.Server.Addr = flags.addr
	}
	if flags.maxBodyBytes != 0 {
		cfg.Server.MaxBodyBytes = flags.maxBodyBytes
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	env.Config = cfg

	logger, err := cfg.Log.NewLogger(env.Stderr)
	if err != nil {
		return err
	}

	backend := env.NewBackend(cfg, logger)
	defer func() { _ = backend.Close() }()

	srv := server.New(backend, server.Config{
		Addr:         cfg.Server.Addr,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Stats:        backend.Stats,
		Logger:       logger,
	})
	return env.Serve(ctx, srv)
}
