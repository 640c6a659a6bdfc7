package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	ggbexport "github.com/alnah/go-ggbexport"
	"github.com/alnah/go-ggbexport/internal/config"
	"github.com/alnah/go-ggbexport/internal/server"
)

// Backend renders documents on a pool of sessions.
type Backend interface {
	server.Renderer
	Size() int
	Stats() ggbexport.PoolStats
	Close() error
}

// poolBackend pairs a session pool with the renderer that borrows from it.
type poolBackend struct {
	*ggbexport.Renderer
	pool *ggbexport.SessionPool
}

func (b *poolBackend) Size() int                  { return b.pool.Size() }
func (b *poolBackend) Stats() ggbexport.PoolStats { return b.pool.Stats() }
func (b *poolBackend) Close() error               { return b.pool.Close() }

// newPoolBackend builds the production backend described by cfg.
// cfg must have passed Validate.
func newPoolBackend(cfg *config.Config, logger *slog.Logger) Backend {
	pool := ggbexport.NewSessionPool(cfg.LibraryConfig(), cfg.SessionOptions(logger)...)

	opts := []ggbexport.RendererOption{ggbexport.WithRendererLogger(logger)}
	if d := cfg.RenderTimeout(); d > 0 {
		opts = append(opts, ggbexport.WithRenderTimeout(d))
	}
	return &poolBackend{Renderer: ggbexport.NewRenderer(pool, opts...), pool: pool}
}

// Environment holds injectable dependencies for testability.
// Includes I/O, time, configuration, and the render backend factory.
type Environment struct {
	Now        func() time.Time
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
	NewBackend func(cfg *config.Config, logger *slog.Logger) Backend
	Serve      func(ctx context.Context, s *server.Server) error
	Config     *config.Config // Resolved once per command, read by error hints
}

// DefaultEnv returns the production environment.
func DefaultEnv() *Environment {
	return &Environment{
		Now:        time.Now,
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		NewBackend: newPoolBackend,
		Serve: func(ctx context.Context, s *server.Server) error {
			return s.ListenAndServe(ctx)
		},
		Config: config.DefaultConfig(),
	}
}
