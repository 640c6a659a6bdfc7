package ggbexport

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// releaseTimeout bounds the engine reset done when a request finishes,
// including requests whose context was already cancelled.
const releaseTimeout = 10 * time.Second

// Request describes one document to render.
type Request struct {
	Document string   // base64-encoded .ggb document (required)
	Format   string   // output format name; empty means svg
	Commands []string // optional engine commands run after loading
	Width    int      // viewport width for Commands (default 600)
	Height   int      // viewport height for Commands (default 400)
}

// Renderer runs render requests on sessions borrowed from a pool.
type Renderer struct {
	pool    *SessionPool
	logger  *slog.Logger
	timeout time.Duration
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithRendererLogger sets the renderer logger. Pass nil to disable logging.
func WithRendererLogger(l *slog.Logger) RendererOption {
	return func(r *Renderer) {
		if l == nil {
			l = newNopLogger()
		}
		r.logger = l
	}
}

// WithRenderTimeout bounds each Render call, waiting for a session included.
// Panics if d <= 0.
func WithRenderTimeout(d time.Duration) RendererOption {
	if d <= 0 {
		panic("ggbexport: WithRenderTimeout duration must be positive")
	}
	return func(r *Renderer) {
		r.timeout = d
	}
}

// NewRenderer creates a Renderer on top of pool. The caller keeps ownership
// of the pool and closes it.
func NewRenderer(pool *SessionPool, opts ...RendererOption) *Renderer {
	r := &Renderer{pool: pool, logger: newNopLogger()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RequestFormat resolves the format of a request: empty selects SVG,
// anything else goes through ParseFormat (unknown names render as PNG).
func RequestFormat(name string) Format {
	if name == "" {
		return FormatSVG
	}
	return ParseFormat(name)
}

// Render loads req.Document and returns the export as a data URI.
// An empty document fails with ErrEmptyDocument before any session is used.
func (r *Renderer) Render(ctx context.Context, req Request) (string, error) {
	var out string
	_, err := r.run(ctx, req, func(ctx context.Context, s *Session, f Format) error {
		var err error
		out, err = s.ExportDataURI(ctx, f)
		return err
	})
	return out, err
}

// RenderBytes is Render returning decoded bytes and the resolved format.
func (r *Renderer) RenderBytes(ctx context.Context, req Request) ([]byte, Format, error) {
	var out []byte
	f, err := r.run(ctx, req, func(ctx context.Context, s *Session, f Format) error {
		var err error
		out, err = s.Export(ctx, f)
		return err
	})
	return out, f, err
}

// run borrows a session, loads the document, applies commands and calls
// export. The session is always released, even when ctx is done.
// Recovers from internal panics to prevent crashes from propagating to callers.
func (r *Renderer) run(ctx context.Context, req Request, export func(context.Context, *Session, Format) error) (f Format, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("internal error: %v", rec)
		}
	}()

	if req.Document == "" {
		return "", ErrEmptyDocument
	}
	f = RequestFormat(req.Format)

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	s, err := r.pool.Acquire(ctx)
	if err != nil {
		return f, fmt.Errorf("acquiring session: %w", err)
	}
	log := r.logger.With(slog.String("session_id", s.ID()), slog.String("format", string(f)))

	defer func() {
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if relErr := s.Release(relCtx); relErr != nil {
			log.Warn("releasing session", slog.Any("error", relErr))
		}
	}()

	if err := s.LoadDocument(ctx, req.Document); err != nil {
		return f, fmt.Errorf("loading document: %w", err)
	}

	if len(req.Commands) > 0 || req.Width > 0 || req.Height > 0 {
		if err := s.RunCommands(ctx, req.Commands, req.Width, req.Height); err != nil {
			return f, fmt.Errorf("running commands: %w", err)
		}
	}

	if err := export(ctx, s, f); err != nil {
		return f, fmt.Errorf("exporting %s: %w", f, err)
	}

	log.Info("document rendered", slog.Duration("elapsed", time.Since(start)))
	return f, nil
}
