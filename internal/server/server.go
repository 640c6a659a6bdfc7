// Package server exposes rendering over HTTP.
//
// Routes:
//
//	POST /export-svg        {"data": "<base64 ggb>"} -> {"data": "<svg data URI>", "message": "created"}
//	POST /export            {"data", "format", "commands", "width", "height"} -> data URI JSON
//	POST /export/{format}   same body, raw bytes with the format's MIME type
//	GET  /healthz           pool occupancy
//	GET  /metrics           Prometheus metrics
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	ggbexport "github.com/alnah/go-ggbexport"
)

// Renderer renders one request. *ggbexport.Renderer implements it.
type Renderer interface {
	Render(ctx context.Context, req ggbexport.Request) (string, error)
	RenderBytes(ctx context.Context, req ggbexport.Request) ([]byte, ggbexport.Format, error)
}

// Compile-time interface check.
var _ Renderer = (*ggbexport.Renderer)(nil)

// Default server settings.
const (
	DefaultAddr         = ":8080"
	DefaultMaxBodyBytes = 32 << 20
	shutdownTimeout     = 15 * time.Second
)

// Config configures the HTTP server.
type Config struct {
	// Addr to listen on (default: :8080)
	Addr string

	// MaxBodyBytes caps request bodies (default: 32MB)
	MaxBodyBytes int64

	// Stats reports pool occupancy for /healthz and metrics (optional)
	Stats func() ggbexport.PoolStats

	// Logger for request logs (optional)
	Logger *slog.Logger

	// Registry receives the server metrics (default: a new registry)
	Registry *prometheus.Registry
}

// Server serves render requests over HTTP.
type Server struct {
	renderer Renderer
	stats    func() ggbexport.PoolStats
	logger   *slog.Logger
	metrics  *metrics
	registry *prometheus.Registry
	maxBody  int64
	addr     string
	router   chi.Router
}

// New creates a server on top of renderer.
func New(renderer Renderer, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	s := &Server{
		renderer: renderer,
		stats:    cfg.Stats,
		logger:   cfg.Logger,
		registry: cfg.Registry,
		maxBody:  cfg.MaxBodyBytes,
		addr:     cfg.Addr,
	}
	s.metrics = newMetrics(cfg.Registry, cfg.Stats)
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(s.limitBody)
		r.Post("/export-svg", s.handleExportSVG)
		r.Post("/export", s.handleExport)
		r.Post("/export/{format}", s.handleExportRaw)
	})
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", slog.String("addr", s.addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	s.logger.Info("server shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

// exportRequest is the JSON body of the export routes.
type exportRequest struct {
	Data     string   `json:"data"`
	Format   string   `json:"format,omitempty"`
	Commands []string `json:"commands,omitempty"`
	Width    int      `json:"width,omitempty"`
	Height   int      `json:"height,omitempty"`
}

func (e exportRequest) toRequest() ggbexport.Request {
	return ggbexport.Request{
		Document: e.Data,
		Format:   e.Format,
		Commands: e.Commands,
		Width:    e.Width,
		Height:   e.Height,
	}
}

// exportResponse is returned by the JSON export routes.
type exportResponse struct {
	Data     string `json:"data"`
	Format   string `json:"format,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
	Message  string `json:"message"`
}

func (s *Server) handleExportSVG(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decode(w, r)
	if !ok {
		return
	}
	req := body.toRequest()
	req.Format = string(ggbexport.FormatSVG)

	uri, err := s.render(r.Context(), req)
	if err != nil {
		s.respondRenderError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, exportResponse{Data: uri, Message: "created"})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decode(w, r)
	if !ok {
		return
	}
	req := body.toRequest()
	f := ggbexport.RequestFormat(req.Format)

	uri, err := s.render(r.Context(), req)
	if err != nil {
		s.respondRenderError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, exportResponse{
		Data:     uri,
		Format:   string(f),
		MIMEType: f.MIMEType(),
		Message:  "created",
	})
}

func (s *Server) handleExportRaw(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decode(w, r)
	if !ok {
		return
	}
	req := body.toRequest()
	req.Format = chi.URLParam(r, "format")

	start := time.Now()
	data, f, err := s.renderer.RenderBytes(r.Context(), req)
	s.metrics.observe(ggbexport.RequestFormat(req.Format), err, time.Since(start))
	if err != nil {
		s.respondRenderError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", f.MIMEType())
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="export.%s"`, f.Extension()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type healthResponse struct {
	Status string               `json:"status"`
	Pool   *ggbexport.PoolStats `json:"pool,omitempty"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.stats != nil {
		st := s.stats()
		resp.Pool = &st
	}
	respondJSON(w, http.StatusOK, resp)
}

// render calls the renderer and records metrics.
func (s *Server) render(ctx context.Context, req ggbexport.Request) (string, error) {
	start := time.Now()
	uri, err := s.renderer.Render(ctx, req)
	s.metrics.observe(ggbexport.RequestFormat(req.Format), err, time.Since(start))
	return uri, err
}

// decode parses the JSON body, answering 400 or 413 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request) (exportRequest, bool) {
	var body exportRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			respondError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit))
		case errors.Is(err, io.EOF):
			respondError(w, http.StatusBadRequest, errInvalidData)
		default:
			respondError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON body: %w", err))
		}
		return exportRequest{}, false
	}
	return body, true
}

// Client-facing messages. Server faults never expose engine or browser
// details; those go to the log.
var (
	errInvalidData       = errors.New("invalid data provided")
	errRenderFailed      = errors.New("rendering failed")
	errRenderTimeout     = errors.New("rendering timed out")
	errEngineUnavailable = errors.New("rendering engine unavailable")
)

// respondRenderError maps render errors to HTTP statuses.
func (s *Server) respondRenderError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("render failed",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Any("error", err))
	}
	respondError(w, status, clientError(status))
}

// clientError returns the fixed message sent for status.
func clientError(status int) error {
	switch status {
	case http.StatusBadRequest:
		return errInvalidData
	case http.StatusGatewayTimeout:
		return errRenderTimeout
	case http.StatusServiceUnavailable:
		return errEngineUnavailable
	default:
		return errRenderFailed
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ggbexport.ErrEmptyDocument):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ggbexport.ErrSVGTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ggbexport.ErrPoolClosed), errors.Is(err, ggbexport.ErrEngineUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.requests.WithLabelValues(route, strconv.Itoa(ww.Status())).Inc()
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}
