package ggbexport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"slices"
	"sync"
)

// Pool sizing constants.
const (
	// MinPoolSize ensures at least one session is available.
	MinPoolSize = 1

	// MaxPoolSize caps browser instances to limit memory (~200MB each).
	MaxPoolSize = 8

	// cpuDivisor leaves headroom for Chrome child processes.
	cpuDivisor = 2
)

// SessionPool hands out sessions, each running on its own browser, so that
// one request at a time uses a given engine page.
//
// Sessions are created lazily on first acquire. The pool injects their page,
// so sessions never own the browser; the pool does. Released sessions come
// back through the pool's release channel.
type SessionPool struct {
	size    int
	opts    []Option
	logger  *slog.Logger
	newSlot bootFunc

	// idle receives sessions on Release. It is never closed: sessions may
	// still send after Close.
	idle chan *Session
	done chan struct{}

	mu      sync.Mutex
	created int
	slots   map[*Session]io.Closer
	closed  bool
}

// PoolStats is a snapshot of pool occupancy.
type PoolStats struct {
	Size    int
	Created int
	Idle    int
}

// NewSessionPool creates a pool with capacity for cfg.Concurrency sessions.
// Concurrency below 1 becomes 1. opts configure every session (logger,
// bundle path, timeouts); page and release channel are managed by the pool.
// Panics if cfg.EngineSource is not a known source.
func NewSessionPool(cfg Config, opts ...Option) *SessionPool {
	if cfg.Concurrency < MinPoolSize {
		cfg.Concurrency = MinPoolSize
	}
	if cfg.EngineSource == "" {
		cfg.EngineSource = EngineLocal
	}

	opts = append([]Option{WithConfig(cfg)}, opts...)
	tmpl := newSession(opts...)

	p := &SessionPool{
		size:   cfg.Concurrency,
		opts:   opts,
		logger: tmpl.logger,
		idle:   make(chan *Session, cfg.Concurrency),
		done:   make(chan struct{}),
		slots:  make(map[*Session]io.Closer, cfg.Concurrency),
	}

	sessionCfg, logger := tmpl.cfg, tmpl.logger
	p.newSlot = func(ctx context.Context) (enginePage, io.Closer, error) {
		ctx, cancel := context.WithTimeout(ctx, sessionCfg.bootTimeout)
		defer cancel()
		return launchEngine(ctx, sessionCfg, logger)
	}
	return p
}

// Acquire returns an idle session, creating one if capacity remains.
// Blocks while all sessions are in use, until ctx ends or the pool closes.
// Sessions that failed are discarded and their slot is recreated.
func (p *SessionPool) Acquire(ctx context.Context) (*Session, error) {
	for {
		if p.isClosed() {
			return nil, ErrPoolClosed
		}

		// Try to get an existing session (non-blocking)
		select {
		case s := <-p.idle:
			if s.usable() {
				s.checkout()
				return s, nil
			}
			p.discard(s)
			continue
		default:
		}

		// Check if we can create a new session
		p.mu.Lock()
		if p.created < p.size {
			p.created++
			p.mu.Unlock()

			// Create new session outside the lock
			s, err := p.spawn(ctx)
			if err != nil {
				p.mu.Lock()
				p.created--
				p.mu.Unlock()
				return nil, err
			}
			return s, nil
		}
		p.mu.Unlock()

		// All sessions created, wait for one to be released
		select {
		case s := <-p.idle:
			if s.usable() {
				s.checkout()
				return s, nil
			}
			p.discard(s)
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-p.done:
			return nil, ErrPoolClosed
		}
	}
}

// spawn launches a browser slot and wraps it in a session.
func (p *SessionPool) spawn(ctx context.Context) (*Session, error) {
	page, closer, err := p.newSlot(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}

	opts := append(slices.Clone(p.opts), withEnginePage(page), WithReleaseChannel(p.idle))
	s := New(opts...)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = s.Close()
		_ = closer.Close()
		return nil, ErrPoolClosed
	}
	p.slots[s] = closer
	p.mu.Unlock()

	if err := s.Ready(ctx); err != nil {
		// The caller gives the slot back; only drop the bookkeeping here.
		p.mu.Lock()
		delete(p.slots, s)
		p.mu.Unlock()
		_ = s.Close()
		_ = closer.Close()
		return nil, err
	}

	p.logger.Debug("pool session created", slog.String("session_id", s.ID()))
	return s, nil
}

// discard drops a session and closes its browser, freeing the slot.
func (p *SessionPool) discard(s *Session) {
	p.mu.Lock()
	closer, ok := p.slots[s]
	if ok {
		delete(p.slots, s)
		p.created--
	}
	p.mu.Unlock()

	_ = s.Close()
	if closer != nil {
		if err := closer.Close(); err != nil {
			p.logger.Warn("closing discarded session browser", slog.String("session_id", s.ID()), slog.Any("error", err))
		}
	}
	p.logger.Debug("pool session discarded", slog.String("session_id", s.ID()))
}

// Release returns a session to the pool by releasing it.
func (p *SessionPool) Release(ctx context.Context, s *Session) error {
	return s.Release(ctx)
}

// Close releases all browser resources.
// Returns an aggregated error if multiple browsers fail to close.
func (p *SessionPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.done)
	slots := p.slots
	p.slots = make(map[*Session]io.Closer)
	p.mu.Unlock()

	var errs []error
	for s, closer := range slots {
		_ = s.Close()
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *SessionPool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Size returns the pool capacity.
func (p *SessionPool) Size() int {
	return p.size
}

// Stats returns current pool occupancy.
func (p *SessionPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{Size: p.size, Created: p.created, Idle: len(p.idle)}
}

// ResolvePoolSize determines the optimal pool size.
// Priority: explicit workers > GOMAXPROCS-based calculation.
// Exported for use by servers and CLIs.
func ResolvePoolSize(workers int) int {
	// Explicit value takes priority
	if workers > 0 {
		return workers
	}

	// Auto-calculate based on GOMAXPROCS (adjusted by automaxprocs for containers)
	available := runtime.GOMAXPROCS(0)
	n := available / cpuDivisor

	if n < MinPoolSize {
		return MinPoolSize
	}
	if n > MaxPoolSize {
		return MaxPoolSize
	}
	return n
}
