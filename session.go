package ggbexport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/ysmood/gson"

	"github.com/alnah/go-ggbexport/internal/fileutil"
)

// Viewport defaults for RunCommands. The engine toolbar cannot be removed in
// app mode, so its height is added to every requested height.
const (
	defaultViewportWidth  = 600
	defaultViewportHeight = 400
	toolbarHeight         = 53
)

// bootFunc starts an engine page the session owns, along with whatever must
// be closed to release it.
type bootFunc func(ctx context.Context) (enginePage, io.Closer, error)

// Session owns one rendering engine instance hosted in a browser page.
// Create with New, wait with Ready, then load documents, export and Release.
//
// Operations on one session are serialized. Concurrency comes from running
// several sessions, each on its own browser (see SessionPool).
type Session struct {
	id       string
	cfg      sessionConfig
	logger   *slog.Logger
	releases chan<- *Session

	// owned is true when the session launched its own browser and must
	// close it on release. Injected pages are never owned.
	owned bool
	boot  bootFunc

	page    enginePage
	browser io.Closer

	booted     chan struct{}
	bootErr    error
	cancelBoot context.CancelFunc

	// mu serializes page operations.
	mu sync.Mutex

	stateMu sync.Mutex
	state   SessionState
	broken  bool
	// idle is set by Release and cleared when the session is used or handed
	// out again; a second Release in between is a no-op.
	idle bool

	closeOnce sync.Once
	closeErr  error
}

// New creates a session and starts its bootstrap in the background.
// Without WithPage the session launches its own browser and owns it.
// Call Ready to wait for the engine, or let the first operation wait for it.
func New(opts ...Option) *Session {
	s := newSession(opts...)
	s.start()
	return s
}

// newSession applies options without starting the bootstrap.
func newSession(opts ...Option) *Session {
	s := &Session{
		id:     uuid.NewString(),
		cfg:    defaultSessionConfig(),
		logger: newNopLogger(),
		owned:  true,
		booted: make(chan struct{}),
		state:  StateCreated,
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) start() {
	s.logger = s.logger.With(slog.String("session_id", s.id))
	if s.boot == nil {
		cfg, logger := s.cfg, s.logger
		s.boot = func(ctx context.Context) (enginePage, io.Closer, error) {
			return launchEngine(ctx, cfg, logger)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.bootTimeout)
	s.cancelBoot = cancel
	s.setState(StateBooting)
	go s.bootstrap(ctx)
}

// withBootFunc replaces the browser launch (tests).
func withBootFunc(fn bootFunc) Option {
	return func(s *Session) {
		s.boot = fn
		s.owned = true
	}
}

// ID returns the session identity.
func (s *Session) ID() string { return s.id }

// Owned reports whether the session owns its browser process.
func (s *Session) Owned() bool { return s.owned }

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *Session) setState(st SessionState) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}

// usable reports whether the session can serve another request.
func (s *Session) usable() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return !s.broken && s.state != StateReleased && s.state != StateFailed
}

// checkout clears the idle mark when a pool hands the session to a caller.
func (s *Session) checkout() {
	s.stateMu.Lock()
	s.idle = false
	s.stateMu.Unlock()
}

func (s *Session) isIdle() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.idle
}

func (s *Session) markBroken() {
	s.stateMu.Lock()
	s.broken = true
	s.state = StateFailed
	s.stateMu.Unlock()
}

func (s *Session) bootstrap(ctx context.Context) {
	defer close(s.booted)
	defer s.cancelBoot()

	if s.page == nil {
		page, closer, err := s.boot(ctx)
		if err != nil {
			s.failBoot(err)
			return
		}
		s.page, s.browser = page, closer
	} else if err := s.page.WaitUntilReady(ctx); err != nil {
		s.failBoot(err)
		return
	}

	s.setState(StateReady)
	s.logger.Debug("engine ready", slog.Bool("owned", s.owned))
}

func (s *Session) failBoot(err error) {
	s.bootErr = fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	s.markBroken()
	s.logger.Warn("engine bootstrap failed", slog.Any("error", err))
}

// launchEngine starts a browser and loads the engine entry document.
func launchEngine(ctx context.Context, cfg sessionConfig, logger *slog.Logger) (enginePage, io.Closer, error) {
	url, err := entryURL(cfg)
	if err != nil {
		return nil, nil, err
	}

	bp, err := launchBrowser(launchOptions{bin: cfg.browserBin, noSandbox: cfg.noSandbox})
	if err != nil {
		return nil, nil, err
	}

	page, err := openEnginePage(ctx, bp.browser, url, logger)
	if err != nil {
		_ = bp.Close()
		return nil, nil, err
	}
	return page, bp, nil
}

// entryURL resolves the engine entry document for the configured source.
func entryURL(cfg sessionConfig) (string, error) {
	if cfg.config.EngineSource == EngineRemote {
		return cfg.remoteURL, nil
	}

	abs, err := filepath.Abs(cfg.bundlePath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBundleNotFound, err)
	}
	if !fileutil.FileExists(abs) {
		return "", fmt.Errorf("%w: %s", ErrBundleNotFound, abs)
	}
	return "file://" + filepath.ToSlash(abs), nil
}

// Ready blocks until the engine scripting object is available.
// Returns an error wrapping ErrEngineUnavailable if bootstrap failed.
func (s *Session) Ready(ctx context.Context) error {
	select {
	case <-s.booted:
		return s.bootErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// begin waits for the engine and takes the operation lock.
// The returned function releases the lock.
func (s *Session) begin(ctx context.Context) (enginePage, func(), error) {
	if err := s.Ready(ctx); err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	if s.State() == StateReleased {
		s.mu.Unlock()
		return nil, nil, ErrSessionReleased
	}
	s.checkout()
	s.setState(StateActive)
	return s.page, s.mu.Unlock, nil
}

// invoke calls an engine member and wraps in-page failures.
func (s *Session) invoke(ctx context.Context, page enginePage, member string, args ...any) (gson.JSON, error) {
	v, err := page.Invoke(ctx, member, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return gson.JSON{}, ctxErr
		}
		return gson.JSON{}, fmt.Errorf("%w: %s: %v", ErrEngineExecution, member, err)
	}
	return v, nil
}

// call runs a single engine member under the operation lock.
func (s *Session) call(ctx context.Context, member string, args ...any) (gson.JSON, error) {
	page, done, err := s.begin(ctx)
	if err != nil {
		return gson.JSON{}, err
	}
	defer done()
	return s.invoke(ctx, page, member, args...)
}

// Invoke calls a named member of the engine object with args, or returns
// its value when the member is not a function.
func (s *Session) Invoke(ctx context.Context, member string, args ...any) (gson.JSON, error) {
	if strings.TrimSpace(member) == "" {
		return gson.JSON{}, fmt.Errorf("%w: empty member name", ErrEngineExecution)
	}
	return s.call(ctx, member, args...)
}

// LoadDocument replaces the engine state with a base64-encoded .ggb document.
// The payload structure is not checked here; the engine reports malformed input.
func (s *Session) LoadDocument(ctx context.Context, base64Doc string) error {
	if base64Doc == "" {
		return ErrEmptyDocument
	}
	_, err := s.call(ctx, "setBase64", base64Doc)
	return err
}

// RunCommands resizes the viewport and evaluates commands as one
// newline-joined batch. Zero width or height selects 600x400.
func (s *Session) RunCommands(ctx context.Context, commands []string, width, height int) error {
	if width <= 0 {
		width = defaultViewportWidth
	}
	if height <= 0 {
		height = defaultViewportHeight
	}

	page, done, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := page.SetViewport(ctx, width, height+toolbarHeight); err != nil {
		return fmt.Errorf("setting viewport: %w", err)
	}
	if len(commands) == 0 {
		return nil
	}

	v, err := s.invoke(ctx, page, "evalCommand", strings.Join(commands, "\n"))
	if err != nil {
		return err
	}
	if ok, isBool := v.Val().(bool); isBool && !ok {
		return fmt.Errorf("%w: evalCommand rejected %d command(s)", ErrEngineExecution, len(commands))
	}
	return nil
}

// Reset clears the loaded document without destroying the session.
func (s *Session) Reset(ctx context.Context) error {
	_, err := s.call(ctx, "reset")
	return err
}

// Release resets the engine, sends the session on the release channel (if
// any) and, when the session owns its browser, closes page and browser.
//
// Release is idempotent: a session already released, and not used or handed
// out since, returns nil without a second reset or notification. Owned
// sessions cannot be used again; sessions on injected pages stay reusable.
// A session whose reset fails is marked unusable so a pool can discard it.
func (s *Session) Release(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateReleased || s.isIdle() {
		return nil
	}

	var errs []error
	if err := s.Ready(ctx); err != nil {
		errs = append(errs, err)
		s.markBroken()
	} else if _, err := s.invoke(ctx, s.page, "reset"); err != nil {
		errs = append(errs, err)
		s.markBroken()
	} else if !s.owned {
		s.setState(StateReady)
	}

	if s.owned {
		s.setState(StateReleased)
	}
	s.stateMu.Lock()
	s.idle = true
	s.stateMu.Unlock()

	if !s.notify(ctx) {
		// Not queued: a retried Release must be able to deliver it.
		s.checkout()
	}

	if s.owned {
		errs = append(errs, s.Close())
	}

	s.logger.Debug("session released", slog.Bool("owned", s.owned))
	return errors.Join(errs...)
}

// notify sends the session to its release channel, giving up if ctx ends.
// Reports false when the notification was dropped.
func (s *Session) notify(ctx context.Context) bool {
	if s.releases == nil {
		return true
	}
	select {
	case s.releases <- s:
		return true
	case <-ctx.Done():
		s.logger.Warn("release notification dropped", slog.Any("error", ctx.Err()))
		return false
	}
}

// Close stops a pending bootstrap and, for owned sessions, closes the page
// and browser without resetting the engine or notifying anyone.
// Safe to call multiple times.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancelBoot()
		<-s.booted

		s.setState(StateReleased)
		if !s.owned {
			return
		}

		var errs []error
		if s.page != nil {
			errs = append(errs, s.page.Close())
		}
		if s.browser != nil {
			errs = append(errs, s.browser.Close())
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
