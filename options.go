package ggbexport

import (
	"log/slog"
	"time"

	"github.com/go-rod/rod"
)

// Option configures a Session.
type Option func(*Session)

// sessionConfig holds internal configuration for Session.
type sessionConfig struct {
	config          Config
	bundlePath      string
	remoteURL       string
	browserBin      string
	noSandbox       bool
	bootTimeout     time.Duration
	svgTimeout      time.Duration
	svgPollInterval time.Duration
	dpi             int
}

// Defaults used when no option overrides them.
const (
	defaultBootTimeout     = 60 * time.Second
	defaultSVGTimeout      = 5 * time.Second
	defaultSVGPollInterval = 25 * time.Millisecond
	defaultDPI             = 300
)

func defaultSessionConfig() sessionConfig {
	return sessionConfig{
		config:          DefaultConfig(),
		bundlePath:      DefaultBundlePath,
		remoteURL:       DefaultEngineURL,
		bootTimeout:     defaultBootTimeout,
		svgTimeout:      defaultSVGTimeout,
		svgPollInterval: defaultSVGPollInterval,
		dpi:             defaultDPI,
	}
}

// WithConfig sets the shared session configuration.
// Panics if the configuration is invalid (programmer error).
func WithConfig(cfg Config) Option {
	if err := cfg.Validate(); err != nil {
		panic("ggbexport: WithConfig: " + err.Error())
	}
	return func(s *Session) {
		s.cfg.config = cfg
	}
}

// WithEngineSource selects the local bundle or the remote engine page.
// Panics if src is not EngineLocal or EngineRemote.
func WithEngineSource(src EngineSource) Option {
	parsed, err := ParseEngineSource(string(src))
	if err != nil {
		panic("ggbexport: WithEngineSource: " + err.Error())
	}
	return func(s *Session) {
		s.cfg.config.EngineSource = parsed
	}
}

// WithID assigns the session identity instead of a random one.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// WithPage hands the session an existing page that already hosts the engine.
// The session skips navigation and never closes the page or its browser.
func WithPage(page *rod.Page) Option {
	return func(s *Session) {
		s.page = &rodPage{page: page}
		s.owned = false
	}
}

// withEnginePage injects a page implementation (tests, pool).
func withEnginePage(p enginePage) Option {
	return func(s *Session) {
		s.page = p
		s.owned = false
	}
}

// WithReleaseChannel sets the channel that receives the session on Release.
// The channel owner (typically a pool) must keep it drained or buffered.
func WithReleaseChannel(ch chan<- *Session) Option {
	return func(s *Session) {
		s.releases = ch
	}
}

// WithLogger sets the logger. Pass nil to disable logging.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l == nil {
			l = newNopLogger()
		}
		s.logger = l
	}
}

// WithBundlePath sets the local engine entry document.
func WithBundlePath(path string) Option {
	return func(s *Session) {
		s.cfg.bundlePath = path
	}
}

// WithRemoteURL sets the remote engine entry document.
func WithRemoteURL(url string) Option {
	return func(s *Session) {
		s.cfg.remoteURL = url
	}
}

// WithBrowserBin sets the Chrome binary. ROD_BROWSER_BIN is used when empty.
func WithBrowserBin(path string) Option {
	return func(s *Session) {
		s.cfg.browserBin = path
	}
}

// WithNoSandbox disables the Chrome sandbox (containers, CI).
func WithNoSandbox(disabled bool) Option {
	return func(s *Session) {
		s.cfg.noSandbox = disabled
	}
}

// WithBootTimeout bounds navigation plus engine detection.
// Panics if d <= 0 (programmer error, similar to time.NewTicker).
func WithBootTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("ggbexport: WithBootTimeout duration must be positive")
	}
	return func(s *Session) {
		s.cfg.bootTimeout = d
	}
}

// WithSVGTimeout bounds the wait for SVG markup after an export.
// Panics if d <= 0.
func WithSVGTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("ggbexport: WithSVGTimeout duration must be positive")
	}
	return func(s *Session) {
		s.cfg.svgTimeout = d
	}
}

// WithSVGPollInterval sets how often the SVG container is checked.
// Panics if d <= 0.
func WithSVGPollInterval(d time.Duration) Option {
	if d <= 0 {
		panic("ggbexport: WithSVGPollInterval duration must be positive")
	}
	return func(s *Session) {
		s.cfg.svgPollInterval = d
	}
}

// WithDPI sets the default PNG resolution.
// Panics if dpi <= 0.
func WithDPI(dpi int) Option {
	if dpi <= 0 {
		panic("ggbexport: WithDPI must be positive")
	}
	return func(s *Session) {
		s.cfg.dpi = dpi
	}
}
