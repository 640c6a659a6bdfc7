package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	ggbexport "github.com/alnah/go-ggbexport"
	"github.com/alnah/go-ggbexport/internal/fileutil"
	"github.com/alnah/go-ggbexport/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrInvalidValue    = errors.New("invalid config value")
)

// Field length limits.
const (
	MaxPathLength   = 4096
	MaxURLLength    = 2048 // Browser limit
	MaxAddrLength   = 256
	MaxFormatLength = 16
)

// Limits on numeric settings.
const (
	MaxDPI          = 2400
	MaxViewportSide = 8192
	MaxWorkers      = 64
)

// Config holds all settings for the CLI and the HTTP server.
type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Browser  BrowserConfig  `yaml:"browser"`
	Pool     PoolConfig     `yaml:"pool"`
	Timeouts TimeoutsConfig `yaml:"timeouts"`
	Export   ExportConfig   `yaml:"export"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// EngineConfig selects the engine entry document.
type EngineConfig struct {
	Source     string `yaml:"source"`     // "local" or "remote"
	BundlePath string `yaml:"bundlePath"` // local entry document
	RemoteURL  string `yaml:"remoteURL"`  // remote entry document
}

// BrowserConfig controls the Chrome launch.
type BrowserConfig struct {
	Bin       string `yaml:"bin"`       // empty = ROD_BROWSER_BIN or rod-managed Chromium
	NoSandbox bool   `yaml:"noSandbox"` // containers, CI
}

// PoolConfig sizes the session pool.
type PoolConfig struct {
	Workers int `yaml:"workers"` // 0 = auto from GOMAXPROCS
}

// TimeoutsConfig holds Go duration strings ("90s", "2m").
type TimeoutsConfig struct {
	Boot   string `yaml:"boot"`   // browser launch and engine detection
	Render string `yaml:"render"` // one render request, empty = none
	SVG    string `yaml:"svg"`    // SVG callback wait
}

// ExportConfig holds render defaults.
type ExportConfig struct {
	Format string `yaml:"format"` // empty = svg
	DPI    int    `yaml:"dpi"`    // PNG resolution
	Width  int    `yaml:"width"`  // viewport width for commands
	Height int    `yaml:"height"` // viewport height for commands
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string `yaml:"addr"`
	MaxBodyBytes int64  `yaml:"maxBodyBytes"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// DefaultConfig returns the settings used when no config file is given.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Source:     string(ggbexport.EngineLocal),
			BundlePath: ggbexport.DefaultBundlePath,
			RemoteURL:  ggbexport.DefaultEngineURL,
		},
		Timeouts: TimeoutsConfig{
			Boot:   "60s",
			Render: "2m",
			SVG:    "5s",
		},
		Export: ExportConfig{
			Format: string(ggbexport.FormatSVG),
			DPI:    300,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			MaxBodyBytes: 32 << 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks values and lengths. Called by LoadConfig, and available
// to callers that build a Config by hand or apply overrides.
func (c *Config) Validate() error {
	if _, err := ggbexport.ParseEngineSource(c.Engine.Source); err != nil {
		return fmt.Errorf("engine.source: %w", err)
	}
	if err := validateFieldLength("engine.bundlePath", c.Engine.BundlePath, MaxPathLength); err != nil {
		return err
	}
	if err := validateFieldLength("engine.remoteURL", c.Engine.RemoteURL, MaxURLLength); err != nil {
		return err
	}
	if c.Engine.RemoteURL != "" && !fileutil.IsURL(c.Engine.RemoteURL) {
		return fmt.Errorf("%w: engine.remoteURL %q must be http(s)", ErrInvalidValue, c.Engine.RemoteURL)
	}
	if err := validateFieldLength("browser.bin", c.Browser.Bin, MaxPathLength); err != nil {
		return err
	}

	if c.Pool.Workers < 0 || c.Pool.Workers > MaxWorkers {
		return fmt.Errorf("%w: pool.workers must be between 0 and %d, got %d", ErrInvalidValue, MaxWorkers, c.Pool.Workers)
	}

	for name, value := range map[string]string{
		"timeouts.boot":   c.Timeouts.Boot,
		"timeouts.render": c.Timeouts.Render,
		"timeouts.svg":    c.Timeouts.SVG,
	} {
		if _, err := parseDuration(name, value); err != nil {
			return err
		}
	}

	if err := validateFieldLength("export.format", c.Export.Format, MaxFormatLength); err != nil {
		return err
	}
	if c.Export.DPI < 0 || c.Export.DPI > MaxDPI {
		return fmt.Errorf("%w: export.dpi must be between 0 and %d, got %d", ErrInvalidValue, MaxDPI, c.Export.DPI)
	}
	if c.Export.Width < 0 || c.Export.Width > MaxViewportSide {
		return fmt.Errorf("%w: export.width must be between 0 and %d, got %d", ErrInvalidValue, MaxViewportSide, c.Export.Width)
	}
	if c.Export.Height < 0 || c.Export.Height > MaxViewportSide {
		return fmt.Errorf("%w: export.height must be between 0 and %d, got %d", ErrInvalidValue, MaxViewportSide, c.Export.Height)
	}

	if err := validateFieldLength("server.addr", c.Server.Addr, MaxAddrLength); err != nil {
		return err
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("%w: server.maxBodyBytes must not be negative", ErrInvalidValue)
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q (must be text or json)", ErrInvalidValue, c.Log.Format)
	}

	return nil
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// parseDuration parses a positive duration. Empty yields zero.
func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidValue, field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidValue, field, value)
	}
	return d, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: log.level %q", ErrInvalidValue, s)
	}
	return level, nil
}

// RenderTimeout returns the per-request timeout, zero when unset.
func (c *Config) RenderTimeout() time.Duration {
	d, _ := parseDuration("timeouts.render", c.Timeouts.Render)
	return d
}

// LibraryConfig returns the pool configuration. Zero workers are sized
// from GOMAXPROCS.
func (c *Config) LibraryConfig() ggbexport.Config {
	src, _ := ggbexport.ParseEngineSource(c.Engine.Source)
	return ggbexport.Config{
		Concurrency:  ggbexport.ResolvePoolSize(c.Pool.Workers),
		EngineSource: src,
	}
}

// SessionOptions converts the config to session options.
// The config must have passed Validate.
func (c *Config) SessionOptions(logger *slog.Logger) []ggbexport.Option {
	opts := []ggbexport.Option{
		ggbexport.WithLogger(logger),
		ggbexport.WithNoSandbox(c.Browser.NoSandbox),
	}
	if c.Engine.BundlePath != "" {
		opts = append(opts, ggbexport.WithBundlePath(c.Engine.BundlePath))
	}
	if c.Engine.RemoteURL != "" {
		opts = append(opts, ggbexport.WithRemoteURL(c.Engine.RemoteURL))
	}
	if c.Browser.Bin != "" {
		opts = append(opts, ggbexport.WithBrowserBin(c.Browser.Bin))
	}
	if d, _ := parseDuration("timeouts.boot", c.Timeouts.Boot); d > 0 {
		opts = append(opts, ggbexport.WithBootTimeout(d))
	}
	if d, _ := parseDuration("timeouts.svg", c.Timeouts.SVG); d > 0 {
		opts = append(opts, ggbexport.WithSVGTimeout(d))
	}
	if c.Export.DPI > 0 {
		opts = append(opts, ggbexport.WithDPI(c.Export.DPI))
	}
	return opts
}

// NewLogger builds the slog logger described by the log section.
func (c LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Keys missing from the file keep their DefaultConfig values.
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	configPath := nameOrPath
	if !strings.ContainsAny(nameOrPath, "/\\") {
		var err error
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	cfg := DefaultConfig()
	if err := yamlutil.DecodeFile(configPath, cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveConfigPath searches for a config file by name.
// Tries extensions in order: .yaml, .yml
// Tries locations in order: current directory, ~/.config/go-ggbexport/
func resolveConfigPath(name string) (string, error) {
	extensions := []string{".yaml", ".yml"}
	tried := make([]string, 0, len(extensions)*2)

	for _, ext := range extensions {
		local := name + ext
		if fileutil.FileExists(local) {
			return local, nil
		}
		tried = append(tried, local)
	}

	if dir, err := os.UserConfigDir(); err == nil {
		for _, ext := range extensions {
			userPath := filepath.Join(dir, "go-ggbexport", name+ext)
			if fileutil.FileExists(userPath) {
				return userPath, nil
			}
			tried = append(tried, userPath)
		}
	}

	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(tried, ", "))
}
