package config

// Notes:
// - LoadConfig by name searches the working directory; those tests use
//   t.Chdir and therefore do not run in parallel.
// - The ~/.config/go-ggbexport lookup is not exercised: it depends on the
//   user's real config directory.

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ggbexport "github.com/alnah/go-ggbexport"
)

// ---------------------------------------------------------------------------
// TestDefaultConfig
// ---------------------------------------------------------------------------

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error = %v", err)
	}
	if cfg.Engine.Source != "local" {
		t.Errorf("Engine.Source = %q, want local", cfg.Engine.Source)
	}
	if cfg.Engine.RemoteURL != ggbexport.DefaultEngineURL {
		t.Errorf("Engine.RemoteURL = %q, want %q", cfg.Engine.RemoteURL, ggbexport.DefaultEngineURL)
	}
	if cfg.Export.Format != "svg" {
		t.Errorf("Export.Format = %q, want svg", cfg.Export.Format)
	}
	if cfg.Pool.Workers != 0 {
		t.Errorf("Pool.Workers = %d, want 0 (auto)", cfg.Pool.Workers)
	}
	if cfg.RenderTimeout() != 2*time.Minute {
		t.Errorf("RenderTimeout() = %v, want 2m", cfg.RenderTimeout())
	}
}

// ---------------------------------------------------------------------------
// TestValidate
// ---------------------------------------------------------------------------

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
		field   string
	}{
		{
			name:   "remote source",
			mutate: func(c *Config) { c.Engine.Source = "remote" },
		},
		{
			name:    "unknown source",
			mutate:  func(c *Config) { c.Engine.Source = "cdn" },
			wantErr: ggbexport.ErrInvalidEngineSource,
			field:   "engine.source",
		},
		{
			name:    "remote URL not http",
			mutate:  func(c *Config) { c.Engine.RemoteURL = "ftp://example.org/ggb" },
			wantErr: ErrInvalidValue,
			field:   "engine.remoteURL",
		},
		{
			name:    "bundle path too long",
			mutate:  func(c *Config) { c.Engine.BundlePath = strings.Repeat("a", MaxPathLength+1) },
			wantErr: ErrFieldTooLong,
			field:   "engine.bundlePath",
		},
		{
			name:    "negative workers",
			mutate:  func(c *Config) { c.Pool.Workers = -1 },
			wantErr: ErrInvalidValue,
			field:   "pool.workers",
		},
		{
			name:    "too many workers",
			mutate:  func(c *Config) { c.Pool.Workers = MaxWorkers + 1 },
			wantErr: ErrInvalidValue,
			field:   "pool.workers",
		},
		{
			name:    "bad duration",
			mutate:  func(c *Config) { c.Timeouts.Boot = "soon" },
			wantErr: ErrInvalidValue,
			field:   "timeouts.boot",
		},
		{
			name:    "negative duration",
			mutate:  func(c *Config) { c.Timeouts.SVG = "-1s" },
			wantErr: ErrInvalidValue,
			field:   "timeouts.svg",
		},
		{
			name:   "empty render timeout",
			mutate: func(c *Config) { c.Timeouts.Render = "" },
		},
		{
			name:    "dpi too high",
			mutate:  func(c *Config) { c.Export.DPI = MaxDPI + 1 },
			wantErr: ErrInvalidValue,
			field:   "export.dpi",
		},
		{
			name:    "negative width",
			mutate:  func(c *Config) { c.Export.Width = -10 },
			wantErr: ErrInvalidValue,
			field:   "export.width",
		},
		{
			name:    "negative body limit",
			mutate:  func(c *Config) { c.Server.MaxBodyBytes = -1 },
			wantErr: ErrInvalidValue,
			field:   "server.maxBodyBytes",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: ErrInvalidValue,
			field:   "log.level",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: ErrInvalidValue,
			field:   "log.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("Validate() error = %q, want field %q named", err, tt.field)
			}
		})
	}
}

func TestValidateFieldLength(t *testing.T) {
	t.Parallel()

	if err := validateFieldLength("f", "1234567890", 10); err != nil {
		t.Errorf("value at limit: error = %v", err)
	}
	err := validateFieldLength("test.field", "12345678901", 10)
	if !errors.Is(err, ErrFieldTooLong) {
		t.Fatalf("value over limit: error = %v, want ErrFieldTooLong", err)
	}
	if !strings.Contains(err.Error(), "test.field") {
		t.Errorf("error = %q, want field name", err)
	}
}

// ---------------------------------------------------------------------------
// TestSessionOptions / TestLibraryConfig
// ---------------------------------------------------------------------------

func TestLibraryConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Engine.Source = "remote"
	cfg.Pool.Workers = 5

	got := cfg.LibraryConfig()
	want := ggbexport.Config{Concurrency: 5, EngineSource: ggbexport.EngineRemote}
	if got != want {
		t.Errorf("LibraryConfig() = %+v, want %+v", got, want)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("LibraryConfig().Validate() error = %v", err)
	}

	cfg.Pool.Workers = 0
	if got := cfg.LibraryConfig().Concurrency; got != ggbexport.ResolvePoolSize(0) {
		t.Errorf("auto Concurrency = %d, want %d", got, ggbexport.ResolvePoolSize(0))
	}
}

func TestSessionOptions(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Browser.Bin = "/usr/bin/chromium"
	opts := cfg.SessionOptions(nil)

	// logger, sandbox, bundle, remote URL, browser bin, boot, svg, dpi
	if len(opts) != 8 {
		t.Errorf("SessionOptions() returned %d options, want 8", len(opts))
	}

	cfg = &Config{}
	if got := len(cfg.SessionOptions(nil)); got != 2 {
		t.Errorf("SessionOptions() on empty config returned %d options, want 2", got)
	}
}

// ---------------------------------------------------------------------------
// TestNewLogger
// ---------------------------------------------------------------------------

func TestNewLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		cfg       LogConfig
		wantDebug bool
		wantJSON  bool
	}{
		{"text info", LogConfig{Level: "info", Format: "text"}, false, false},
		{"json debug", LogConfig{Level: "debug", Format: "json"}, true, true},
		{"defaults", LogConfig{}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger, err := tt.cfg.NewLogger(&buf)
			if err != nil {
				t.Fatalf("NewLogger() error = %v", err)
			}

			logger.Debug("debug line")
			logger.Info("info line", "format", "svg")

			out := buf.String()
			if got := strings.Contains(out, "debug line"); got != tt.wantDebug {
				t.Errorf("debug logged = %v, want %v", got, tt.wantDebug)
			}
			if got := strings.HasPrefix(out, "{"); got != tt.wantJSON {
				t.Errorf("json output = %v, want %v (%q)", got, tt.wantJSON, out)
			}
		})
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	t.Parallel()

	if _, err := (LogConfig{Level: "loud"}).NewLogger(&bytes.Buffer{}); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("NewLogger() error = %v, want ErrInvalidValue", err)
	}
}

// ---------------------------------------------------------------------------
// TestLoadConfig
// ---------------------------------------------------------------------------

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_Path(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, t.TempDir(), "render.yaml", `
engine:
  source: remote
pool:
  workers: 2
timeouts:
  svg: 10s
export:
  format: pdf
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Engine.Source != "remote" {
		t.Errorf("Engine.Source = %q, want remote", cfg.Engine.Source)
	}
	if cfg.Pool.Workers != 2 {
		t.Errorf("Pool.Workers = %d, want 2", cfg.Pool.Workers)
	}
	if cfg.Timeouts.SVG != "10s" {
		t.Errorf("Timeouts.SVG = %q, want 10s", cfg.Timeouts.SVG)
	}
	if cfg.Export.Format != "pdf" {
		t.Errorf("Export.Format = %q, want pdf", cfg.Export.Format)
	}

	// Keys absent from the file keep defaults.
	if cfg.Engine.RemoteURL != ggbexport.DefaultEngineURL {
		t.Errorf("Engine.RemoteURL = %q, want default", cfg.Engine.RemoteURL)
	}
	if cfg.Timeouts.Boot != "60s" {
		t.Errorf("Timeouts.Boot = %q, want default 60s", cfg.Timeouts.Boot)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q, want default :8080", cfg.Server.Addr)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	tests := []struct {
		name    string
		arg     string
		wantErr error
	}{
		{
			name:    "empty name",
			arg:     "",
			wantErr: ErrEmptyConfigName,
		},
		{
			name:    "missing file",
			arg:     filepath.Join(dir, "missing.yaml"),
			wantErr: ErrConfigNotFound,
		},
		{
			name:    "unknown key",
			arg:     writeConfig(t, dir, "unknown.yaml", "engine:\n  flavor: classic\n"),
			wantErr: ErrConfigParse,
		},
		{
			name:    "invalid value",
			arg:     writeConfig(t, dir, "invalid.yaml", "pool:\n  workers: -3\n"),
			wantErr: ErrInvalidValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := LoadConfig(tt.arg)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("LoadConfig(%q) error = %v, want %v", tt.arg, err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_ByName(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "classroom.yml", "export:\n  dpi: 150\n")
	t.Chdir(dir)

	cfg, err := LoadConfig("classroom")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Export.DPI != 150 {
		t.Errorf("Export.DPI = %d, want 150", cfg.Export.DPI)
	}
}

func TestLoadConfig_ByNameNotFound(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := LoadConfig("nothing-here")
	if !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("LoadConfig() error = %v, want ErrConfigNotFound", err)
	}
	if !strings.Contains(err.Error(), "nothing-here.yaml") {
		t.Errorf("error = %q, want tried paths listed", err)
	}
}
