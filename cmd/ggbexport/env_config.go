package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/alnah/go-ggbexport/internal/config"
)

// envConfig holds configuration from environment variables.
// Provides container-friendly overrides without requiring YAML files.
type envConfig struct {
	ConfigPath string // GGBEXPORT_CONFIG: config file name or path

	EngineSource string // GGBEXPORT_ENGINE: local or remote
	BundlePath   string // GGBEXPORT_BUNDLE_PATH: local engine entry document
	RemoteURL    string // GGBEXPORT_REMOTE_URL: remote engine entry document
	Workers      int    // GGBEXPORT_WORKERS: pool size

	RenderTimeout string // GGBEXPORT_TIMEOUT: per-render timeout
	BootTimeout   string // GGBEXPORT_BOOT_TIMEOUT: engine startup timeout

	Format string // GGBEXPORT_FORMAT: default export format
	Addr   string // GGBEXPORT_ADDR: HTTP listen address

	LogLevel  string // GGBEXPORT_LOG_LEVEL
	LogFormat string // GGBEXPORT_LOG_FORMAT
}

// knownEnvVars lists valid GGBEXPORT_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	"GGBEXPORT_CONFIG":       true,
	"GGBEXPORT_ENGINE":       true,
	"GGBEXPORT_BUNDLE_PATH":  true,
	"GGBEXPORT_REMOTE_URL":   true,
	"GGBEXPORT_WORKERS":      true,
	"GGBEXPORT_TIMEOUT":      true,
	"GGBEXPORT_BOOT_TIMEOUT": true,
	"GGBEXPORT_FORMAT":       true,
	"GGBEXPORT_ADDR":         true,
	"GGBEXPORT_LOG_LEVEL":    true,
	"GGBEXPORT_LOG_FORMAT":   true,
	"GGBEXPORT_CONTAINER":    true, // read by doctor
}

// loadEnvConfig reads configuration from environment variables.
func loadEnvConfig() *envConfig {
	cfg := &envConfig{
		ConfigPath:    os.Getenv("GGBEXPORT_CONFIG"),
		EngineSource:  os.Getenv("GGBEXPORT_ENGINE"),
		BundlePath:    os.Getenv("GGBEXPORT_BUNDLE_PATH"),
		RemoteURL:     os.Getenv("GGBEXPORT_REMOTE_URL"),
		RenderTimeout: os.Getenv("GGBEXPORT_TIMEOUT"),
		BootTimeout:   os.Getenv("GGBEXPORT_BOOT_TIMEOUT"),
		Format:        os.Getenv("GGBEXPORT_FORMAT"),
		Addr:          os.Getenv("GGBEXPORT_ADDR"),
		LogLevel:      os.Getenv("GGBEXPORT_LOG_LEVEL"),
		LogFormat:     os.Getenv("GGBEXPORT_LOG_FORMAT"),
	}

	// Invalid counts are ignored; the config value applies.
	if workers := os.Getenv("GGBEXPORT_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil && w > 0 {
			cfg.Workers = w
		}
	}

	return cfg
}

// warnUnknownEnvVars prints warnings for unrecognized GGBEXPORT_* variables.
func warnUnknownEnvVars(w io.Writer) {
	var unknown []string
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, "GGBEXPORT_") {
			continue
		}
		name, _, _ := strings.Cut(env, "=")
		if !knownEnvVars[name] {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
	}
}

// applyEnvConfig overrides config values with the variables that are set.
// Precedence: CLI flags > env vars > config file > defaults
// (CLI flags are applied afterwards by the command).
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}

	setString(&cfg.Engine.Source, env.EngineSource)
	setString(&cfg.Engine.BundlePath, env.BundlePath)
	setString(&cfg.Engine.RemoteURL, env.RemoteURL)
	if env.Workers > 0 {
		cfg.Pool.Workers = env.Workers
	}
	setString(&cfg.Timeouts.Render, env.RenderTimeout)
	setString(&cfg.Timeouts.Boot, env.BootTimeout)
	setString(&cfg.Export.Format, env.Format)
	setString(&cfg.Server.Addr, env.Addr)
	setString(&cfg.Log.Level, env.LogLevel)
	setString(&cfg.Log.Format, env.LogFormat)
}

// resolveConfig loads the config file (flag, then GGBEXPORT_CONFIG) and
// applies environment overrides. Flag overrides are left to the caller,
// which must call Validate afterwards.
func resolveConfig(flagConfig string) (*config.Config, error) {
	env := loadEnvConfig()

	name := flagConfig
	if name == "" {
		name = env.ConfigPath
	}

	cfg := config.DefaultConfig()
	if name != "" {
		var err error
		cfg, err = config.LoadConfig(name)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}

	applyEnvConfig(env, cfg)
	return cfg, nil
}
