package main

import (
	"io"

	flag "github.com/spf13/pflag"

	"github.com/alnah/go-ggbexport/internal/config"
)

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config    string
	quiet     bool
	verbose   bool
	logLevel  string
	logFormat string
}

// engineFlags holds flags that configure the sessions.
type engineFlags struct {
	source      string
	bundlePath  string
	remoteURL   string
	browserBin  string
	noSandbox   bool
	workers     int
	bootTimeout string
	timeout     string
}

// renderFlags holds all flags for the render command.
type renderFlags struct {
	common   commonFlags
	engine   engineFlags
	output   string
	format   string
	commands []string
	width    int
	height   int
	dpi      int
}

// serveFlags holds all flags for the serve command.
type serveFlags struct {
	common       commonFlags
	engine       engineFlags
	addr         string
	maxBodyBytes int64
}

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "show detailed timing")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&f.logFormat, "log-format", "", "log format: text, json")
}

// addEngineFlags adds engine and pool flags to a FlagSet.
func addEngineFlags(fs *flag.FlagSet, f *engineFlags) {
	fs.StringVar(&f.source, "engine", "", "engine source: local, remote")
	fs.StringVar(&f.bundlePath, "bundle", "", "local engine entry document")
	fs.StringVar(&f.remoteURL, "remote-url", "", "remote engine entry document")
	fs.StringVar(&f.browserBin, "browser", "", "Chrome/Chromium binary")
	fs.BoolVar(&f.noSandbox, "no-sandbox", false, "disable the Chrome sandbox")
	fs.IntVarP(&f.workers, "workers", "w", 0, "parallel sessions (0 = auto)")
	fs.StringVar(&f.bootTimeout, "boot-timeout", "", "engine startup timeout (e.g., 90s)")
	fs.StringVarP(&f.timeout, "timeout", "t", "", "per-document timeout (e.g., 30s, 2m)")
}

// newRenderFlagSet registers the render command flags.
func newRenderFlagSet() (*flag.FlagSet, *renderFlags) {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	f := &renderFlags{}

	fs.StringVarP(&f.output, "output", "o", "", "output file or directory (\"-\" = stdout)")
	fs.StringVarP(&f.format, "format", "f", "", "export format: svg, png, pngalpha, pdf, ggb")
	fs.StringArrayVarP(&f.commands, "command", "C", nil, "engine command run before export (repeatable)")
	fs.IntVar(&f.width, "width", 0, "viewport width for commands")
	fs.IntVar(&f.height, "height", 0, "viewport height for commands")
	fs.IntVar(&f.dpi, "dpi", 0, "PNG resolution")

	addCommonFlags(fs, &f.common)
	addEngineFlags(fs, &f.engine)

	fs.SetOutput(io.Discard)
	return fs, f
}

// parseRenderFlags parses render command flags and returns positional args.
func parseRenderFlags(args []string) (*renderFlags, []string, error) {
	fs, f := newRenderFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, nil, usageError(err)
	}
	return f, fs.Args(), nil
}

// newServeFlagSet registers the serve command flags.
func newServeFlagSet() (*flag.FlagSet, *serveFlags) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	f := &serveFlags{}

	fs.StringVarP(&f.addr, "addr", "a", "", "listen address (default :8080)")
	fs.Int64Var(&f.maxBodyBytes, "max-body", 0, "maximum request body in bytes")

	addCommonFlags(fs, &f.common)
	addEngineFlags(fs, &f.engine)

	fs.SetOutput(io.Discard)
	return fs, f
}

// parseServeFlags parses serve command flags.
func parseServeFlags(args []string) (*serveFlags, error) {
	fs, f := newServeFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, usageError(err)
	}
	if fs.NArg() > 0 {
		return nil, usageError(errUnexpectedArgs(fs.Args()))
	}
	return f, nil
}

// mergeCommonFlags applies logging flags to cfg (CLI wins).
func mergeCommonFlags(f *commonFlags, cfg *config.Config) {
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}
	if f.verbose && f.logLevel == "" {
		cfg.Log.Level = "debug"
	}
}

// mergeEngineFlags applies engine flags to cfg (CLI wins).
func mergeEngineFlags(f *engineFlags, cfg *config.Config) {
	if f.source != "" {
		cfg.Engine.Source = f.source
	}
	if f.bundlePath != "" {
		cfg.Engine.BundlePath = f.bundlePath
	}
	if f.remoteURL != "" {
		cfg.Engine.RemoteURL = f.remoteURL
	}
	if f.browserBin != "" {
		cfg.Browser.Bin = f.browserBin
	}
	if f.noSandbox {
		cfg.Browser.NoSandbox = true
	}
	if f.workers != 0 {
		cfg.Pool.Workers = f.workers
	}
	if f.bootTimeout != "" {
		cfg.Timeouts.Boot = f.bootTimeout
	}
	if f.timeout != "" {
		cfg.Timeouts.Render = f.timeout
	}
}
