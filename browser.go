package ggbexport

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"

	"github.com/alnah/go-ggbexport/internal/process"
)

// browserProcess is a Chromium instance launched and owned by this package.
// Rod automatically downloads Chromium on first run if not found.
type browserProcess struct {
	launcher *launcher.Launcher
	browser  *rod.Browser

	closeOnce sync.Once
	closeErr  error
}

// launchOptions controls how Chromium is started.
type launchOptions struct {
	bin       string
	noSandbox bool
}

// launchBrowser starts Chromium and connects to it.
func launchBrowser(opts launchOptions) (*browserProcess, error) {
	l := launcher.New()

	// Use pre-installed browser if specified (Docker/containerized environments)
	bin := opts.bin
	if bin == "" {
		bin = os.Getenv("ROD_BROWSER_BIN")
	}
	if bin != "" {
		l = l.Bin(bin)
	}

	if needsNoSandbox(opts) {
		l = l.NoSandbox(true)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}
	return &browserProcess{launcher: l, browser: b}, nil
}

// needsNoSandbox reports whether the Chrome sandbox must be disabled.
// Required for CI and containerized environments.
func needsNoSandbox(opts launchOptions) bool {
	return opts.noSandbox ||
		os.Getenv("ROD_NO_SANDBOX") == "1" ||
		os.Getenv("CI") == "true" ||
		os.Getenv("ROD_BROWSER_BIN") != ""
}

// Close terminates the browser and its child processes. Safe to call twice.
func (b *browserProcess) Close() error {
	b.closeOnce.Do(func() {
		pid := b.launcher.PID()
		b.closeErr = b.browser.Close()

		// Chrome helpers can outlive the main process.
		_ = process.KillProcessGroup(pid)
		b.launcher.Kill()
		b.launcher.Cleanup()

		if errors.Is(b.closeErr, os.ErrProcessDone) {
			b.closeErr = nil
		}
	})
	return b.closeErr
}
