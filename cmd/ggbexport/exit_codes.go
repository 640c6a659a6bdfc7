package main

import (
	"errors"
	"os"

	ggbexport "github.com/alnah/go-ggbexport"
	"github.com/alnah/go-ggbexport/internal/config"
	"github.com/alnah/go-ggbexport/internal/fileutil"
)

// Exit codes for the ggbexport CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess = 0 // Successful render
	ExitGeneral = 1 // General/unexpected error
	ExitUsage   = 2 // Invalid flags, config, or input
	ExitIO      = 3 // File not found, permission denied
	ExitBrowser = 4 // Browser or engine errors
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, config.ErrEmptyConfigName) ||
		errors.Is(err, ggbexport.ErrEmptyDocument) ||
		errors.Is(err, ggbexport.ErrInvalidConcurrency) ||
		errors.Is(err, ggbexport.ErrInvalidEngineSource) ||
		errors.Is(err, fileutil.ErrExtensionInvalid) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrUnsupportedShell) ||
		errors.Is(err, ErrUsage) {
		return ExitUsage
	}

	// Browser/engine errors (exit 4)
	if errors.Is(err, ggbexport.ErrEngineUnavailable) ||
		errors.Is(err, ggbexport.ErrBrowserConnect) ||
		errors.Is(err, ggbexport.ErrPageCreate) ||
		errors.Is(err, ggbexport.ErrPageLoad) ||
		errors.Is(err, ggbexport.ErrBundleNotFound) ||
		errors.Is(err, ggbexport.ErrEngineExecution) ||
		errors.Is(err, ggbexport.ErrSVGTimeout) {
		return ExitBrowser
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, ErrReadInput) ||
		errors.Is(err, ErrWriteOutput) {
		return ExitIO
	}

	return ExitGeneral
}
