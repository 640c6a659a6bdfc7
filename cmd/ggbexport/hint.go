package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	ggbexport "github.com/alnah/go-ggbexport"
	"github.com/alnah/go-ggbexport/internal/config"
	"github.com/alnah/go-ggbexport/internal/hints"
)

// hintFor returns an actionable hint for err, or "".
func hintFor(err error, cfg *config.Config) string {
	switch {
	case errors.Is(err, ggbexport.ErrBundleNotFound):
		path := ggbexport.DefaultBundlePath
		if cfg != nil && cfg.Engine.BundlePath != "" {
			path = cfg.Engine.BundlePath
		}
		return hints.ForBundleNotFound(path)
	case errors.Is(err, ggbexport.ErrBrowserConnect):
		return hints.ForBrowserConnect()
	case errors.Is(err, ggbexport.ErrEngineUnavailable) && errors.Is(err, context.DeadlineExceeded):
		return hints.ForEngineTimeout()
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ggbexport.ErrSVGTimeout):
		return hints.ForTimeout()
	case errors.Is(err, ggbexport.ErrEmptyDocument):
		return hints.ForEmptyDocument()
	case errors.Is(err, config.ErrConfigNotFound):
		var searched []string
		if dir, dirErr := os.UserConfigDir(); dirErr == nil {
			searched = append(searched, filepath.Join(dir, "go-ggbexport", "config.yaml"))
		}
		return hints.ForConfigNotFound(searched)
	case errors.Is(err, ErrWriteOutput):
		return hints.ForOutputDirectory()
	}
	return ""
}
