package ggbexport

import "errors"

// Sentinel errors for library operations.
var (
	ErrEmptyDocument = errors.New("document payload cannot be empty")

	// Engine availability errors. Bootstrap failures wrap ErrEngineUnavailable
	// together with the more specific cause.
	ErrEngineUnavailable = errors.New("rendering engine unavailable")
	ErrBrowserConnect    = errors.New("failed to connect to browser")
	ErrPageCreate        = errors.New("failed to create browser page")
	ErrPageLoad          = errors.New("failed to load engine page")
	ErrBundleNotFound    = errors.New("engine bundle not found")

	// Engine execution errors.
	ErrEngineExecution = errors.New("engine call failed")
	ErrSVGTimeout      = errors.New("SVG export produced no markup before timeout")
	ErrDataURIPrefix   = errors.New("unexpected data URI prefix")

	// Lifecycle errors.
	ErrSessionReleased = errors.New("session already released")
	ErrPoolClosed      = errors.New("session pool is closed")

	// Configuration validation errors.
	ErrInvalidConcurrency  = errors.New("invalid concurrency")
	ErrInvalidEngineSource = errors.New("invalid engine source")
)
