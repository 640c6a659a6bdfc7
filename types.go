package ggbexport

import (
	"fmt"
	"strings"
)

// Format selects the output produced by an export.
type Format string

// Supported export formats.
const (
	FormatPNG      Format = "png"
	FormatPNGAlpha Format = "pngalpha"
	FormatSVG      Format = "svg"
	FormatPDF      Format = "pdf"
	FormatGGB      Format = "ggb"
)

// MIME types declared in data URIs.
const (
	mimePNG = "image/png"
	mimeSVG = "image/svg+xml"
	mimePDF = "application/pdf"
	mimeGGB = "application/vnd.geogebra.file"
)

// ParseFormat maps a format name to a Format.
// Unknown or empty names fall back to FormatPNG rather than failing.
func ParseFormat(s string) Format {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatPNGAlpha:
		return FormatPNGAlpha
	case FormatSVG:
		return FormatSVG
	case FormatPDF:
		return FormatPDF
	case FormatGGB:
		return FormatGGB
	default:
		return FormatPNG
	}
}

// MIMEType returns the media type declared for the format.
func (f Format) MIMEType() string {
	switch f {
	case FormatSVG:
		return mimeSVG
	case FormatPDF:
		return mimePDF
	case FormatGGB:
		return mimeGGB
	default:
		return mimePNG
	}
}

// Extension returns the file extension (without dot) for the format.
func (f Format) Extension() string {
	switch f {
	case FormatSVG, FormatPDF, FormatGGB:
		return string(f)
	default:
		return "png"
	}
}

// EngineSource selects where the engine entry document is loaded from.
type EngineSource string

// Engine sources.
const (
	EngineLocal  EngineSource = "local"
	EngineRemote EngineSource = "remote"
)

// ParseEngineSource validates an engine source name. Empty means local.
func ParseEngineSource(s string) (EngineSource, error) {
	switch EngineSource(strings.ToLower(strings.TrimSpace(s))) {
	case "", EngineLocal:
		return EngineLocal, nil
	case EngineRemote:
		return EngineRemote, nil
	default:
		return "", fmt.Errorf("%w: %q (must be local or remote)", ErrInvalidEngineSource, s)
	}
}

// Default configuration values.
const (
	DefaultConcurrency = 3
	DefaultEngineURL   = "https://www.geogebra.org/classic"
	DefaultBundlePath  = "public/geogebra-math-apps-bundle/Geogebra/HTML5/5.0/GeoGebra.html"
)

// Config holds the immutable settings shared by a session and its pool.
type Config struct {
	Concurrency  int
	EngineSource EngineSource
}

// DefaultConfig returns three pooled sessions loading the local bundle.
func DefaultConfig() Config {
	return Config{
		Concurrency:  DefaultConcurrency,
		EngineSource: EngineLocal,
	}
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: %d (must be >= 1)", ErrInvalidConcurrency, c.Concurrency)
	}
	if _, err := ParseEngineSource(string(c.EngineSource)); err != nil {
		return err
	}
	return nil
}

// SessionState is the lifecycle position of a Session.
type SessionState int

// Session states, in lifecycle order.
const (
	StateCreated SessionState = iota
	StateBooting
	StateReady
	StateActive
	StateReleased
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateBooting:
		return "booting"
	case StateReady:
		return "ready"
	case StateActive:
		return "active"
	case StateReleased:
		return "released"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}
