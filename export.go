package ggbexport

import (
	"context"
	"fmt"

	"github.com/ysmood/gson"
)

// Export renders the current engine state in format f and returns raw bytes.
// Unknown formats render as PNG.
func (s *Session) Export(ctx context.Context, f Format) ([]byte, error) {
	switch f {
	case FormatPNGAlpha:
		return s.ExportPNG(ctx, true, 0)
	case FormatSVG:
		return s.ExportSVG(ctx)
	case FormatPDF:
		return s.ExportPDF(ctx)
	case FormatGGB:
		return s.ExportGGB(ctx)
	default:
		return s.ExportPNG(ctx, false, 0)
	}
}

// ExportDataURI renders the current engine state in format f as a data URI.
// Unknown formats render as PNG.
func (s *Session) ExportDataURI(ctx context.Context, f Format) (string, error) {
	switch f {
	case FormatPNGAlpha:
		return s.ExportPNGDataURI(ctx, true, 0)
	case FormatSVG:
		return s.ExportSVGDataURI(ctx)
	case FormatPDF:
		return s.ExportPDFDataURI(ctx)
	case FormatGGB:
		return s.ExportGGBDataURI(ctx)
	default:
		return s.ExportPNGDataURI(ctx, false, 0)
	}
}

// ExportPNG returns PNG bytes. dpi <= 0 uses the session default (300).
func (s *Session) ExportPNG(ctx context.Context, alpha bool, dpi int) ([]byte, error) {
	uri, err := s.ExportPNGDataURI(ctx, alpha, dpi)
	if err != nil {
		return nil, err
	}
	return decodeDataURI(uri, mimePNG)
}

// ExportPNGDataURI returns the PNG as a data:image/png;base64 URI.
func (s *Session) ExportPNGDataURI(ctx context.Context, alpha bool, dpi int) (string, error) {
	if dpi <= 0 {
		dpi = s.cfg.dpi
	}
	v, err := s.call(ctx, "getPNGBase64", 1, alpha, dpi)
	if err != nil {
		return "", err
	}
	payload, err := engineString("getPNGBase64", v)
	if err != nil {
		return "", err
	}
	return base64DataURI(mimePNG, payload), nil
}

// ExportPDF returns PDF bytes.
func (s *Session) ExportPDF(ctx context.Context) ([]byte, error) {
	uri, err := s.ExportPDFDataURI(ctx)
	if err != nil {
		return nil, err
	}
	return decodeDataURI(uri, mimePDF)
}

// ExportPDFDataURI returns the engine's PDF export, which is already a data URI.
func (s *Session) ExportPDFDataURI(ctx context.Context) (string, error) {
	v, err := s.call(ctx, "exportPDF")
	if err != nil {
		return "", err
	}
	out, err := engineString("exportPDF", v)
	if err != nil {
		return "", err
	}
	return ensureDataURI(mimePDF, out), nil
}

// ExportGGB returns the document in the engine's native archive format.
func (s *Session) ExportGGB(ctx context.Context) ([]byte, error) {
	uri, err := s.ExportGGBDataURI(ctx)
	if err != nil {
		return nil, err
	}
	return decodeDataURI(uri, mimeGGB)
}

// ExportGGBDataURI returns the native archive as a base64 data URI.
func (s *Session) ExportGGBDataURI(ctx context.Context) (string, error) {
	v, err := s.call(ctx, "getBase64")
	if err != nil {
		return "", err
	}
	payload, err := engineString("getBase64", v)
	if err != nil {
		return "", err
	}
	return ensureDataURI(mimeGGB, payload), nil
}

// engineString extracts a non-empty string result from an engine call.
func engineString(member string, v gson.JSON) (string, error) {
	str, ok := v.Val().(string)
	if !ok {
		return "", fmt.Errorf("%w: %s returned %s, want string", ErrEngineExecution, member, v.JSON("", ""))
	}
	if str == "" {
		return "", fmt.Errorf("%w: %s returned an empty string", ErrEngineExecution, member)
	}
	return str, nil
}
