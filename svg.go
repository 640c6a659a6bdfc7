package ggbexport

import (
	"context"
	"fmt"
	"time"
)

// The engine has no promise-returning SVG export: exportSVG hands markup to a
// callback. The callback writes it into a hidden container that is then polled.
const (
	svgContainerID = "svg_renderer"
	svgWorkWidth   = 1150
	svgWorkHeight  = 500
)

// svgStartJS empties (or creates) the container and starts the export.
const svgStartJS = `(id) => {
	const app = window.ggbApplet;
	if (app == null) {
		throw new Error("ggbApplet is not available");
	}
	let div = document.getElementById(id);
	if (div == null) {
		div = document.createElement("div");
		div.id = id;
		div.style.display = "none";
		document.body.appendChild(div);
	}
	div.innerHTML = "";
	app.exportSVG((svg) => { div.innerHTML = svg; });
}`

// svgMarkupJS reads the exported <svg> element, or "" while it is missing.
const svgMarkupJS = `(id) => {
	const div = document.getElementById(id);
	if (div == null) {
		return "";
	}
	const svg = div.querySelector("svg");
	return svg == null ? "" : svg.outerHTML;
}`

// ExportSVG returns the SVG markup of the current construction.
// Axes and grid are hidden and the canvas is resized to 1150x500 first.
func (s *Session) ExportSVG(ctx context.Context) ([]byte, error) {
	markup, err := s.exportSVGMarkup(ctx)
	if err != nil {
		return nil, err
	}
	return []byte(markup), nil
}

// ExportSVGDataURI returns the SVG as a percent-encoded data:image/svg+xml;utf8 URI.
func (s *Session) ExportSVGDataURI(ctx context.Context) (string, error) {
	markup, err := s.exportSVGMarkup(ctx)
	if err != nil {
		return "", err
	}
	return svgDataURI(markup), nil
}

func (s *Session) exportSVGMarkup(ctx context.Context) (string, error) {
	page, done, err := s.begin(ctx)
	if err != nil {
		return "", err
	}
	defer done()

	if _, err := s.invoke(ctx, page, "setSize", svgWorkWidth, svgWorkHeight); err != nil {
		return "", err
	}
	if _, err := s.invoke(ctx, page, "setAxesVisible", false, false); err != nil {
		return "", err
	}
	if _, err := s.invoke(ctx, page, "setGridVisible", false); err != nil {
		return "", err
	}

	if _, err := page.Eval(ctx, svgStartJS, svgContainerID); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: exportSVG: %v", ErrEngineExecution, err)
	}

	return s.waitSVG(ctx, page)
}

// waitSVG polls the container until it holds markup or svgTimeout elapses.
func (s *Session) waitSVG(parent context.Context, page enginePage) (string, error) {
	ctx, cancel := context.WithTimeout(parent, s.cfg.svgTimeout)
	defer cancel()

	ticker := time.NewTicker(s.cfg.svgPollInterval)
	defer ticker.Stop()

	start := time.Now()
	for polls := 1; ; polls++ {
		v, err := page.Eval(ctx, svgMarkupJS, svgContainerID)
		if err != nil && ctx.Err() == nil {
			return "", fmt.Errorf("%w: reading SVG container: %v", ErrEngineExecution, err)
		}
		if err == nil {
			if markup, ok := v.Val().(string); ok && markup != "" {
				s.logger.Debug("svg ready", "polls", polls, "elapsed", time.Since(start))
				return markup, nil
			}
		}

		select {
		case <-ctx.Done():
			if err := parent.Err(); err != nil {
				return "", err
			}
			return "", fmt.Errorf("%w: container #%s still empty after %s", ErrSVGTimeout, svgContainerID, s.cfg.svgTimeout)
		case <-ticker.C:
		}
	}
}
