// Package ggbexport renders GeoGebra documents to PNG, SVG, PDF and .ggb
// by driving the GeoGebra engine inside headless Chrome.
//
// # Quick Start
//
// Create a session, load a base64 .ggb document, export, and release:
//
//	s := ggbexport.New(ggbexport.WithBundlePath("/srv/geogebra/GeoGebra.html"))
//	if err := s.Ready(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Release(ctx)
//
//	if err := s.LoadDocument(ctx, ggb64); err != nil {
//	    log.Fatal(err)
//	}
//	svg, err := s.Export(ctx, ggbexport.FormatSVG)
//
// Every export has a data URI variant (ExportDataURI, ExportSVGDataURI, ...).
// Unknown format names passed to ParseFormat render as PNG.
//
// # Session Lifecycle
//
// New starts the bootstrap in the background: launch Chrome, open the engine
// entry document (local bundle or https://www.geogebra.org/classic), and wait
// until window.ggbApplet exists. Operations wait for the bootstrap, so Ready
// is only needed to surface engine failures early. Bootstrap failures wrap
// ErrEngineUnavailable.
//
// Release resets the engine, sends the session on the channel given with
// WithReleaseChannel, and closes Chrome when the session launched it. Sessions
// built with WithPage never close the page they were given.
//
// # SVG Export
//
// The engine delivers SVG through a callback. The session writes it into a
// hidden #svg_renderer element and polls until markup appears, failing with
// ErrSVGTimeout after WithSVGTimeout (default 5s).
//
// # Parallel Processing
//
// A session handles one operation at a time. Use SessionPool for parallel
// rendering; each pooled session runs in its own browser:
//
//	pool := ggbexport.NewSessionPool(ggbexport.Config{Concurrency: 4})
//	defer pool.Close()
//
//	r := ggbexport.NewRenderer(pool)
//	uri, err := r.Render(ctx, ggbexport.Request{Document: ggb64, Format: "svg"})
//
// # Browser Requirements
//
// Rendering requires Chrome/Chromium. The go-rod library automatically
// downloads a managed Chromium instance on first run (~/.cache/rod/browser/).
//
// For containers and CI environments, set ROD_NO_SANDBOX=1 to disable the
// Chrome sandbox. Use ROD_BROWSER_BIN to specify a custom Chrome binary.
package ggbexport
