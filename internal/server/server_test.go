package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	ggbexport "github.com/alnah/go-ggbexport"
)

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

// fakeRenderer records requests and returns canned results.
type fakeRenderer struct {
	mu       sync.Mutex
	requests []ggbexport.Request
	err      error
	panicMsg string
}

func (f *fakeRenderer) record(req ggbexport.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.requests = append(f.requests, req)
	return f.err
}

func (f *fakeRenderer) Render(_ context.Context, req ggbexport.Request) (string, error) {
	if err := f.record(req); err != nil {
		return "", err
	}
	format := ggbexport.RequestFormat(req.Format)
	return "data:" + format.MIMEType() + ";base64,AAAA", nil
}

func (f *fakeRenderer) RenderBytes(_ context.Context, req ggbexport.Request) ([]byte, ggbexport.Format, error) {
	if err := f.record(req); err != nil {
		return nil, "", err
	}
	format := ggbexport.RequestFormat(req.Format)
	return []byte("bytes-" + string(format)), format, nil
}

func (f *fakeRenderer) last(t *testing.T) ggbexport.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("renderer was not called")
	}
	return f.requests[len(f.requests)-1]
}

func (f *fakeRenderer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newTestServer(t *testing.T, renderer Renderer, cfg Config) http.Handler {
	t.Helper()
	return New(renderer, cfg).Handler()
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return v
}

// ---------------------------------------------------------------------------
// TestExportSVG - Legacy SVG Route
// ---------------------------------------------------------------------------

func TestExportSVG(t *testing.T) {
	t.Parallel()

	t.Run("returns SVG data URI with created message", func(t *testing.T) {
		t.Parallel()

		fake := &fakeRenderer{}
		h := newTestServer(t, fake, Config{})

		rec := post(t, h, "/export-svg", `{"data":"UEsDBBQ=","format":"pdf"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
		}
		resp := decodeBody[exportResponse](t, rec)
		if resp.Message != "created" {
			t.Errorf("message = %q, want %q", resp.Message, "created")
		}
		if !strings.HasPrefix(resp.Data, "data:image/svg+xml") {
			t.Errorf("data = %q, want SVG data URI", resp.Data)
		}
		got := fake.last(t)
		if got.Format != "svg" {
			t.Errorf("format = %q, want svg regardless of body", got.Format)
		}
		if got.Document != "UEsDBBQ=" {
			t.Errorf("document = %q, want %q", got.Document, "UEsDBBQ=")
		}
	})

	t.Run("missing body answers invalid data", func(t *testing.T) {
		t.Parallel()

		fake := &fakeRenderer{}
		h := newTestServer(t, fake, Config{})

		rec := post(t, h, "/export-svg", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
		resp := decodeBody[errorResponse](t, rec)
		if resp.Message != errInvalidData.Error() {
			t.Errorf("message = %q, want %q", resp.Message, errInvalidData.Error())
		}
		if fake.count() != 0 {
			t.Error("renderer called for empty body")
		}
	})

	t.Run("empty document answers invalid data", func(t *testing.T) {
		t.Parallel()

		fake := &fakeRenderer{err: fmt.Errorf("rendering: %w", ggbexport.ErrEmptyDocument)}
		h := newTestServer(t, fake, Config{})

		rec := post(t, h, "/export-svg", `{"data":""}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
		resp := decodeBody[errorResponse](t, rec)
		if resp.Message != errInvalidData.Error() {
			t.Errorf("message = %q, want %q", resp.Message, errInvalidData.Error())
		}
	})

	t.Run("malformed JSON is rejected", func(t *testing.T) {
		t.Parallel()

		h := newTestServer(t, &fakeRenderer{}, Config{})

		rec := post(t, h, "/export-svg", `{"data":`)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})
}

// ---------------------------------------------------------------------------
// TestExport - JSON Route
// ---------------------------------------------------------------------------

func TestExport(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		wantFormat string
		wantMIME   string
	}{
		{
			name:       "default format is svg",
			body:       `{"data":"UEsDBBQ="}`,
			wantFormat: "svg",
			wantMIME:   "image/svg+xml",
		},
		{
			name:       "pdf",
			body:       `{"data":"UEsDBBQ=","format":"pdf"}`,
			wantFormat: "pdf",
			wantMIME:   "application/pdf",
		},
		{
			name:       "unknown format falls back to png",
			body:       `{"data":"UEsDBBQ=","format":"bmp"}`,
			wantFormat: "png",
			wantMIME:   "image/png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newTestServer(t, &fakeRenderer{}, Config{})
			rec := post(t, h, "/export", tt.body)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
			}
			resp := decodeBody[exportResponse](t, rec)
			if resp.Format != tt.wantFormat {
				t.Errorf("format = %q, want %q", resp.Format, tt.wantFormat)
			}
			if resp.MIMEType != tt.wantMIME {
				t.Errorf("mimeType = %q, want %q", resp.MIMEType, tt.wantMIME)
			}
			if !strings.HasPrefix(resp.Data, "data:"+tt.wantMIME) {
				t.Errorf("data = %q, want prefix %q", resp.Data, "data:"+tt.wantMIME)
			}
		})
	}
}

func TestExport_ForwardsCommandsAndViewport(t *testing.T) {
	t.Parallel()

	fake := &fakeRenderer{}
	h := newTestServer(t, fake, Config{})

	rec := post(t, h, "/export", `{"data":"UEsDBBQ=","commands":["A=(1,1)","B=(2,2)"],"width":800,"height":600}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	got := fake.last(t)
	if len(got.Commands) != 2 || got.Commands[1] != "B=(2,2)" {
		t.Errorf("commands = %v", got.Commands)
	}
	if got.Width != 800 || got.Height != 600 {
		t.Errorf("viewport = %dx%d, want 800x600", got.Width, got.Height)
	}
}

// ---------------------------------------------------------------------------
// TestExportRaw - Binary Route
// ---------------------------------------------------------------------------

func TestExportRaw(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path     string
		wantType string
		wantExt  string
	}{
		{"/export/png", "image/png", "png"},
		{"/export/svg", "image/svg+xml", "svg"},
		{"/export/pdf", "application/pdf", "pdf"},
		{"/export/ggb", "application/vnd.geogebra.file", "ggb"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			h := newTestServer(t, &fakeRenderer{}, Config{})
			rec := post(t, h, tt.path, `{"data":"UEsDBBQ="}`)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
			}
			if got := rec.Header().Get("Content-Type"); got != tt.wantType {
				t.Errorf("Content-Type = %q, want %q", got, tt.wantType)
			}
			wantDisp := `inline; filename="export.` + tt.wantExt + `"`
			if got := rec.Header().Get("Content-Disposition"); got != wantDisp {
				t.Errorf("Content-Disposition = %q, want %q", got, wantDisp)
			}
			if got := rec.Body.String(); got != "bytes-"+tt.wantExt {
				t.Errorf("body = %q, want %q", got, "bytes-"+tt.wantExt)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestStatusMapping - Error to HTTP Status
// ---------------------------------------------------------------------------

func TestStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		err         error
		want        int
		wantMessage string
	}{
		{"empty document", ggbexport.ErrEmptyDocument, http.StatusBadRequest, "invalid data provided"},
		{"deadline", fmt.Errorf("acquire: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "rendering timed out"},
		{"svg timeout", ggbexport.ErrSVGTimeout, http.StatusGatewayTimeout, "rendering timed out"},
		{"pool closed", ggbexport.ErrPoolClosed, http.StatusServiceUnavailable, "rendering engine unavailable"},
		{"engine unavailable", fmt.Errorf("%w: %w", ggbexport.ErrEngineUnavailable, ggbexport.ErrBrowserConnect), http.StatusServiceUnavailable, "rendering engine unavailable"},
		{"engine execution", fmt.Errorf("%w: setBase64: TypeError at chrome-extension://x", ggbexport.ErrEngineExecution), http.StatusInternalServerError, "rendering failed"},
		{"unknown", errors.New("boom: /tmp/rod/chrome"), http.StatusInternalServerError, "rendering failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}

			h := newTestServer(t, &fakeRenderer{err: tt.err}, Config{})
			rec := post(t, h, "/export", `{"data":"UEsDBBQ="}`)
			if rec.Code != tt.want {
				t.Errorf("route status = %d, want %d", rec.Code, tt.want)
			}
			resp := decodeBody[errorResponse](t, rec)
			if resp.Status != tt.want {
				t.Errorf("body status = %d, want %d", resp.Status, tt.want)
			}
			if resp.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", resp.Message, tt.wantMessage)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestBodyLimit - Request Size Cap
// ---------------------------------------------------------------------------

func TestBodyLimit(t *testing.T) {
	t.Parallel()

	fake := &fakeRenderer{}
	h := newTestServer(t, fake, Config{MaxBodyBytes: 64})

	body := `{"data":"` + strings.Repeat("A", 256) + `"}`
	rec := post(t, h, "/export", body)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusRequestEntityTooLarge)
	}
	if fake.count() != 0 {
		t.Error("renderer called for oversized body")
	}
}

// ---------------------------------------------------------------------------
// TestHealthz - Pool Stats
// ---------------------------------------------------------------------------

func TestHealthz(t *testing.T) {
	t.Parallel()

	t.Run("reports pool stats", func(t *testing.T) {
		t.Parallel()

		stats := func() ggbexport.PoolStats {
			return ggbexport.PoolStats{Size: 4, Created: 2, Idle: 1}
		}
		h := newTestServer(t, &fakeRenderer{}, Config{Stats: stats})

		rec := get(t, h, "/healthz")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		resp := decodeBody[healthResponse](t, rec)
		if resp.Status != "ok" {
			t.Errorf("status field = %q, want ok", resp.Status)
		}
		if resp.Pool == nil || *resp.Pool != stats() {
			t.Errorf("pool = %+v, want %+v", resp.Pool, stats())
		}
	})

	t.Run("omits pool without stats", func(t *testing.T) {
		t.Parallel()

		h := newTestServer(t, &fakeRenderer{}, Config{})
		rec := get(t, h, "/healthz")
		if strings.Contains(rec.Body.String(), "pool") {
			t.Errorf("body = %s, want no pool field", rec.Body.String())
		}
	})
}

// ---------------------------------------------------------------------------
// TestMetrics - Prometheus Exposition
// ---------------------------------------------------------------------------

func TestMetrics(t *testing.T) {
	t.Parallel()

	stats := func() ggbexport.PoolStats { return ggbexport.PoolStats{Size: 3, Created: 1, Idle: 1} }
	h := newTestServer(t, &fakeRenderer{}, Config{Stats: stats})

	post(t, h, "/export", `{"data":"UEsDBBQ=","format":"png"}`)
	post(t, h, "/export", `{"data":""}`)

	rec := get(t, h, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		`ggbexport_export_total{format="png",outcome="success"} 1`,
		`ggbexport_export_duration_seconds_count{format="png"} 1`,
		`ggbexport_http_requests_total{code="200",route="/export"}`,
		`ggbexport_pool_size 3`,
		`ggbexport_pool_sessions_created 1`,
		`ggbexport_pool_sessions_idle 1`,
	} {
		if !bytes.Contains(body, []byte(want)) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestOutcome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{ggbexport.ErrEmptyDocument, "invalid"},
		{context.DeadlineExceeded, "timeout"},
		{ggbexport.ErrSVGTimeout, "timeout"},
		{ggbexport.ErrEngineExecution, "error"},
	}

	for _, tt := range tests {
		if got := outcome(tt.err); got != tt.want {
			t.Errorf("outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// TestRecoverer - Panics Become 500
// ---------------------------------------------------------------------------

func TestRecoverer(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, &fakeRenderer{panicMsg: "engine exploded"}, Config{})
	rec := post(t, h, "/export", `{"data":"UEsDBBQ="}`)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

// ---------------------------------------------------------------------------
// TestListenAndServe - Graceful Shutdown
// ---------------------------------------------------------------------------

func TestListenAndServe(t *testing.T) {
	t.Parallel()

	s := New(&fakeRenderer{}, Config{Addr: "127.0.0.1:0"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()

	cancel()
	if err := <-done; err != nil {
		t.Errorf("ListenAndServe() error = %v, want nil", err)
	}
}

func TestRoutes_UnknownPath(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, &fakeRenderer{}, Config{})
	rec := get(t, h, "/nope")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
