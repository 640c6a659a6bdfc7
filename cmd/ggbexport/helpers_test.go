package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	ggbexport "github.com/alnah/go-ggbexport"
	"github.com/alnah/go-ggbexport/internal/config"
	"github.com/alnah/go-ggbexport/internal/server"
)

// ---------------------------------------------------------------------------
// Test Infrastructure - Fake backend
// ---------------------------------------------------------------------------

// fakeBackend records render requests and returns "out:<format>".
type fakeBackend struct {
	mu       sync.Mutex
	requests []ggbexport.Request
	errFor   map[string]error // keyed by document
	size     int
	closed   int
}

func (f *fakeBackend) Render(_ context.Context, req ggbexport.Request) (string, error) {
	data, format, err := f.RenderBytes(context.Background(), req)
	if err != nil {
		return "", err
	}
	return "data:" + format.MIMEType() + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func (f *fakeBackend) RenderBytes(_ context.Context, req ggbexport.Request) ([]byte, ggbexport.Format, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if err := f.errFor[req.Document]; err != nil {
		return nil, "", err
	}
	format := ggbexport.RequestFormat(req.Format)
	return []byte("out:" + string(format)), format, nil
}

func (f *fakeBackend) Size() int {
	if f.size == 0 {
		return 2
	}
	return f.size
}

func (f *fakeBackend) Stats() ggbexport.PoolStats {
	return ggbexport.PoolStats{Size: f.Size()}
}

func (f *fakeBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeBackend) recorded() []ggbexport.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ggbexport.Request(nil), f.requests...)
}

// testEnv is an Environment with buffers and a fake backend.
type testEnv struct {
	*Environment
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
	backend *fakeBackend
	cfg     *config.Config // config handed to NewBackend
	served  *server.Server
}

func newTestEnv(stdin string) *testEnv {
	te := &testEnv{
		stdout:  &bytes.Buffer{},
		stderr:  &bytes.Buffer{},
		backend: &fakeBackend{},
	}
	te.Environment = &Environment{
		Now:    func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
		Stdin:  strings.NewReader(stdin),
		Stdout: te.stdout,
		Stderr: te.stderr,
		NewBackend: func(cfg *config.Config, _ *slog.Logger) Backend {
			te.cfg = cfg
			return te.backend
		},
		Serve: func(_ context.Context, s *server.Server) error {
			te.served = s
			return nil
		},
		Config: config.DefaultConfig(),
	}
	return te
}

// ggbBytes is a minimal byte sequence recognized as a .ggb archive.
var ggbBytes = []byte("PK\x03\x04geogebra.xml")

func ggbBase64() string {
	return base64.StdEncoding.EncodeToString(ggbBytes)
}

// writeFiles creates files under a temp directory and returns it.
func writeFiles(t *testing.T, files map[string][]byte) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, content, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

func writeConfig(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
