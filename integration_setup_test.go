//go:build integration

package ggbexport

// Notes:
// - Integration test setup: shared SessionPool for all integration tests
// - testPool is initialized in TestMain and closed after all tests complete
// - GGBEXPORT_BUNDLE_PATH selects a local engine bundle; without it the
//   remote engine page is used, which needs network access
// - Pool size is capped at 2: every session runs its own Chrome

import (
	"context"
	"os"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Test Configuration
// ---------------------------------------------------------------------------

// testTimeout is the standard timeout for integration test operations.
const testTimeout = 90 * time.Second

// testPool is the shared SessionPool for all integration tests.
var testPool *SessionPool

// testSessionOptions returns the engine options derived from the environment.
func testSessionOptions() (Config, []Option) {
	cfg := Config{Concurrency: min(ResolvePoolSize(0), 2), EngineSource: EngineRemote}
	var opts []Option
	if path := os.Getenv("GGBEXPORT_BUNDLE_PATH"); path != "" {
		cfg.EngineSource = EngineLocal
		opts = append(opts, WithBundlePath(path))
	}
	opts = append(opts, WithBootTimeout(testTimeout))
	return cfg, opts
}

// ---------------------------------------------------------------------------
// TestMain - Integration Test Setup and Teardown
// ---------------------------------------------------------------------------

func TestMain(m *testing.M) {
	cfg, opts := testSessionOptions()
	testPool = NewSessionPool(cfg, opts...)

	code := m.Run()

	testPool.Close()
	os.Exit(code)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// acquireSession gets a session from the shared pool with automatic cleanup.
func acquireSession(t *testing.T) *Session {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	s, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		_ = testPool.Release(ctx, s)
	})
	return s
}

// buildDocument draws a small construction and returns it as base64 .ggb.
func buildDocument(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	s, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer testPool.Release(ctx, s)

	if err := s.RunCommands(ctx, []string{"A=(1,1)", "B=(4,3)", "s=Segment(A,B)", "c=Circle(A,2)"}, 0, 0); err != nil {
		t.Fatalf("RunCommands() error = %v", err)
	}
	v, err := s.Invoke(ctx, "getBase64")
	if err != nil {
		t.Fatalf("getBase64 error = %v", err)
	}
	doc := v.Str()
	if doc == "" {
		t.Fatal("getBase64 returned an empty document")
	}
	return doc
}
