package ggbexport

// Notes:
// - fakeEngine stands in for the Chrome page hosting GeoGebra. It records
//   every engine member invoked and simulates the SVG callback container.
// - Real browser behavior is covered by the integration tests
//   (go test -tags integration).

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ysmood/gson"
)

type fakeCall struct {
	Member string
	Args   []any
}

type fakeEngine struct {
	mu sync.Mutex

	results  map[string]any
	errs     map[string]error
	readyErr error

	// SVG container simulation: markup becomes visible after svgAfter polls.
	svgMarkup   string
	svgAfter    int
	svgPolls    int
	svgStartErr error

	calls    []fakeCall
	viewport [2]int
	closed   int
}

var _ enginePage = (*fakeEngine)(nil)

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		results: map[string]any{
			"getPNGBase64": "iVBORw0KGgo=",
			"exportPDF":    "data:application/pdf;base64,JVBERi0xLjQ=",
			"getBase64":    "UEsDBBQ=",
			"evalCommand":  true,
		},
		errs:      map[string]error{},
		svgMarkup: `<svg xmlns="http://www.w3.org/2000/svg"><circle cx="0" cy="0" r="3"/></svg>`,
	}
}

func (f *fakeEngine) WaitUntilReady(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readyErr
}

func (f *fakeEngine) Invoke(ctx context.Context, member string, args ...any) (gson.JSON, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{Member: member, Args: args})
	if err := f.errs[member]; err != nil {
		return gson.JSON{}, err
	}
	return gson.New(f.results[member]), nil
}

func (f *fakeEngine) Eval(ctx context.Context, js string, args ...any) (gson.JSON, error) {
	if err := ctx.Err(); err != nil {
		return gson.JSON{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	switch js {
	case svgStartJS:
		f.calls = append(f.calls, fakeCall{Member: "exportSVG", Args: args})
		f.svgPolls = 0
		return gson.New(nil), f.svgStartErr
	case svgMarkupJS:
		f.svgPolls++
		if f.svgPolls > f.svgAfter {
			return gson.New(f.svgMarkup), nil
		}
		return gson.New(""), nil
	}
	return gson.New(nil), errors.New("unexpected script")
}

func (f *fakeEngine) SetViewport(ctx context.Context, width, height int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.viewport = [2]int{width, height}
	return nil
}

func (f *fakeEngine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeEngine) members() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Member
	}
	return out
}

func (f *fakeEngine) lastCall(member string) (fakeCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].Member == member {
			return f.calls[i], true
		}
	}
	return fakeCall{}, false
}

func (f *fakeEngine) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeCloser counts Close calls on an owned browser.
type fakeCloser struct {
	mu     sync.Mutex
	closed int
	err    error
}

var _ io.Closer = (*fakeCloser)(nil)

func (c *fakeCloser) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return c.err
}

func (c *fakeCloser) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// testCtx returns a context that ends with the test.
func testCtx(t testing.TB) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// newInjectedSession returns a ready session running on engine.
func newInjectedSession(t *testing.T, engine *fakeEngine, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{withEnginePage(engine)}, opts...)
	s := New(opts...)
	if err := s.Ready(testCtx(t)); err != nil {
		t.Fatalf("Ready() error = %v", err)
	}
	return s
}

// newOwnedSession returns a ready session that owns engine and closer.
func newOwnedSession(t *testing.T, engine *fakeEngine, closer *fakeCloser, opts ...Option) *Session {
	t.Helper()
	boot := func(ctx context.Context) (enginePage, io.Closer, error) {
		return engine, closer, nil
	}
	opts = append([]Option{withBootFunc(boot)}, opts...)
	s := New(opts...)
	if err := s.Ready(testCtx(t)); err != nil {
		t.Fatalf("Ready() error = %v", err)
	}
	return s
}
