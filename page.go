package ggbexport

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

// enginePage abstracts the automation page hosting the engine so sessions
// can be tested without a browser.
type enginePage interface {
	// WaitUntilReady blocks until the engine scripting object exists.
	WaitUntilReady(ctx context.Context) error
	// Invoke calls a member of the engine object, or reads it when it is
	// not a function.
	Invoke(ctx context.Context, member string, args ...any) (gson.JSON, error)
	// Eval runs a JS function in the page with the given arguments.
	Eval(ctx context.Context, js string, args ...any) (gson.JSON, error)
	SetViewport(ctx context.Context, width, height int) error
	Close() error
}

// Compile-time interface check.
var _ enginePage = (*rodPage)(nil)

const engineReadyJS = `() => window.ggbApplet != null`

const invokeJS = `(member, args) => {
	const app = window.ggbApplet;
	if (app == null) {
		throw new Error("ggbApplet is not available");
	}
	const prop = app[member];
	if (typeof prop === "function") {
		return prop.apply(app, args);
	}
	return prop;
}`

// rodPage implements enginePage on a go-rod page.
type rodPage struct {
	page *rod.Page
}

func (p *rodPage) WaitUntilReady(ctx context.Context) error {
	if err := p.page.Context(ctx).Wait(rod.Eval(engineReadyJS)); err != nil {
		return fmt.Errorf("waiting for ggbApplet: %w", err)
	}
	return nil
}

func (p *rodPage) Invoke(ctx context.Context, member string, args ...any) (gson.JSON, error) {
	if args == nil {
		args = []any{}
	}
	return p.Eval(ctx, invokeJS, member, args)
}

func (p *rodPage) Eval(ctx context.Context, js string, args ...any) (gson.JSON, error) {
	obj, err := p.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return gson.JSON{}, err
	}
	return obj.Value, nil
}

func (p *rodPage) SetViewport(ctx context.Context, width, height int) error {
	return p.page.Context(ctx).SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
	})
}

func (p *rodPage) Close() error {
	return p.page.Close()
}

// openEnginePage creates a page on b, navigates it to url and waits until
// the network is almost idle and the engine object is defined.
// The returned page is not bound to ctx.
func openEnginePage(ctx context.Context, b *rod.Browser, url string, logger *slog.Logger) (*rodPage, error) {
	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageCreate, err)
	}

	go page.EachEvent(func(e *proto.RuntimeConsoleAPICalled) {
		logger.Debug("page console", "type", string(e.Type), "text", consoleText(e.Args))
	})()

	nav := page.Context(ctx)
	wait := nav.WaitNavigation(proto.PageLifecycleEventNameNetworkAlmostIdle)
	if err := nav.Navigate(url); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrPageLoad, url, err)
	}
	wait()
	if err := ctx.Err(); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrPageLoad, url, err)
	}
	logger.Debug("engine page loaded", "url", url)

	p := &rodPage{page: page}
	if err := p.WaitUntilReady(ctx); err != nil {
		_ = page.Close()
		return nil, err
	}
	return p, nil
}

// consoleText flattens console arguments into one line.
func consoleText(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		if a.Value.Nil() {
			parts = append(parts, a.Description)
			continue
		}
		if s, ok := a.Value.Val().(string); ok {
			parts = append(parts, s)
			continue
		}
		parts = append(parts, a.Value.JSON("", ""))
	}
	return strings.Join(parts, " ")
}
