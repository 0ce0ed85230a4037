// Package browser attaches to a Chrome instance over the DevTools
// protocol and gives the pipeline its eyes and hands: page snapshots,
// click interception, overlay rendering, and screenshot capture.
package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/pennyhq/penny-companion/internal/common"
	"github.com/pennyhq/penny-companion/internal/config"
)

// Binding names exposed to page JavaScript. The armed control's capturing
// listener calls interceptBinding; overlay buttons call actionBinding.
const (
	interceptBinding = "__pennyIntercept"
	actionBinding    = "__pennyAction"
)

// Session is one attached browser tab.
type Session struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	mu          sync.Mutex
	onIntercept func()
	onAction    func(action string)
}

// NewSession attaches to a running Chrome when cfg.DevToolsURL is set, and
// launches a fresh instance otherwise.
func NewSession(ctx context.Context, cfg config.BrowserConfig) (*Session, error) {
	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)

	if cfg.DevToolsURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, cfg.DevToolsURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", cfg.Headless),
		)
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	}

	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// Materialize the tab and expose the callback bindings.
	if err := chromedp.Run(tabCtx,
		runtime.AddBinding(interceptBinding),
		runtime.AddBinding(actionBinding),
	); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: %v", common.ErrBrowserUnavailable, err)
	}

	s := &Session{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
	}

	chromedp.ListenTarget(tabCtx, s.handleEvent)
	return s, nil
}

// Close detaches from the browser.
func (s *Session) Close() {
	s.tabCancel()
	s.allocCancel()
}

// OnIntercept registers the callback invoked when the armed control's
// click is captured in the page.
func (s *Session) OnIntercept(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onIntercept = fn
}

// OnAction registers the callback invoked when an overlay button is
// pressed.
func (s *Session) OnAction(fn func(action string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onAction = fn
}

func (s *Session) handleEvent(ev any) {
	bound, ok := ev.(*runtime.EventBindingCalled)
	if !ok {
		return
	}

	s.mu.Lock()
	onIntercept, onAction := s.onIntercept, s.onAction
	s.mu.Unlock()

	switch bound.Name {
	case interceptBinding:
		if onIntercept != nil {
			// Binding events arrive on the CDP event loop; the pipeline
			// must not block it.
			go onIntercept()
		}
	case actionBinding:
		if onAction != nil {
			action := bound.Payload
			go onAction(action)
		}
	default:
	}
}

// Evaluate runs a JS expression in the tab and decodes the result.
func (s *Session) Evaluate(ctx context.Context, expr string, out any) error {
	runCtx, cancel := mergeContext(s.tabCtx, ctx)
	defer cancel()

	if out == nil {
		return chromedp.Run(runCtx, chromedp.Evaluate(expr, nil))
	}
	return chromedp.Run(runCtx, chromedp.Evaluate(expr, out))
}

// CaptureScreenshot captures the visible viewport as a PNG data URL.
func (s *Session) CaptureScreenshot(ctx context.Context) (string, error) {
	runCtx, cancel := mergeContext(s.tabCtx, ctx)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(runCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrCaptureDenied, err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf), nil
}

// Navigate loads a URL in the observed tab.
func (s *Session) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := mergeContext(s.tabCtx, ctx)
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	slog.Debug("Navigated", "url", url)
	return nil
}

// mergeContext ties the tab context's lifetime to the caller's deadline.
func mergeContext(tabCtx, callerCtx context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(tabCtx)
	stop := context.AfterFunc(callerCtx, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}
