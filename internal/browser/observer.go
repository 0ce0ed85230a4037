package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pennyhq/penny-companion/internal/common"
	"github.com/pennyhq/penny-companion/internal/detect"
)

// armJSTemplate installs a capturing click listener on the discovered
// control. The listener fires before the page's own handlers; while the
// pass-through flag is unset it suppresses the click and notifies the
// companion, and while set it lets the click run untouched so the proceed
// path can replay it.
const armJSTemplate = `(() => {
  const el = document.querySelector(%q);
  if (!el) return false;
  document.querySelectorAll('[data-penny-armed]').forEach(n => n.removeAttribute('data-penny-armed'));
  el.setAttribute('data-penny-armed', '1');
  if (!el.__pennyArmed) {
    el.__pennyArmed = true;
    el.addEventListener('click', (e) => {
      if (window.__pennyPassThrough) return;
      e.preventDefault();
      e.stopPropagation();
      window.%s('click');
    }, true);
  }
  return true;
})()`

// PageDriver is the slice of the browser session the observer needs:
// collecting snapshots and running page script.
type PageDriver interface {
	Snapshot(ctx context.Context) (detect.PageSnapshot, error)
	Evaluate(ctx context.Context, expr string, out any) error
}

// Observer keeps exactly one checkout control armed on the observed page,
// re-running discovery whenever the armed control detaches.
type Observer struct {
	driver       PageDriver
	strategies   []detect.Strategy
	pollInterval time.Duration
	onNavigate   func()

	mu            sync.Mutex
	armedSelector string
	pageURL       string
}

// NewObserver creates an observer over a page driver.
func NewObserver(driver PageDriver, pollInterval time.Duration) *Observer {
	if pollInterval <= 0 {
		pollInterval = 750 * time.Millisecond
	}
	return &Observer{
		driver:       driver,
		strategies:   detect.DefaultStrategies,
		pollInterval: pollInterval,
	}
}

// OnNavigate registers the callback fired when the observed page's URL
// changes. Register before Watch starts; the callback runs on the poll
// goroutine.
func (o *Observer) OnNavigate(fn func()) {
	o.onNavigate = fn
}

// ArmedSelector returns the selector of the currently armed control, ""
// when nothing is armed.
func (o *Observer) ArmedSelector() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.armedSelector
}

// Watch polls the page until ctx is done: classify, discover, re-arm. The
// poll stands in for a subtree MutationObserver; the attached predicate is
// explicit (the armed selector must reappear among collected candidates)
// rather than a live node reference. Detection misses are silent no-ops.
func (o *Observer) Watch(ctx context.Context) error {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			o.tick(ctx)
		}
	}
}

func (o *Observer) tick(ctx context.Context) {
	snap, err := o.driver.Snapshot(ctx)
	if err != nil {
		slog.Debug("Snapshot failed, will retry", "error", err)
		return
	}

	o.noteNavigation(snap.URL)

	if !detect.ClassifyPage(snap) {
		o.disarm()
		return
	}

	if o.armedAttached(snap) {
		return
	}

	control, found := detect.FindCheckoutControlWith(snap, o.strategies)
	if !found {
		// Best effort: the page stays unintercepted.
		o.disarm()
		return
	}

	if err := o.arm(ctx, control.Selector); err != nil {
		slog.Debug("Failed to arm control", "selector", control.Selector, "error", err)
	}
}

// noteNavigation disarms and notifies when the page URL changed: the old
// document took its listeners, overlay, and window flags with it.
func (o *Observer) noteNavigation(url string) {
	o.mu.Lock()
	previous := o.pageURL
	o.pageURL = url
	if previous == url {
		o.mu.Unlock()
		return
	}
	o.armedSelector = ""
	o.mu.Unlock()

	if previous == "" {
		// First snapshot, nothing to tear down.
		return
	}

	slog.Debug("Page navigated", "from", previous, "to", url)
	if o.onNavigate != nil {
		o.onNavigate()
	}
}

// armedAttached checks whether the armed control is still in the document:
// its tagged selector must show up among the collected candidates.
func (o *Observer) armedAttached(snap detect.PageSnapshot) bool {
	o.mu.Lock()
	armed := o.armedSelector
	o.mu.Unlock()
	if armed == "" {
		return false
	}

	for i := range snap.Candidates {
		if snap.Candidates[i].Selector == armed && snap.Candidates[i].Attached {
			return true
		}
	}
	return false
}

// arm fits the control with the capturing interceptor. Re-arming a new
// element abandons the old binding; the detached node needs no teardown.
func (o *Observer) arm(ctx context.Context, selector string) error {
	var ok bool
	expr := fmt.Sprintf(armJSTemplate, selector, interceptBinding)
	if err := o.driver.Evaluate(ctx, expr, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("control %s vanished before arming", selector)
	}

	o.mu.Lock()
	o.armedSelector = selector
	o.mu.Unlock()

	slog.Info("Checkout control armed", "selector", selector)
	return nil
}

func (o *Observer) disarm() {
	o.mu.Lock()
	o.armedSelector = ""
	o.mu.Unlock()
}

// SetPassThrough mirrors the controller's interception flag into the page
// so the capturing listener can decide synchronously.
func (o *Observer) SetPassThrough(ctx context.Context, passThrough bool) error {
	expr := fmt.Sprintf("window.__pennyPassThrough = %t", passThrough)
	return o.driver.Evaluate(ctx, expr, nil)
}

// ClickArmed replays the armed control's native click. Callers must have
// set pass-through first so the replay is not re-captured.
func (o *Observer) ClickArmed(ctx context.Context) error {
	o.mu.Lock()
	armed := o.armedSelector
	o.mu.Unlock()
	if armed == "" {
		return common.ErrNoCheckoutControl
	}

	var ok bool
	expr := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		el.click();
		return true;
	})()`, armed)
	if err := o.driver.Evaluate(ctx, expr, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("armed control %s is gone", armed)
	}
	return nil
}
