package modal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pennyhq/penny-companion/internal/dispatch"
	"github.com/pennyhq/penny-companion/internal/model"
)

// State is one display state of the overlay.
type State string

// Overlay states. At most one is active at a time.
const (
	StateIdle       State = "idle"
	StateAnalyzing  State = "analyzing"
	StateResults    State = "results"
	StateError      State = "error"
	StateConfirming State = "confirming"
	StateTracking   State = "tracking"
	StateSuccess    State = "success"
	StateSkipped    State = "skipped"
	StateClosed     State = "closed"
)

// validTransitions is the allowed state graph.
var validTransitions = map[State][]State{
	StateIdle:       {StateAnalyzing},
	StateAnalyzing:  {StateResults, StateError},
	StateResults:    {StateConfirming, StateClosed},
	StateError:      {StateAnalyzing, StateClosed},
	StateConfirming: {StateTracking, StateSkipped, StateClosed},
	StateTracking:   {StateSuccess, StateError},
	StateSuccess:    {StateClosed},
	StateSkipped:    {StateClosed},
	StateClosed:     {},
}

// Flow selects which pipeline runs after interception.
type Flow string

// Pipeline variants.
const (
	// FlowCartAnalysis screenshots the cart and tracks category splits.
	FlowCartAnalysis Flow = "cart_analysis"
	// FlowLegacyWarning shows the single-product time-cost warning with
	// async deal lookup.
	FlowLegacyWarning Flow = "legacy_warning"
)

// Config wires a Controller's collaborators.
type Config struct {
	Surface Surface
	Clicker Clicker
	Send    SendFunc
	User    model.UserProfile
	Flow    Flow
	Now     func() time.Time
}

// Controller owns one page's interception lifecycle: the interception
// flag, the analysis result, and the overlay state. All mutable pipeline
// state lives here, never at package level, so multiple frames or tests
// don't collide.
type Controller struct {
	now          func() time.Time
	surface      Surface
	clicker      Clicker
	send         SendFunc
	analysis     *model.CartAnalysis
	state        State
	flow         Flow
	user         model.UserProfile
	mu           sync.Mutex
	warningShown bool
}

// NewController creates an idle controller.
func NewController(cfg Config) *Controller {
	flow := cfg.Flow
	if flow == "" {
		flow = FlowCartAnalysis
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		surface: cfg.Surface,
		clicker: cfg.Clicker,
		send:    cfg.Send,
		user:    cfg.User,
		flow:    flow,
		now:     now,
		state:   StateIdle,
	}
}

// State returns the current overlay state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// WarningShown reports the interception flag. While true, clicks on the
// armed control pass through uncaptured.
func (c *Controller) WarningShown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.warningShown
}

// Intercept handles a click on the armed control. It returns true when the
// click was captured and the overlay opened, false when the click must
// pass through (flag already set: a flow is in flight, or the proceed path
// is re-dispatching). The flag flips synchronously before any suspension
// so a second rapid click is a no-op.
func (c *Controller) Intercept(ctx context.Context, page PageInfo) bool {
	c.mu.Lock()
	if c.warningShown {
		c.mu.Unlock()
		return false
	}
	c.warningShown = true
	c.state = StateAnalyzing
	c.mu.Unlock()

	slog.Debug("Click intercepted", "flow", c.flow, "product", page.ProductName)

	switch c.flow {
	case FlowLegacyWarning:
		c.runWarning(ctx, page)
	default:
		c.runAnalysis(ctx)
	}
	return true
}

// Retry re-enters the analyzing state from an error overlay. Retries are
// user-initiated only.
func (c *Controller) Retry(ctx context.Context) error {
	if err := c.transition(StateError, StateAnalyzing); err != nil {
		return err
	}
	c.runAnalysis(ctx)
	return nil
}

// KeepIt advances from the results breakdown to tracking confirmation.
func (c *Controller) KeepIt(ctx context.Context) error {
	if err := c.transition(StateResults, StateConfirming); err != nil {
		return err
	}
	c.renderConfirm(ctx)
	return nil
}

// ConfirmTracking posts the analyzed items to the finance API and shows
// the success summary.
func (c *Controller) ConfirmTracking(ctx context.Context) error {
	if err := c.transition(StateConfirming, StateTracking); err != nil {
		return err
	}

	c.mu.Lock()
	analysis := c.analysis
	c.mu.Unlock()
	if analysis == nil {
		c.toError(ctx, "nothing to track")
		return nil
	}

	date := analysis.Date
	if date == "" {
		date = c.now().Format("2006-01-02")
	}

	resp := c.send(ctx, dispatch.Request{
		Type:  dispatch.TypeConfirmCart,
		Items: analysis.RawItems,
		Date:  date,
	})
	if !resp.Success {
		c.toError(ctx, resp.Error)
		return nil
	}

	count := len(resp.Transactions)
	if count == 0 {
		count = len(analysis.RawItems)
	}

	c.setState(StateSuccess)
	c.render(c.surface.ShowSuccess(ctx, count))
	return nil
}

// SkipTracking abandons tracking from the confirmation view and proceeds
// to checkout. Equivalent to "continue anyway": no failure or refusal here
// ever blocks the purchase.
func (c *Controller) SkipTracking(ctx context.Context) error {
	if err := c.transition(StateConfirming, StateSkipped); err != nil {
		return err
	}
	c.mu.Lock()
	c.analysis = nil
	c.mu.Unlock()
	return c.Proceed(ctx)
}

// Proceed closes the overlay and re-dispatches the native click. The
// interception flag stays true so the replayed click is not re-captured.
// This is the only path that lets the original checkout action continue.
func (c *Controller) Proceed(ctx context.Context) error {
	c.mu.Lock()
	c.state = StateClosed
	c.analysis = nil
	c.mu.Unlock()

	c.render(c.surface.Remove(ctx))

	if err := c.clicker.ClickArmed(ctx); err != nil {
		return fmt.Errorf("failed to re-dispatch checkout click: %w", err)
	}
	return nil
}

// Reset returns the controller to idle, dropping the interception flag
// and any held analysis. The pipeline calls it when the observed page
// navigates: overlay and listeners died with the old document, and a
// stale flag here would swallow the new page's first checkout click.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.state = StateIdle
	c.analysis = nil
	c.warningShown = false
	c.mu.Unlock()
}

// Cancel dismisses the overlay without buying: the analysis is discarded
// and the interception flag resets so the next click is captured again.
func (c *Controller) Cancel(ctx context.Context) error {
	c.mu.Lock()
	c.state = StateClosed
	c.analysis = nil
	c.warningShown = false
	c.mu.Unlock()

	return c.surface.Remove(ctx)
}

// Analysis returns the held cart analysis, nil outside results/confirming.
func (c *Controller) Analysis() *model.CartAnalysis {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.analysis
}

// runAnalysis drives screenshot capture then server analysis. Capture
// strictly precedes analysis; the analysis input is the capture output.
func (c *Controller) runAnalysis(ctx context.Context) {
	c.render(c.surface.ShowAnalyzing(ctx))

	capture := c.send(ctx, dispatch.Request{Type: dispatch.TypeCaptureScreenshot})
	if !capture.Success {
		c.toError(ctx, capture.Error)
		return
	}

	analyzed := c.send(ctx, dispatch.Request{
		Type:      dispatch.TypeAnalyzeCart,
		ImageData: capture.DataURL,
	})
	if !analyzed.Success || analyzed.Result == nil {
		msg := analyzed.Error
		if msg == "" {
			msg = "analysis returned no result"
		}
		c.toError(ctx, msg)
		return
	}

	c.mu.Lock()
	c.analysis = analyzed.Result
	c.state = StateResults
	c.mu.Unlock()

	c.render(c.surface.ShowResults(ctx, analyzed.Result))
}

// runWarning renders the legacy time-cost warning immediately, then fills
// in deals; the deal lookup never blocks the initial render.
func (c *Controller) runWarning(ctx context.Context, page PageInfo) {
	view := WarningView{
		ProductName: page.ProductName,
		Price:       page.Price,
		Balance:     c.user.Balance,
		TimeCost:    c.user.TimeCost(page.Price),
	}

	c.mu.Lock()
	c.state = StateResults
	c.mu.Unlock()
	c.render(c.surface.ShowWarning(ctx, view))

	resp := c.send(ctx, dispatch.Request{
		Type:         dispatch.TypeFetchDeals,
		Query:        page.ProductName,
		CurrentPrice: page.Price,
	})
	// Lookup failure and zero results render identically: the user already
	// found the best price.
	if !resp.Success || len(resp.Deals) == 0 {
		c.render(c.surface.ShowNoDeals(ctx))
		return
	}
	c.render(c.surface.UpdateDeals(ctx, resp.Deals))
}

func (c *Controller) renderConfirm(ctx context.Context) {
	c.mu.Lock()
	analysis := c.analysis
	c.mu.Unlock()
	c.render(c.surface.ShowConfirm(ctx, analysis))
}

// toError moves to the error overlay, which always offers retry and
// continue-anyway. A failed analysis never blocks checkout.
func (c *Controller) toError(ctx context.Context, msg string) {
	c.setState(StateError)
	c.render(c.surface.ShowError(ctx, msg))
}

func (c *Controller) setState(to State) {
	c.mu.Lock()
	c.state = to
	c.mu.Unlock()
}

// transition atomically moves from an expected state to a new one,
// rejecting calls that arrive in the wrong state.
func (c *Controller) transition(from, to State) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != from {
		return fmt.Errorf("invalid transition to %s: current state is %s, want %s", to, c.state, from)
	}
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			c.state = to
			return nil
		}
	}
	return fmt.Errorf("transition %s -> %s not allowed", from, to)
}

// render logs surface failures instead of propagating them: the overlay
// may have been removed underneath an in-flight render, and that is
// harmless.
func (c *Controller) render(err error) {
	if err != nil {
		slog.Debug("Overlay render skipped", "error", err)
	}
}
