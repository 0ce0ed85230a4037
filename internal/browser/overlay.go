package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/pennyhq/penny-companion/internal/modal"
	"github.com/pennyhq/penny-companion/internal/model"
)

// Evaluator runs page script, the only capability the overlay needs.
type Evaluator interface {
	Evaluate(ctx context.Context, expr string, out any) error
}

// Overlay renders the modal states into the page. Implements
// modal.Surface. Every render replaces the overlay's inner content; button
// clicks call back through the action binding.
type Overlay struct {
	sess Evaluator
}

// NewOverlay creates the overlay surface for a session.
func NewOverlay(sess Evaluator) *Overlay {
	return &Overlay{sess: sess}
}

// Overlay action payloads, routed back to the controller.
const (
	ActionCancel  = "cancel"
	ActionKeep    = "keep"
	ActionRetry   = "retry"
	ActionProceed = "proceed"
	ActionTrack   = "track"
	ActionSkip    = "skip"
)

const overlayCSS = `position:fixed;inset:0;background:rgba(0,0,0,.55);z-index:2147483647;` +
	`display:flex;align-items:center;justify-content:center;font-family:system-ui,sans-serif`

const modalCSS = `background:#fff;border-radius:12px;padding:24px;max-width:380px;width:90%;` +
	`box-shadow:0 8px 32px rgba(0,0,0,.35)`

// render injects (or replaces) the overlay with the given body HTML.
func (o *Overlay) render(ctx context.Context, body string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode overlay body: %w", err)
	}

	expr := fmt.Sprintf(`(() => {
		let overlay = document.getElementById('penny-overlay');
		if (!overlay) {
			overlay = document.createElement('div');
			overlay.id = 'penny-overlay';
			overlay.setAttribute('style', %q);
			document.body.appendChild(overlay);
		}
		overlay.innerHTML = %s;
		overlay.querySelectorAll('[data-penny-action]').forEach(btn => {
			btn.addEventListener('click', () => window.%s(btn.dataset.pennyAction));
		});
		return true;
	})()`, overlayCSS, string(payload), actionBinding)

	var ok bool
	return o.sess.Evaluate(ctx, expr, &ok)
}

// Remove tears the overlay down. Safe to call when it is already gone.
func (o *Overlay) Remove(ctx context.Context) error {
	expr := `(() => { const el = document.getElementById('penny-overlay'); if (el) el.remove(); return true; })()`
	var ok bool
	return o.sess.Evaluate(ctx, expr, &ok)
}

// ShowAnalyzing renders the loading state.
func (o *Overlay) ShowAnalyzing(ctx context.Context) error {
	return o.render(ctx, o.frame(`
		<h2>One moment...</h2>
		<p>Penny is reading your cart.</p>
		<div class="penny-spinner">&#8987;</div>`))
}

// ShowResults renders the merchant/total/items breakdown with keep/cancel
// actions.
func (o *Overlay) ShowResults(ctx context.Context, analysis *model.CartAnalysis) error {
	var items strings.Builder
	for _, item := range analysis.RawItems {
		items.WriteString(fmt.Sprintf(
			`<div class="penny-row"><span>%s</span><span>$%.2f</span></div>`,
			html.EscapeString(item.ItemName), item.Amount))
	}

	body := o.frame(fmt.Sprintf(`
		<h2>Wait a second!</h2>
		<p>You're about to spend <strong>$%.2f</strong> at <strong>%s</strong>.</p>
		%s
		<div class="penny-buttons">%s%s</div>`,
		analysis.TotalAmount,
		html.EscapeString(analysis.Merchant),
		items.String(),
		o.button(ActionCancel, "I'll pass"),
		o.button(ActionKeep, "Keep it")))
	return o.render(ctx, body)
}

// ShowConfirm renders the category-split breakdown with track/skip
// actions.
func (o *Overlay) ShowConfirm(ctx context.Context, analysis *model.CartAnalysis) error {
	var splits strings.Builder
	if analysis != nil {
		for _, split := range analysis.Splits {
			splits.WriteString(fmt.Sprintf(
				`<div class="penny-row"><span>%s</span><span>$%.2f</span></div>`,
				html.EscapeString(split.Category), split.Amount))
		}
	}

	body := o.frame(fmt.Sprintf(`
		<h2>Track this purchase?</h2>
		<p>Penny can file these against your budgets.</p>
		%s
		<div class="penny-buttons">%s%s</div>`,
		splits.String(),
		o.button(ActionSkip, "Skip tracking"),
		o.button(ActionTrack, "Track & Continue")))
	return o.render(ctx, body)
}

// ShowSuccess renders the tracked-item summary with the continue action.
func (o *Overlay) ShowSuccess(ctx context.Context, trackedCount int) error {
	return o.render(ctx, o.frame(fmt.Sprintf(`
		<h2>All set!</h2>
		<p>Tracked <strong>%d</strong> item(s) against your budgets.</p>
		<div class="penny-buttons">%s</div>`,
		trackedCount,
		o.button(ActionProceed, "Continue to checkout"))))
}

// ShowError renders the failure state. Both actions remain available: a
// failed analysis never blocks checkout.
func (o *Overlay) ShowError(ctx context.Context, message string) error {
	return o.render(ctx, o.frame(fmt.Sprintf(`
		<h2>Something went wrong</h2>
		<p>%s</p>
		<div class="penny-buttons">%s%s</div>`,
		html.EscapeString(message),
		o.button(ActionRetry, "Try again"),
		o.button(ActionProceed, "Continue anyway"))))
}

// ShowWarning renders the legacy single-product time-cost warning, with a
// placeholder the deal lookup fills in later.
func (o *Overlay) ShowWarning(ctx context.Context, view modal.WarningView) error {
	body := o.frame(fmt.Sprintf(`
		<h2>Wait a second!</h2>
		<p>Penny noticed you're about to spend <strong>%s hours</strong> of your life on <strong>%q</strong>.</p>
		<div id="penny-deals">Searching for better deals...</div>
		<div class="penny-row"><span>Current Price:</span><span>$%.2f</span></div>
		<div class="penny-row"><span>Your Balance:</span><span>$%.2f</span></div>
		<div class="penny-buttons">%s%s</div>`,
		html.EscapeString(view.TimeCost),
		html.EscapeString(view.ProductName),
		view.Price,
		view.Balance,
		o.button(ActionCancel, "I'll pass"),
		o.button(ActionProceed, "Keep it")))
	return o.render(ctx, body)
}

// UpdateDeals fills the deal placeholder without re-rendering the modal.
func (o *Overlay) UpdateDeals(ctx context.Context, deals []model.Deal) error {
	var rows strings.Builder
	for _, deal := range deals {
		seller := deal.Seller
		if seller == "" {
			seller = "Another Store"
		}
		rows.WriteString(fmt.Sprintf(
			`<div class="penny-row"><span>%s</span><a href=%q target="_blank">$%.2f</a></div>`,
			html.EscapeString(seller), deal.URL, deal.Price))
	}
	return o.fillDeals(ctx, `<strong>Better deals found!</strong>`+rows.String())
}

// ShowNoDeals fills the deal placeholder for both the zero-results and
// lookup-failed outcomes.
func (o *Overlay) ShowNoDeals(ctx context.Context) error {
	return o.fillDeals(ctx, `You've already found the best price!`)
}

func (o *Overlay) fillDeals(ctx context.Context, inner string) error {
	payload, err := json.Marshal(inner)
	if err != nil {
		return fmt.Errorf("failed to encode deals: %w", err)
	}

	// Null-checked on purpose: the modal may have been dismissed while the
	// lookup was in flight.
	expr := fmt.Sprintf(`(() => {
		const el = document.getElementById('penny-deals');
		if (!el) return false;
		el.innerHTML = %s;
		return true;
	})()`, string(payload))

	var ok bool
	return o.sess.Evaluate(ctx, expr, &ok)
}

func (o *Overlay) frame(inner string) string {
	return fmt.Sprintf(`<div class="penny-modal" style="%s">%s</div>`, modalCSS, inner)
}

func (o *Overlay) button(action, label string) string {
	return fmt.Sprintf(`<button data-penny-action=%q>%s</button>`, action, html.EscapeString(label))
}
