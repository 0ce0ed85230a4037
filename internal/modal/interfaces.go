// Package modal owns the overlay state machine shown after a checkout
// click is intercepted, and sequences the backend round-trips that feed
// it.
package modal

import (
	"context"

	"github.com/pennyhq/penny-companion/internal/dispatch"
	"github.com/pennyhq/penny-companion/internal/model"
)

// SendFunc delivers one request to the dispatcher and returns its single
// reply envelope.
type SendFunc func(ctx context.Context, req dispatch.Request) dispatch.Response

// WarningView is the legacy single-product warning: price, balance, and
// the time cost of the purchase in work hours.
type WarningView struct {
	ProductName string
	TimeCost    string
	Price       float64
	Balance     float64
}

// Surface renders the overlay states on the page. Implementations must
// tolerate being called after the overlay was removed; a resolved-but-
// unused render is harmless.
type Surface interface {
	ShowAnalyzing(ctx context.Context) error
	ShowResults(ctx context.Context, analysis *model.CartAnalysis) error
	ShowConfirm(ctx context.Context, analysis *model.CartAnalysis) error
	ShowSuccess(ctx context.Context, trackedCount int) error
	ShowError(ctx context.Context, message string) error
	ShowWarning(ctx context.Context, view WarningView) error
	UpdateDeals(ctx context.Context, deals []model.Deal) error
	ShowNoDeals(ctx context.Context) error
	Remove(ctx context.Context) error
}

// Clicker re-dispatches the armed control's native click so the original
// checkout action proceeds.
type Clicker interface {
	ClickArmed(ctx context.Context) error
}

// PageInfo carries what the observer scraped from the page at
// interception time. The legacy warning flow uses it; the cart-analysis
// flow works from a screenshot instead.
type PageInfo struct {
	ProductName string
	Price       float64
}
