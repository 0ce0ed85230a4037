package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pennyhq/penny-companion/internal/common"
	"github.com/pennyhq/penny-companion/internal/deals"
	"github.com/pennyhq/penny-companion/internal/model"
)

// TokenSource yields the stored bearer token, "" when logged out.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Capturer produces a PNG data URL of the observed page's viewport.
type Capturer interface {
	CaptureScreenshot(ctx context.Context) (string, error)
}

// DealFinder looks up cheaper offers for a product.
type DealFinder interface {
	FindCheaper(ctx context.Context, query string, currentPrice float64) deals.Result
}

// FinanceAPI is the authenticated slice of the Penny API the dispatcher
// calls on behalf of the pipeline.
type FinanceAPI interface {
	AnalyzeCart(ctx context.Context, token, imageData string) (*model.CartAnalysis, error)
	ConfirmCart(ctx context.Context, token string, items []model.CartItem, date string) ([]model.TrackedTransaction, error)
}

// Dispatcher is the only component that performs privileged browser
// actions and outbound fetches with the stored token.
type Dispatcher struct {
	tokens   TokenSource
	capturer Capturer
	deals    DealFinder
	api      FinanceAPI
}

// New creates a dispatcher.
func New(tokens TokenSource, capturer Capturer, dealFinder DealFinder, api FinanceAPI) *Dispatcher {
	return &Dispatcher{
		tokens:   tokens,
		capturer: capturer,
		deals:    dealFinder,
		api:      api,
	}
}

// Dispatch handles one request and returns exactly one reply envelope.
// Handler failures become Success=false envelopes; Dispatch itself never
// returns an error because every outcome must reach the caller as a reply.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	slog.Debug("Dispatching request", "id", req.ID, "type", req.Type)

	switch req.Type {
	case TypeFetchDeals:
		return d.handleFetchDeals(ctx, req)
	case TypeCaptureScreenshot:
		return d.handleCaptureScreenshot(ctx, req)
	case TypeAnalyzeCart:
		return d.handleAnalyzeCart(ctx, req)
	case TypeConfirmCart:
		return d.handleConfirmCart(ctx, req)
	default:
		return failure(req.ID, fmt.Sprintf("unknown request type: %s", req.Type))
	}
}

// handleFetchDeals answers with a (possibly empty) deal list when the
// lookup completed, and a failure envelope when the lookup itself failed.
// Callers render both as "no deals found".
func (d *Dispatcher) handleFetchDeals(ctx context.Context, req Request) Response {
	result := d.deals.FindCheaper(ctx, req.Query, req.CurrentPrice)
	if !result.Found() {
		return failure(req.ID, result.Unavailable)
	}
	return Response{ID: req.ID, Success: true, Deals: result.Deals}
}

func (d *Dispatcher) handleCaptureScreenshot(ctx context.Context, req Request) Response {
	dataURL, err := d.capturer.CaptureScreenshot(ctx)
	if err != nil {
		// Capture errors surface verbatim.
		return failure(req.ID, err.Error())
	}
	return Response{ID: req.ID, Success: true, DataURL: dataURL}
}

func (d *Dispatcher) handleAnalyzeCart(ctx context.Context, req Request) Response {
	token, errResp := d.requireToken(ctx, req.ID)
	if errResp != nil {
		return *errResp
	}

	result, err := d.api.AnalyzeCart(ctx, token, req.ImageData)
	if err != nil {
		return failure(req.ID, err.Error())
	}
	return Response{ID: req.ID, Success: true, Result: result}
}

func (d *Dispatcher) handleConfirmCart(ctx context.Context, req Request) Response {
	token, errResp := d.requireToken(ctx, req.ID)
	if errResp != nil {
		return *errResp
	}

	transactions, err := d.api.ConfirmCart(ctx, token, req.Items, req.Date)
	if err != nil {
		return failure(req.ID, err.Error())
	}
	return Response{ID: req.ID, Success: true, Transactions: transactions}
}

func (d *Dispatcher) requireToken(ctx context.Context, reqID string) (string, *Response) {
	token, err := d.tokens.Token(ctx)
	if err != nil {
		resp := failure(reqID, err.Error())
		return "", &resp
	}
	if token == "" {
		resp := failure(reqID, common.ErrNotLoggedIn.Error())
		return "", &resp
	}
	return token, nil
}
