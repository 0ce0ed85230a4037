package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennyhq/penny-companion/internal/deals"
	"github.com/pennyhq/penny-companion/internal/model"
)

type fakeTokens struct {
	token string
	err   error
}

func (f *fakeTokens) Token(_ context.Context) (string, error) {
	return f.token, f.err
}

type fakeCapturer struct {
	dataURL string
	err     error
}

func (f *fakeCapturer) CaptureScreenshot(_ context.Context) (string, error) {
	return f.dataURL, f.err
}

type fakeDealFinder struct {
	result    deals.Result
	gotQuery  string
	gotPrice  float64
	callCount int
}

func (f *fakeDealFinder) FindCheaper(_ context.Context, query string, currentPrice float64) deals.Result {
	f.callCount++
	f.gotQuery = query
	f.gotPrice = currentPrice
	return f.result
}

type fakeAPI struct {
	analysis     *model.CartAnalysis
	analysisErr  error
	transactions []model.TrackedTransaction
	confirmErr   error

	gotToken string
	gotImage string
	gotItems []model.CartItem
	gotDate  string
}

func (f *fakeAPI) AnalyzeCart(_ context.Context, token, imageData string) (*model.CartAnalysis, error) {
	f.gotToken = token
	f.gotImage = imageData
	return f.analysis, f.analysisErr
}

func (f *fakeAPI) ConfirmCart(_ context.Context, token string, items []model.CartItem, date string) ([]model.TrackedTransaction, error) {
	f.gotToken = token
	f.gotItems = items
	f.gotDate = date
	return f.transactions, f.confirmErr
}

func newTestDispatcher(tokens *fakeTokens, capturer *fakeCapturer, finder *fakeDealFinder, api *fakeAPI) *Dispatcher {
	if tokens == nil {
		tokens = &fakeTokens{token: "tok"}
	}
	if capturer == nil {
		capturer = &fakeCapturer{dataURL: "data:image/png;base64,AA=="}
	}
	if finder == nil {
		finder = &fakeDealFinder{}
	}
	if api == nil {
		api = &fakeAPI{}
	}
	return New(tokens, capturer, finder, api)
}

func TestDispatchAssignsRequestID(t *testing.T) {
	d := newTestDispatcher(nil, nil, nil, nil)

	resp := d.Dispatch(context.Background(), Request{Type: TypeCaptureScreenshot})
	assert.NotEmpty(t, resp.ID)

	resp = d.Dispatch(context.Background(), Request{ID: "req-7", Type: TypeCaptureScreenshot})
	assert.Equal(t, "req-7", resp.ID)
}

func TestDispatchUnknownType(t *testing.T) {
	d := newTestDispatcher(nil, nil, nil, nil)

	resp := d.Dispatch(context.Background(), Request{Type: "REBOOT"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "unknown request type")
}

func TestFetchDealsEnvelope(t *testing.T) {
	finder := &fakeDealFinder{result: deals.Result{Deals: []model.Deal{
		{Seller: "ShopA", Price: 42.00, URL: "https://a.example"},
	}}}
	d := newTestDispatcher(nil, nil, finder, nil)

	resp := d.Dispatch(context.Background(), Request{
		Type:         TypeFetchDeals,
		Query:        "iPhone 13 Pro",
		CurrentPrice: 500,
	})

	require.True(t, resp.Success)
	require.Len(t, resp.Deals, 1)
	assert.Equal(t, "iPhone 13 Pro", finder.gotQuery)
	assert.InDelta(t, 500, finder.gotPrice, 0.001)
}

func TestFetchDealsEmptyIsSuccess(t *testing.T) {
	finder := &fakeDealFinder{result: deals.Result{Deals: []model.Deal{}}}
	d := newTestDispatcher(nil, nil, finder, nil)

	resp := d.Dispatch(context.Background(), Request{Type: TypeFetchDeals, Query: "x", CurrentPrice: 10})

	assert.True(t, resp.Success)
	assert.Empty(t, resp.Deals)
	assert.Empty(t, resp.Error)
}

func TestFetchDealsLookupFailure(t *testing.T) {
	finder := &fakeDealFinder{result: deals.Result{Unavailable: "Network error on search: dial tcp: refused"}}
	d := newTestDispatcher(nil, nil, finder, nil)

	resp := d.Dispatch(context.Background(), Request{Type: TypeFetchDeals, Query: "x", CurrentPrice: 10})

	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "Network error on search")
}

func TestCaptureScreenshot(t *testing.T) {
	d := newTestDispatcher(nil, &fakeCapturer{dataURL: "data:image/png;base64,iVBOR"}, nil, nil)

	resp := d.Dispatch(context.Background(), Request{Type: TypeCaptureScreenshot})

	require.True(t, resp.Success)
	assert.Equal(t, "data:image/png;base64,iVBOR", resp.DataURL)
}

func TestCaptureScreenshotErrorSurfacesVerbatim(t *testing.T) {
	d := newTestDispatcher(nil, &fakeCapturer{err: errors.New("activeTab permission not granted")}, nil, nil)

	resp := d.Dispatch(context.Background(), Request{Type: TypeCaptureScreenshot})

	assert.False(t, resp.Success)
	assert.Equal(t, "activeTab permission not granted", resp.Error)
}

func TestAnalyzeCartRequiresToken(t *testing.T) {
	api := &fakeAPI{}
	d := newTestDispatcher(&fakeTokens{token: ""}, nil, nil, api)

	resp := d.Dispatch(context.Background(), Request{Type: TypeAnalyzeCart, ImageData: "data:..."})

	assert.False(t, resp.Success)
	assert.Equal(t, "Not logged in", resp.Error)
	assert.Empty(t, api.gotImage, "the API must not be called without a token")
}

func TestAnalyzeCartPassesTokenAndImage(t *testing.T) {
	api := &fakeAPI{analysis: &model.CartAnalysis{Merchant: "Target", TotalAmount: 54.20}}
	d := newTestDispatcher(&fakeTokens{token: "tok-9"}, nil, nil, api)

	resp := d.Dispatch(context.Background(), Request{Type: TypeAnalyzeCart, ImageData: "data:image/png;base64,AA=="})

	require.True(t, resp.Success)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "Target", resp.Result.Merchant)
	assert.Equal(t, "tok-9", api.gotToken)
	assert.Equal(t, "data:image/png;base64,AA==", api.gotImage)
}

func TestAnalyzeCartUpstreamError(t *testing.T) {
	api := &fakeAPI{analysisErr: errors.New("image too blurry")}
	d := newTestDispatcher(nil, nil, nil, api)

	resp := d.Dispatch(context.Background(), Request{Type: TypeAnalyzeCart, ImageData: "data:..."})

	assert.False(t, resp.Success)
	assert.Equal(t, "image too blurry", resp.Error)
}

func TestConfirmCartRequiresToken(t *testing.T) {
	d := newTestDispatcher(&fakeTokens{token: ""}, nil, nil, nil)

	resp := d.Dispatch(context.Background(), Request{Type: TypeConfirmCart, Date: "2026-09-01"})

	assert.False(t, resp.Success)
	assert.Equal(t, "Not logged in", resp.Error)
}

func TestConfirmCartEnvelope(t *testing.T) {
	items := []model.CartItem{
		{ItemName: "Milk", Amount: 4.20, Category: "Groceries"},
		{ItemName: "Headphones", Amount: 50.00, Category: "Electronics"},
	}
	api := &fakeAPI{transactions: []model.TrackedTransaction{{ID: 1}, {ID: 2}}}
	d := newTestDispatcher(nil, nil, nil, api)

	resp := d.Dispatch(context.Background(), Request{Type: TypeConfirmCart, Items: items, Date: "2026-09-01"})

	require.True(t, resp.Success)
	assert.Len(t, resp.Transactions, 2)
	assert.Equal(t, items, api.gotItems)
	assert.Equal(t, "2026-09-01", api.gotDate)
}

func TestTokenSourceFailure(t *testing.T) {
	d := newTestDispatcher(&fakeTokens{err: errors.New("database is locked")}, nil, nil, nil)

	resp := d.Dispatch(context.Background(), Request{Type: TypeConfirmCart})

	assert.False(t, resp.Success)
	assert.Equal(t, "database is locked", resp.Error)
}
