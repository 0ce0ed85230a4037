// Package dispatch routes typed requests from the page pipeline to the
// privileged side: screenshot capture and outbound API calls. The channel
// carries one typed request in and exactly one envelope reply out.
package dispatch

import (
	"github.com/pennyhq/penny-companion/internal/model"
)

// Type identifies a request kind on the message channel.
type Type string

// Request types.
const (
	TypeFetchDeals        Type = "FETCH_DEALS"
	TypeCaptureScreenshot Type = "CAPTURE_SCREENSHOT"
	TypeAnalyzeCart       Type = "ANALYZE_CART"
	TypeConfirmCart       Type = "CONFIRM_CART"
)

// Request is a typed message to the dispatcher. Only the fields relevant
// to its Type are set.
type Request struct {
	ID           string           `json:"id"`
	Type         Type             `json:"type"`
	Query        string           `json:"query,omitempty"`
	ImageData    string           `json:"imageData,omitempty"`
	Date         string           `json:"date,omitempty"`
	Items        []model.CartItem `json:"items,omitempty"`
	CurrentPrice float64          `json:"currentPrice,omitempty"`
}

// Response is the uniform reply envelope: Success plus exactly one payload
// field, or an error string.
type Response struct {
	ID           string                     `json:"id"`
	Error        string                     `json:"error,omitempty"`
	DataURL      string                     `json:"dataUrl,omitempty"`
	Deals        []model.Deal               `json:"deals,omitempty"`
	Result       *model.CartAnalysis        `json:"result,omitempty"`
	Transactions []model.TrackedTransaction `json:"transactions,omitempty"`
	Success      bool                       `json:"success"`
}

func failure(id, msg string) Response {
	return Response{ID: id, Success: false, Error: msg}
}
