package model

// CartItem is a single line item extracted from a cart screenshot by the
// server's vision analysis.
type CartItem struct {
	Merchant string  `json:"merchant"`
	Category string  `json:"category"`
	ItemName string  `json:"item_name"`
	Amount   float64 `json:"amount"`
}

// CartSplit is a per-category rollup of cart items, the unit the finance
// API tracks as a budget entry.
type CartSplit struct {
	Category string   `json:"category"`
	Items    []string `json:"items"`
	Amount   float64  `json:"amount"`
}

// CartAnalysis is the server's breakdown of a screenshotted cart. The
// splits are server-trusted; the client renders them without verifying
// they sum to TotalAmount.
type CartAnalysis struct {
	Merchant      string      `json:"merchant"`
	Date          string      `json:"date"`
	TotalAmount   float64     `json:"total_amount"`
	TimeCostHours *float64    `json:"time_cost_hours,omitempty"`
	Splits        []CartSplit `json:"splits"`
	RawItems      []CartItem  `json:"raw_items"`
}

// ItemTotal sums the raw line items. Display-only; TotalAmount remains the
// authoritative figure.
func (c CartAnalysis) ItemTotal() float64 {
	var total float64
	for _, item := range c.RawItems {
		total += item.Amount
	}
	return total
}

// TrackedTransaction is one transaction row the finance API created from a
// confirmed cart.
type TrackedTransaction struct {
	ID          int     `json:"id"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Date        string  `json:"date"`
	Amount      float64 `json:"amount"`
}
