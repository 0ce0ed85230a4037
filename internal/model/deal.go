package model

// Deal is a cheaper offer for the product the user is about to buy,
// sourced from the price-comparison API. Ephemeral: rendered once in the
// warning overlay and discarded.
type Deal struct {
	Seller string  `json:"seller"`
	URL    string  `json:"url"`
	Price  float64 `json:"price"`
}
