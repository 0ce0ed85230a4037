// Package detect classifies shopping pages and locates their checkout
// controls. All matching runs over a PageSnapshot so it is testable
// against fixture data without a browser.
package detect

// Candidate is one clickable element collected from the page: a button,
// submit/button input, or link-button. The collector assigns each a stable
// selector and records which site-specific selectors it matched.
type Candidate struct {
	Selector         string   `json:"selector"`
	Tag              string   `json:"tag"`
	Type             string   `json:"type"`
	Name             string   `json:"name"`
	ID               string   `json:"id"`
	Text             string   `json:"text"`
	AriaLabel        string   `json:"ariaLabel"`
	MatchedSelectors []string `json:"matchedSelectors"`
	FromXPath        bool     `json:"fromXPath"`
	Visible          bool     `json:"visible"`
	Attached         bool     `json:"attached"`
}

// PageSnapshot is a point-in-time view of the page: enough scraped context
// for classification, control discovery, and price/product extraction.
type PageSnapshot struct {
	URL           string      `json:"url"`
	Hostname      string      `json:"hostname"`
	Title         string      `json:"title"`
	BodyText      string      `json:"bodyText"`
	MarkupHints   []string    `json:"markupHints"`
	LabeledTotals []string    `json:"labeledTotals"`
	TitleTexts    []string    `json:"titleTexts"`
	Candidates    []Candidate `json:"candidates"`
}
