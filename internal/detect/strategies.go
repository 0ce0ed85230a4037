package detect

import "strings"

// StrategyKind tags one control-discovery approach.
type StrategyKind string

// Discovery strategies, in precision order.
const (
	StrategySiteSelector  StrategyKind = "site_selector"
	StrategyKeywordText   StrategyKind = "keyword_text"
	StrategyXPathFallback StrategyKind = "xpath_fallback"
)

// Strategy is one entry in the ordered discovery table. Strategies are
// tried in order; the first match wins.
type Strategy struct {
	Kind      StrategyKind
	Selectors []string
	Keywords  []string
}

// siteSelectors are high-precision selectors for known retailers, tried
// before any keyword matching.
var siteSelectors = []string{
	`input[name="proceedToRetailCheckout"]`,
	`#proceed-to-checkout-desktop`,
	`form[action*="checkout"] input[type="submit"]`,
	`.sc-buy-box-group input[type="submit"]`,
}

// checkoutKeywords match visible text or aria-label of generic
// checkout-confirmation controls, case-insensitive substring.
var checkoutKeywords = []string{
	"proceed to checkout",
	"proceed to retail checkout",
	"place order",
	"place your order",
	"buy now",
	"complete purchase",
	"pay now",
	"checkout",
}

// DefaultStrategies is the discovery table used in production.
var DefaultStrategies = []Strategy{
	{Kind: StrategySiteSelector, Selectors: siteSelectors},
	{Kind: StrategyKeywordText, Keywords: checkoutKeywords},
	{Kind: StrategyXPathFallback},
}

// FindCheckoutControl runs the strategy table over the snapshot's
// candidates and returns the first match. A miss returns (nil, false):
// best-effort, no error.
func FindCheckoutControl(snap PageSnapshot) (*Candidate, bool) {
	return FindCheckoutControlWith(snap, DefaultStrategies)
}

// FindCheckoutControlWith runs a caller-supplied strategy table, mainly
// for tests exercising strategy order.
func FindCheckoutControlWith(snap PageSnapshot, strategies []Strategy) (*Candidate, bool) {
	for _, strategy := range strategies {
		if c := applyStrategy(snap, strategy); c != nil {
			return c, true
		}
	}
	return nil, false
}

func applyStrategy(snap PageSnapshot, strategy Strategy) *Candidate {
	switch strategy.Kind {
	case StrategySiteSelector:
		return matchSiteSelector(snap.Candidates, strategy.Selectors)
	case StrategyKeywordText:
		return matchKeywordText(snap.Candidates, strategy.Keywords)
	case StrategyXPathFallback:
		return matchXPath(snap.Candidates)
	}
	return nil
}

// matchSiteSelector returns the first candidate matching the earliest
// selector in table order.
func matchSiteSelector(candidates []Candidate, selectors []string) *Candidate {
	for _, sel := range selectors {
		for i := range candidates {
			c := &candidates[i]
			if !c.Attached {
				continue
			}
			for _, matched := range c.MatchedSelectors {
				if matched == sel {
					return c
				}
			}
		}
	}
	return nil
}

// matchKeywordText scans visible candidates for checkout keywords in their
// text or aria-label.
func matchKeywordText(candidates []Candidate, keywords []string) *Candidate {
	for i := range candidates {
		c := &candidates[i]
		if !c.Attached || !c.Visible {
			continue
		}

		text := strings.ToLower(strings.TrimSpace(c.Text))
		label := strings.ToLower(strings.TrimSpace(c.AriaLabel))
		for _, kw := range keywords {
			if strings.Contains(text, kw) || strings.Contains(label, kw) {
				return c
			}
		}
	}
	return nil
}

func matchXPath(candidates []Candidate) *Candidate {
	for i := range candidates {
		c := &candidates[i]
		if c.Attached && c.FromXPath {
			return c
		}
	}
	return nil
}
