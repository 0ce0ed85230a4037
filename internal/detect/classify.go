package detect

import (
	"net/url"
	"strings"
)

// urlKeywords mark a checkout-like URL path or query.
var urlKeywords = []string{"checkout", "cart", "basket", "payment", "order"}

// hostKeywords mark known e-commerce hostnames.
var hostKeywords = []string{
	"amazon", "ebay", "walmart", "target", "bestbuy",
	"etsy", "aliexpress", "shop", "store",
}

// markupKeywords mark cart-related class/id/data-attribute values.
var markupKeywords = []string{"cart", "checkout"}

// ClassifyPage reports whether the snapshot looks like a shopping or
// checkout context: URL keyword, e-commerce hostname, or a cart-flavored
// class/id/data attribute anywhere on the page.
func ClassifyPage(snap PageSnapshot) bool {
	if matchesURL(snap.URL) {
		return true
	}

	host := strings.ToLower(snap.Hostname)
	for _, kw := range hostKeywords {
		if strings.Contains(host, kw) {
			return true
		}
	}

	for _, hint := range snap.MarkupHints {
		lower := strings.ToLower(hint)
		for _, kw := range markupKeywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}

	return false
}

func matchesURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}

	// Match on path and query only; hostnames get their own keyword list.
	target := strings.ToLower(parsed.Path + "?" + parsed.RawQuery)
	for _, kw := range urlKeywords {
		if strings.Contains(target, kw) {
			return true
		}
	}
	return false
}
