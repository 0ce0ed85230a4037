package detect

import (
	"regexp"
	"strconv"
	"strings"
)

// priceRe matches a labeled dollar amount like "$1,234.56" (dollar sign
// optional, since labeled total elements sometimes omit it).
var priceRe = regexp.MustCompile(`\$?([0-9]{1,3}(?:,[0-9]{3})*(?:\.[0-9]{2}))`)

// bodyPriceRe matches dollar amounts in free body text; here the dollar
// sign is required to avoid picking up quantities and order numbers.
var bodyPriceRe = regexp.MustCompile(`\$\s?([0-9]{1,3}(?:,[0-9]{3})*(?:\.[0-9]{2}))`)

// titleNoise strips shopping boilerplate from document titles.
var titleNoise = regexp.MustCompile(`(?i)checkout|cart|basket|shopping|buy`)

// ExtractPrice returns the cart total: the first parseable amount from the
// labeled-total elements, otherwise the maximum dollar amount anywhere in
// the body text, otherwise 0.
func ExtractPrice(snap PageSnapshot) float64 {
	for _, label := range snap.LabeledTotals {
		if m := priceRe.FindStringSubmatch(label); m != nil {
			if price, ok := parseAmount(m[1]); ok {
				return price
			}
		}
	}

	var best float64
	for _, m := range bodyPriceRe.FindAllStringSubmatch(snap.BodyText, -1) {
		if price, ok := parseAmount(m[1]); ok && price > best {
			best = price
		}
	}
	return best
}

func parseAmount(s string) (float64, bool) {
	price, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

// ExtractProductName returns a human-readable name for what is being
// bought: the first substantial product-title element, else the document
// title with shopping boilerplate removed, else "this item".
func ExtractProductName(snap PageSnapshot) string {
	for _, text := range snap.TitleTexts {
		trimmed := strings.TrimSpace(text)
		if len(trimmed) > 5 {
			// Multi-line titles keep only their first line.
			if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
				trimmed = strings.TrimSpace(trimmed[:idx])
			}
			return trimmed
		}
	}

	title := titleNoise.ReplaceAllString(snap.Title, "")
	title = strings.SplitN(title, "|", 2)[0]
	title = strings.SplitN(title, "-", 2)[0]
	title = strings.TrimSpace(title)
	if title == "" {
		return "this item"
	}
	return title
}
