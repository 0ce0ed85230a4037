package browser

import (
	"context"
	"fmt"

	"github.com/pennyhq/penny-companion/internal/detect"
)

// collectorJS gathers everything detect needs in one page round-trip:
// clickable candidates (tagged with stable data attributes), cart-flavored
// markup hints, labeled totals, and product-title texts. It must stay free
// of side effects beyond the tagging attributes.
const collectorJS = `(() => {
  const SITE_SELECTORS = [
    'input[name="proceedToRetailCheckout"]',
    '#proceed-to-checkout-desktop',
    'form[action*="checkout"] input[type="submit"]',
    '.sc-buy-box-group input[type="submit"]'
  ];
  const FALLBACK_XPATHS = [
    '//input[contains(@aria-labelledby, "checkout")]',
    '//*[@role="button"][contains(translate(., "ABCDEFGHIJKLMNOPQRSTUVWXYZ", "abcdefghijklmnopqrstuvwxyz"), "checkout")]'
  ];
  const TOTAL_SELECTORS = [
    '#sc-buy-box-ptp-id', '.grand-total-price', '.checkout-total-price',
    '#priceblock_ourprice', '.a-color-price', '.sc-price'
  ];
  const TITLE_SELECTORS = [
    '#sc-active-cart .a-list-item a.a-link-normal span.a-size-medium',
    '.sc-product-title .a-truncate-cut',
    'span#productTitle',
    'h1', '.product-name', '.product-title'
  ];

  window.__pennyCandSeq = window.__pennyCandSeq || 0;
  const tag = (el) => {
    if (!el.dataset.pennyCand) {
      el.dataset.pennyCand = String(++window.__pennyCandSeq);
    }
    return '[data-penny-cand="' + el.dataset.pennyCand + '"]';
  };

  const xpathNodes = [];
  for (const xp of FALLBACK_XPATHS) {
    try {
      const r = document.evaluate(xp, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null);
      if (r.singleNodeValue) xpathNodes.push(r.singleNodeValue);
    } catch (e) {}
  }

  const clickables = Array.from(document.querySelectorAll(
    'button, input[type="submit"], input[type="button"], a.a-button-text, a[role="button"]'
  ));

  const seen = new Set();
  const candidates = [];
  for (const el of clickables.concat(xpathNodes)) {
    if (seen.has(el)) continue;
    seen.add(el);
    const matched = SITE_SELECTORS.filter(s => { try { return el.matches(s); } catch (e) { return false; } });
    candidates.push({
      selector: tag(el),
      tag: el.tagName.toLowerCase(),
      type: el.getAttribute('type') || '',
      name: el.getAttribute('name') || '',
      id: el.id || '',
      text: (el.innerText || el.value || '').trim().slice(0, 200),
      ariaLabel: el.getAttribute('aria-label') || '',
      matchedSelectors: matched,
      fromXPath: xpathNodes.includes(el),
      visible: !!(el.offsetParent || el.getClientRects().length),
      attached: document.contains(el)
    });
  }

  const hints = [];
  for (const el of document.querySelectorAll('[class*="cart" i], [class*="checkout" i], [id*="cart" i], [id*="checkout" i], [data-cart], [data-checkout]')) {
    hints.push((el.className || '') + ' ' + (el.id || ''));
    if (hints.length >= 20) break;
  }

  const grab = (sels) => sels
    .map(s => document.querySelector(s))
    .filter(Boolean)
    .map(el => (el.innerText || '').trim())
    .filter(Boolean);

  return {
    url: window.location.href,
    hostname: window.location.hostname,
    title: document.title,
    bodyText: (document.body ? document.body.innerText : '').slice(0, 200000),
    markupHints: hints,
    labeledTotals: grab(TOTAL_SELECTORS),
    titleTexts: grab(TITLE_SELECTORS),
    candidates: candidates
  };
})()`

// Snapshot collects a point-in-time view of the observed page.
func (s *Session) Snapshot(ctx context.Context) (detect.PageSnapshot, error) {
	var snap detect.PageSnapshot
	if err := s.Evaluate(ctx, collectorJS, &snap); err != nil {
		return detect.PageSnapshot{}, fmt.Errorf("failed to collect page snapshot: %w", err)
	}
	return snap, nil
}
