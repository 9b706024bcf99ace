// Package cart extracts cart snapshots from host pages, one strategy per
// detected platform. Extraction is total-replacement: every call produces a
// complete snapshot or nil, never an incremental update.
package cart

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/CartPulse/cartpulse-go/models"
	"github.com/CartPulse/cartpulse-go/tracker/page"
	"github.com/CartPulse/cartpulse-go/tracker/platform"
)

// Extractor reads the current cart contents from a page snapshot.
// A nil result means "unknown", never "empty cart": callers must not treat
// it as a zero-item snapshot.
type Extractor interface {
	Extract(snap *page.Snapshot) *models.CartSnapshot
}

// ForPlatform selects the extraction strategy for a detected platform.
// Unknown platforms share the generic DOM strategy.
func ForPlatform(p platform.Platform) Extractor {
	switch p {
	case platform.Shopify:
		return NewShopifyExtractor(nil, false, nil)
	case platform.WooCommerce:
		return &WooCommerceExtractor{}
	default:
		return &GenericExtractor{}
	}
}

var nonNumeric = regexp.MustCompile(`[^0-9.,\-]`)

// ParsePrice converts DOM price text to a float, stripping currency symbols
// and grouping defensively. Any parse failure yields 0, never an error: the
// tracker runs in markup it does not control.
func ParsePrice(text string) float64 {
	cleaned := nonNumeric.ReplaceAllString(strings.TrimSpace(text), "")
	if cleaned == "" {
		return 0
	}

	// "1.234,56" style: comma is the decimal separator
	if lastComma := strings.LastIndex(cleaned, ","); lastComma > strings.LastIndex(cleaned, ".") {
		cleaned = strings.ReplaceAll(cleaned[:lastComma], ".", "") + "." + cleaned[lastComma+1:]
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	} else {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return value
}

// ParseQuantity converts DOM quantity text to an integer, defaulting to 0
// on any irregularity.
func ParseQuantity(text string) int {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return 0
	}

	digits := strings.Builder{}
	for _, r := range cleaned {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0
	}

	value, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return value
}

// countItems sums line quantities, falling back to the line count when no
// quantities were parseable.
func countItems(items []models.CartItem) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	if total == 0 {
		return len(items)
	}
	return total
}

// sumItems totals line prices weighted by quantity.
func sumItems(items []models.CartItem) float64 {
	total := 0.0
	for _, item := range items {
		qty := item.Quantity
		if qty == 0 {
			qty = 1
		}
		total += item.Price * float64(qty)
	}
	return total
}
