package cart

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/CartPulse/cartpulse-go/models"
	"github.com/CartPulse/cartpulse-go/tracker/page"
)

// genericItemSelectors is the fixed list of common cart markup patterns
// scanned on unrecognized platforms.
var genericItemSelectors = []string{
	".cart-item",
	".cart__item",
	".line-item",
	"[data-cart-item]",
	".basket-item",
	".shopping-cart-item",
}

var genericTotalSelectors = []string{
	".cart-total",
	".cart__total",
	".order-total",
	".cart-subtotal",
	"[data-cart-total]",
}

// GenericExtractor scrapes carts on custom storefronts using common CSS
// selectors only. It is also the Magento and BigCommerce fallback.
type GenericExtractor struct{}

func (e *GenericExtractor) Extract(snap *page.Snapshot) *models.CartSnapshot {
	if snap == nil || snap.Document == nil {
		return nil
	}

	var items []models.CartItem
	for _, selector := range genericItemSelectors {
		snap.Document.Find(selector).Each(func(_ int, row *goquery.Selection) {
			item := models.CartItem{
				Name:     strings.TrimSpace(row.Find(".name, .title, .product-name, [data-item-name]").First().Text()),
				Price:    ParsePrice(row.Find(".price, .amount, [data-item-price]").First().Text()),
				Quantity: ParseQuantity(row.Find("input[type='number'], .quantity, .qty, [data-item-quantity]").First().AttrOr("value", row.Find(".quantity, .qty").First().Text())),
			}
			if item.Quantity == 0 {
				item.Quantity = 1
			}
			if id, ok := row.Attr("data-product-id"); ok {
				item.ProductID = id
			}
			if item.Name != "" || item.Price > 0 {
				items = append(items, item)
			}
		})
		if len(items) > 0 {
			break
		}
	}

	if len(items) == 0 {
		return nil
	}

	total := 0.0
	for _, selector := range genericTotalSelectors {
		if total = ParsePrice(snap.Document.Find(selector).First().Text()); total > 0 {
			break
		}
	}
	if total == 0 {
		total = sumItems(items)
	}

	return &models.CartSnapshot{
		Total:     total,
		Currency:  "USD",
		ItemCount: countItems(items),
		Items:     items,
	}
}
