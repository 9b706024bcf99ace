package cart

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/CartPulse/cartpulse-go/models"
	"github.com/CartPulse/cartpulse-go/tracker/page"
)

// WooCommerceExtractor reads WooCommerce carts: the cart-page form table
// first, then the mini-cart widget.
type WooCommerceExtractor struct{}

func (e *WooCommerceExtractor) Extract(snap *page.Snapshot) *models.CartSnapshot {
	if snap == nil || snap.Document == nil {
		return nil
	}

	if snapshot := e.extractCartForm(snap.Document); snapshot != nil {
		return snapshot
	}
	return e.extractMiniCart(snap.Document)
}

func (e *WooCommerceExtractor) extractCartForm(doc *goquery.Document) *models.CartSnapshot {
	form := doc.Find("form.woocommerce-cart-form").First()
	if form.Length() == 0 {
		return nil
	}

	var items []models.CartItem
	form.Find("tr.cart_item, .woocommerce-cart-form__cart-item").Each(func(_ int, row *goquery.Selection) {
		item := models.CartItem{
			Name:     strings.TrimSpace(row.Find(".product-name a, .product-name").First().Text()),
			Price:    ParsePrice(row.Find(".product-price").First().Text()),
			Quantity: ParseQuantity(row.Find(".product-quantity input.qty").First().AttrOr("value", row.Find(".product-quantity").First().Text())),
		}
		if item.Quantity == 0 {
			item.Quantity = 1
		}
		if sku, ok := row.Attr("data-sku"); ok {
			item.SKU = sku
		}
		if item.Name != "" || item.Price > 0 {
			items = append(items, item)
		}
	})

	if len(items) == 0 {
		return nil
	}

	total := ParsePrice(doc.Find(".cart-subtotal .amount, .order-total .amount").First().Text())
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

func (e *WooCommerceExtractor) extractMiniCart(doc *goquery.Document) *models.CartSnapshot {
	widget := doc.Find(".widget_shopping_cart, .woocommerce-mini-cart").First()
	if widget.Length() == 0 {
		return nil
	}

	var items []models.CartItem
	widget.Find(".mini_cart_item, .woocommerce-mini-cart-item").Each(func(_ int, row *goquery.Selection) {
		quantityText := row.Find(".quantity").First().Text()
		// Mini-cart quantities read "2 × $10.00"
		qty := 1
		price := 0.0
		if parts := strings.Split(quantityText, "×"); len(parts) == 2 {
			qty = ParseQuantity(parts[0])
			price = ParsePrice(parts[1])
		} else {
			price = ParsePrice(quantityText)
		}
		if qty == 0 {
			qty = 1
		}

		item := models.CartItem{
			Name:     strings.TrimSpace(row.Find("a").First().Text()),
			Price:    price,
			Quantity: qty,
		}
		if item.Name != "" || item.Price > 0 {
			items = append(items, item)
		}
	})

	if len(items) == 0 {
		return nil
	}

	total := ParsePrice(widget.Find(".woocommerce-mini-cart__total .amount, .total .amount").First().Text())
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
