package cart

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/CartPulse/cartpulse-go/models"
	"github.com/CartPulse/cartpulse-go/tracker/page"
)

// ShopifyExtractor reads Shopify carts. Preference order: the in-page
// Shopify.cart global, then cart/drawer DOM containers, then a best-effort
// asynchronous fetch of the store's /cart.js endpoint. The async path is
// fire-and-forget: it never blocks Extract, and delivers its snapshot
// out-of-band through OnAsyncUpdate once resolved.
type ShopifyExtractor struct {
	Client *http.Client
	Debug  bool

	// OnAsyncUpdate receives a snapshot produced by the /cart.js fallback.
	// Nil disables the fallback entirely.
	OnAsyncUpdate func(*models.CartSnapshot)
}

func NewShopifyExtractor(client *http.Client, debug bool, onAsyncUpdate func(*models.CartSnapshot)) *ShopifyExtractor {
	if client == nil {
		client = http.DefaultClient
	}
	return &ShopifyExtractor{Client: client, Debug: debug, OnAsyncUpdate: onAsyncUpdate}
}

func (e *ShopifyExtractor) debugf(format string, args ...any) {
	if e.Debug {
		log.Printf("DEBUG: ShopifyExtractor - "+format, args...)
	}
}

func (e *ShopifyExtractor) Extract(snap *page.Snapshot) *models.CartSnapshot {
	if snap == nil {
		return nil
	}

	if cartObj, ok := snap.Global("Shopify.cart"); ok {
		if snapshot := parseShopifyCartObject(cartObj); snapshot != nil {
			return snapshot
		}
	}

	if snapshot := e.extractFromDrawer(snap); snapshot != nil {
		return snapshot
	}

	// No synchronous signal; kick off the AJAX fallback and report unknown.
	if e.OnAsyncUpdate != nil {
		go e.fetchCartJS(snap.URL)
	}
	return nil
}

// shopifyCartPayload mirrors the /cart.js response. Prices arrive in cents.
type shopifyCartPayload struct {
	ItemCount  int     `json:"item_count"`
	TotalPrice float64 `json:"total_price"`
	Currency   string  `json:"currency"`
	Items      []struct {
		ProductID json.Number `json:"product_id"`
		VariantID json.Number `json:"variant_id"`
		SKU       string      `json:"sku"`
		Title     string      `json:"title"`
		Price     float64     `json:"price"`
		Quantity  int         `json:"quantity"`
		Image     string      `json:"image"`
	} `json:"items"`
}

func (p *shopifyCartPayload) toSnapshot() *models.CartSnapshot {
	currency := p.Currency
	if currency == "" {
		currency = "USD"
	}

	snapshot := &models.CartSnapshot{
		Total:     p.TotalPrice / 100,
		Currency:  currency,
		ItemCount: p.ItemCount,
	}

	for _, item := range p.Items {
		snapshot.Items = append(snapshot.Items, models.CartItem{
			ProductID: item.ProductID.String(),
			VariantID: item.VariantID.String(),
			SKU:       item.SKU,
			Name:      item.Title,
			Price:     item.Price / 100,
			Quantity:  item.Quantity,
			Image:     item.Image,
		})
	}

	if snapshot.ItemCount == 0 {
		snapshot.ItemCount = countItems(snapshot.Items)
	}
	return snapshot
}

// parseShopifyCartObject converts a duck-typed Shopify.cart global into a
// snapshot. Returns nil when the value has no recognizable cart shape.
func parseShopifyCartObject(value any) *models.CartSnapshot {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil
	}

	var payload shopifyCartPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	if payload.ItemCount == 0 && len(payload.Items) == 0 {
		return nil
	}

	return payload.toSnapshot()
}

var shopifyDrawerSelectors = []string{
	"#CartDrawer",
	".cart-drawer",
	"[data-cart-items]",
	"form[action='/cart']",
}

func (e *ShopifyExtractor) extractFromDrawer(snap *page.Snapshot) *models.CartSnapshot {
	if snap.Document == nil {
		return nil
	}

	for _, selector := range shopifyDrawerSelectors {
		container := snap.Document.Find(selector).First()
		if container.Length() == 0 {
			continue
		}

		var items []models.CartItem
		container.Find(".cart-item, .cart__item, [data-cart-item]").Each(func(_ int, row *goquery.Selection) {
			item := models.CartItem{
				Name:     strings.TrimSpace(row.Find(".cart-item__name, .cart-item-title, [data-cart-item-title]").First().Text()),
				Price:    ParsePrice(row.Find(".cart-item__price, .price, [data-cart-item-price]").First().Text()),
				Quantity: ParseQuantity(row.Find("input[name='updates[]'], .cart-item__quantity, [data-cart-item-quantity]").First().AttrOr("value", row.Find(".cart-item__quantity").First().Text())),
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

		if len(items) == 0 {
			continue
		}

		total := ParsePrice(container.Find(".cart-total, .cart__total, [data-cart-total]").First().Text())
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

	return nil
}

// fetchCartJS performs the asynchronous /cart.js fallback. Failures are
// swallowed after a debug-only log: a missing cart is "unknown".
func (e *ShopifyExtractor) fetchCartJS(pageURL string) {
	endpoint, err := cartJSEndpoint(pageURL)
	if err != nil {
		return
	}

	resp, err := e.Client.Get(endpoint)
	if err != nil {
		e.debugf("cart.js fetch failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e.debugf("cart.js status %d", resp.StatusCode)
		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return
	}

	var payload shopifyCartPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		e.debugf("cart.js parse failed: %v", err)
		return
	}

	e.OnAsyncUpdate(payload.toSnapshot())
}

func cartJSEndpoint(pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("no usable page origin: %q", pageURL)
	}
	return parsed.Scheme + "://" + parsed.Host + "/cart.js", nil
}
