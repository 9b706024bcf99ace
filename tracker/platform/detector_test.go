package platform

import (
	"testing"

	"github.com/CartPulse/cartpulse-go/tracker/page"
)

func snapWithGlobal(name string) *page.Snapshot {
	return &page.Snapshot{Globals: map[string]any{name: map[string]any{}}}
}

func snapWithHTML(t *testing.T, html string) *page.Snapshot {
	t.Helper()
	snap, err := page.Parse("https://example.com/", html)
	if err != nil {
		t.Fatal(err)
	}
	return snap
}

func TestDetectByGlobals(t *testing.T) {
	cases := []struct {
		global string
		want   Platform
	}{
		{"Shopify", Shopify},
		{"wc_add_to_cart_params", WooCommerce},
		{"woocommerce_params", WooCommerce},
		{"Magento", Magento},
		{"mage", Magento},
		{"BCData", BigCommerce},
	}
	for _, tc := range cases {
		if got := Detect(snapWithGlobal(tc.global)); got != tc.want {
			t.Errorf("Detect with %s global = %s, want %s", tc.global, got, tc.want)
		}
	}
}

func TestDetectByMarkup(t *testing.T) {
	cases := []struct {
		name string
		html string
		want Platform
	}{
		{"shopify cdn script", `<html><head><script src="https://cdn.shopify.com/s/shop.js"></script></head><body></body></html>`, Shopify},
		{"shopify data attr", `<html><body><div data-shopify="section"></div></body></html>`, Shopify},
		{"woocommerce body class", `<html><body class="woocommerce-page archive"></body></html>`, WooCommerce},
		{"woocommerce wrapper", `<html><body><div class="woocommerce"></div></body></html>`, WooCommerce},
		{"magento init script", `<html><body><script type="text/x-magento-init">{}</script></body></html>`, Magento},
		{"bigcommerce class", `<html><body><div class="bigcommerce-cart"></div></body></html>`, BigCommerce},
		{"plain page", `<html><body><p>hi</p></body></html>`, Custom},
	}

	for _, tc := range cases {
		if got := Detect(snapWithHTML(t, tc.html)); got != tc.want {
			t.Errorf("%s: Detect = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestDetectOrderShopifyWins(t *testing.T) {
	// A page carrying both Shopify and WooCommerce markers classifies as
	// Shopify because checks run in fixed order.
	snap := snapWithHTML(t, `<html><body class="woocommerce"><script src="https://cdn.shopify.com/x.js"></script></body></html>`)
	if got := Detect(snap); got != Shopify {
		t.Errorf("Detect = %s, want shopify (first match wins)", got)
	}
}

func TestDetectNilSnapshot(t *testing.T) {
	if got := Detect(nil); got != Custom {
		t.Errorf("Detect(nil) = %s, want custom", got)
	}
}
