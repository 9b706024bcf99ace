// Package platform classifies the host page's e-commerce platform.
package platform

import (
	"github.com/CartPulse/cartpulse-go/tracker/page"
)

// Platform identifies the detected storefront platform.
type Platform string

const (
	Shopify     Platform = "shopify"
	WooCommerce Platform = "woocommerce"
	Magento     Platform = "magento"
	BigCommerce Platform = "bigcommerce"
	Custom      Platform = "custom"
)

// Detect classifies the page. Checks run in a fixed order and the first
// match wins; absence of every marker is the expected Custom outcome, not
// an error. Detect has no side effects.
func Detect(snap *page.Snapshot) Platform {
	if snap == nil {
		return Custom
	}

	if isShopify(snap) {
		return Shopify
	}
	if isWooCommerce(snap) {
		return WooCommerce
	}
	if isMagento(snap) {
		return Magento
	}
	if isBigCommerce(snap) {
		return BigCommerce
	}
	return Custom
}

func isShopify(snap *page.Snapshot) bool {
	if _, ok := snap.Global("Shopify"); ok {
		return true
	}
	if snap.Document == nil {
		return false
	}
	if snap.Document.Find("script[src*='cdn.shopify.com']").Length() > 0 {
		return true
	}
	return snap.Document.Find("[data-shopify]").Length() > 0
}

func isWooCommerce(snap *page.Snapshot) bool {
	if _, ok := snap.Global("wc_add_to_cart_params"); ok {
		return true
	}
	if _, ok := snap.Global("woocommerce_params"); ok {
		return true
	}
	if snap.Document == nil {
		return false
	}
	if snap.Document.Find("body.woocommerce, body.woocommerce-page").Length() > 0 {
		return true
	}
	return snap.Document.Find(".woocommerce").Length() > 0
}

func isMagento(snap *page.Snapshot) bool {
	if _, ok := snap.Global("Magento"); ok {
		return true
	}
	if _, ok := snap.Global("mage"); ok {
		return true
	}
	if snap.Document == nil {
		return false
	}
	return snap.Document.Find("script[type='text/x-magento-init']").Length() > 0
}

func isBigCommerce(snap *page.Snapshot) bool {
	if _, ok := snap.Global("BCData"); ok {
		return true
	}
	if snap.Document == nil {
		return false
	}
	return snap.Document.Find("[class*='bigcommerce'], [data-cart-preview]").Length() > 0
}
