// Package models defines the shared data types for CartPulse.
package models

import (
	"time"
)

// CartItem is a single line item inside a cart snapshot.
type CartItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	VariantID string  `json:"variantId,omitempty"`
	SKU       string  `json:"sku,omitempty"`
	Image     string  `json:"image,omitempty"`
}

// CartSnapshot is the tracker's best-known view of the host page cart.
// It is replaced wholesale on every extraction, never merged.
type CartSnapshot struct {
	Total     float64    `json:"total"`
	Currency  string     `json:"currency"`
	ItemCount int        `json:"itemCount"`
	Items     []CartItem `json:"items"`
}

// CTA destinations supported by popup campaigns.
const (
	CTACompletePurchase = "complete_purchase"
	CTAGoToCheckout     = "go_to_checkout"
	CTAViewCart         = "view_cart"
)

// Cart items display thresholds for the popup evaluation gate.
const (
	DisplayShow2Plus = "show_2_plus"
	DisplayShow3Plus = "show_3_plus"
	DisplayShowAll   = "show_all"
)

// CampaignConfig is the active popup campaign for a tenant. Fetched once per
// tracker instance and treated as read-only afterward.
type CampaignConfig struct {
	CampaignID       string `json:"campaignId"`
	PopupTitle       string `json:"popupTitle"`
	PopupMessage     string `json:"popupMessage"`
	PopupDelayMs     int    `json:"popupDelayMs"`
	CTA              string `json:"cta"`
	ButtonColor      string `json:"buttonColor"`
	CartURL          string `json:"cartUrl"`
	CartItemsDisplay string `json:"cartItemsDisplay"`
	ConnectedSiteID  string `json:"connectedSiteId,omitempty"`
}

// MeetsDisplayThreshold reports whether an item count satisfies the
// campaign's cartItemsDisplay gate.
func (c *CampaignConfig) MeetsDisplayThreshold(itemCount int) bool {
	switch c.CartItemsDisplay {
	case DisplayShow2Plus:
		return itemCount >= 2
	case DisplayShow3Plus:
		return itemCount >= 3
	default:
		// show_all and unrecognized values require a non-empty cart
		return itemCount > 0
	}
}

// Envelope is a single tracked event as shipped to the webhook endpoint.
// Immutable once constructed; queued or transmitted, never mutated.
type Envelope struct {
	Event            string         `json:"event"`
	StoreID          string         `json:"store_id"`
	VisitorID        string         `json:"visitor_id"`
	SessionID        string         `json:"session_id"`
	Platform         string         `json:"platform"`
	UserAgent        string         `json:"user_agent,omitempty"`
	ScreenResolution string         `json:"screen_resolution,omitempty"`
	Timestamp        time.Time      `json:"timestamp"`
	Page             map[string]any `json:"page,omitempty"`
	Product          map[string]any `json:"product,omitempty"`
	Order            map[string]any `json:"order,omitempty"`
	Cart             *CartSnapshot  `json:"cart,omitempty"`
	CampaignID       string         `json:"campaignId,omitempty"`
	Properties       map[string]any `json:"properties,omitempty"`
}

// Event names emitted by the tracker.
const (
	EventPageView        = "page_view"
	EventProductViewed   = "product_viewed"
	EventCartUpdated     = "cart_updated"
	EventCheckoutStarted = "checkout_started"
	EventPurchase        = "purchase"
	EventPopupShown      = "popup_shown"
	EventPopupClicked    = "popup_clicked"
	EventPopupClosed     = "popup_closed"
	EventIdentify        = "identify"
)

// Popup close reasons reported with popup_closed events.
const (
	CloseReasonCTAClicked    = "cta_clicked"
	CloseReasonUserDismissed = "user_dismissed"
	CloseReasonUserClosed    = "user_closed"
	CloseReasonAutoClosed    = "auto_closed"
)

// LoginRequest is the admin login payload.
type LoginRequest struct {
	Password string `json:"password" binding:"required"`
}

// CampaignRequest is the admin create/update payload for campaigns.
type CampaignRequest struct {
	PopupTitle       string `json:"popupTitle" binding:"required"`
	PopupMessage     string `json:"popupMessage"`
	PopupDelayMs     int    `json:"popupDelayMs"`
	CTA              string `json:"cta"`
	ButtonColor      string `json:"buttonColor"`
	CartURL          string `json:"cartUrl"`
	CartItemsDisplay string `json:"cartItemsDisplay"`
}
