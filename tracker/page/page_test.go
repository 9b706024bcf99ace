package page

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGlobalDottedPath(t *testing.T) {
	snap := &Snapshot{
		Globals: map[string]any{
			"Shopify": map[string]any{
				"cart": map[string]any{"total_price": 4250},
			},
			"wc_cart_fragments_params": map[string]any{},
		},
	}

	v, ok := snap.Global("Shopify.cart.total_price")
	if !ok || v != 4250 {
		t.Errorf("Global(Shopify.cart.total_price) = %v, %v", v, ok)
	}

	if _, ok := snap.Global("wc_cart_fragments_params"); !ok {
		t.Error("top-level global not found")
	}
	if _, ok := snap.Global("Shopify.checkout"); ok {
		t.Error("missing nested key should not resolve")
	}
	if _, ok := snap.Global("Shopify.cart.total_price.cents"); ok {
		t.Error("descending into a non-map should not resolve")
	}

	var nilSnap *Snapshot
	if _, ok := nilSnap.Global("Shopify"); ok {
		t.Error("nil snapshot should resolve nothing")
	}
}

func TestParseBuildsDocument(t *testing.T) {
	snap, err := Parse("https://shop.example/cart", `<html><body><div class="cart-item">x</div></body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	if snap.URL != "https://shop.example/cart" {
		t.Errorf("URL = %q", snap.URL)
	}
	if snap.Document.Find(".cart-item").Length() != 1 {
		t.Error("parsed document missing cart-item node")
	}
}

func TestFetchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := Fetch(context.Background(), srv.Client(), srv.URL); err == nil {
		t.Error("expected error on non-200 response")
	}
}

func TestFetchParsesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><span class="cart-total">$9.99</span></body></html>`))
	}))
	defer srv.Close()

	snap, err := Fetch(context.Background(), srv.Client(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Document.Find(".cart-total").Text() != "$9.99" {
		t.Error("fetched document missing cart total")
	}
}
