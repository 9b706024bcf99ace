// Package page abstracts the host page the tracker runs against: its URL,
// script globals, and parsed document. The engine and extractors only ever
// see a Snapshot, so they run the same against a live fetch or a test fixture.
package page

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Snapshot is a point-in-time view of the host page. A nil Document is
// valid and means no DOM is available.
type Snapshot struct {
	URL              string
	Globals          map[string]any
	Document         *goquery.Document
	UserAgent        string
	ScreenResolution string
}

// Global looks up a script global by name. Dotted paths descend into nested
// maps, so "Shopify.cart" resolves Globals["Shopify"]["cart"].
func (s *Snapshot) Global(name string) (any, bool) {
	if s == nil || s.Globals == nil {
		return nil, false
	}

	parts := strings.Split(name, ".")
	var current any = s.Globals
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Parse builds a snapshot from raw HTML. Used by tests and by hosts that
// already hold the page markup.
func Parse(url, html string) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page html: %w", err)
	}

	return &Snapshot{
		URL:      url,
		Globals:  make(map[string]any),
		Document: doc,
	}, nil
}

// Fetch retrieves a page over HTTP and parses it into a snapshot. Used by
// the headless agent; failures return an error rather than a partial snapshot.
func Fetch(ctx context.Context, client *http.Client, url string) (*Snapshot, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build page request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch page, status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read page body: %w", err)
	}

	snapshot, err := Parse(url, string(body))
	if err != nil {
		return nil, err
	}

	snapshot.UserAgent = req.UserAgent()
	return snapshot, nil
}
