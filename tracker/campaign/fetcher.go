// Package campaign retrieves the tenant's active popup campaign.
package campaign

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"

	"github.com/CartPulse/cartpulse-go/models"
)

// Fetcher performs the one campaign-settings fetch per tracker instance.
type Fetcher struct {
	Client   *http.Client
	Endpoint string
	Debug    bool
}

func NewFetcher(client *http.Client, endpoint string, debug bool) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{Client: client, Endpoint: endpoint, Debug: debug}
}

// FetchActive returns the active campaign for a client, or nil. Any network
// error, non-2xx status, or decode failure resolves to nil with no retry:
// a missing campaign simply disables popups for this page load.
func (f *Fetcher) FetchActive(ctx context.Context, clientID string) *models.CampaignConfig {
	if f.Endpoint == "" || clientID == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.Endpoint+"?clientId="+url.QueryEscape(clientID), nil)
	if err != nil {
		if f.Debug {
			log.Printf("DEBUG: CampaignFetcher - request build failed: %v", err)
		}
		return nil
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		if f.Debug {
			log.Printf("DEBUG: CampaignFetcher - fetch failed: %v", err)
		}
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if f.Debug {
			log.Printf("DEBUG: CampaignFetcher - no active campaign (status %d)", resp.StatusCode)
		}
		return nil
	}

	var campaign models.CampaignConfig
	if err := json.NewDecoder(resp.Body).Decode(&campaign); err != nil {
		if f.Debug {
			log.Printf("DEBUG: CampaignFetcher - decode failed: %v", err)
		}
		return nil
	}

	if campaign.CampaignID == "" {
		return nil
	}
	return &campaign
}
