// Command cartpulse-agent runs the CartPulse tracker against a live store
// page from the terminal. It fetches the page, detects the platform,
// extracts the cart on an interval, and reports abandonment popups to
// stdout. Useful for verifying a store's markup before embedding the
// snippet.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CartPulse/cartpulse-go/tracker"
	"github.com/CartPulse/cartpulse-go/tracker/page"
	"github.com/CartPulse/cartpulse-go/tracker/popup"
	"github.com/CartPulse/cartpulse-go/tracker/storage"
	"github.com/joho/godotenv"
)

// consoleSurface renders popups as terminal output.
type consoleSurface struct{}

func (s *consoleSurface) Mount(view popup.View) error {
	fmt.Println("----------------------------------------")
	fmt.Printf("POPUP: %s\n", view.Title)
	if view.Message != "" {
		fmt.Printf("       %s\n", view.Message)
	}
	for _, item := range view.Items {
		fmt.Printf("  %dx %s  %.2f %s\n", item.Quantity, item.Name, item.Price, view.Currency)
	}
	fmt.Printf("  total %.2f %s\n", view.Total, view.Currency)
	fmt.Printf("  [%s] -> %s\n", view.CTALabel, view.CTAURL)
	fmt.Println("----------------------------------------")
	return nil
}

func (s *consoleSurface) Unmount() {
	fmt.Println("POPUP closed")
}

func main() {
	var (
		pageURL  = flag.String("url", "", "store page URL to track (required)")
		clientID = flag.String("client-id", "", "CartPulse client id (required)")
		apiBase  = flag.String("api", "http://localhost:8080", "CartPulse server base URL")
		secret   = flag.String("webhook-secret", "", "webhook shared secret")
		interval = flag.Duration("interval", 30*time.Second, "page re-fetch interval")
		stateDirFlag = flag.String("state-dir", "", "directory for visitor state (default: temp)")
		once     = flag.Bool("once", false, "extract once, print, and exit")
		debug    = flag.Bool("debug", false, "verbose logging")
	)
	flag.Parse()

	if err := godotenv.Load(); err == nil && *debug {
		log.Println("DEBUG: agent - loaded .env")
	}

	if *pageURL == "" || *clientID == "" {
		flag.Usage()
		os.Exit(2)
	}

	client := &http.Client{Timeout: 15 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snap, err := page.Fetch(ctx, client, *pageURL)
	if err != nil {
		log.Fatalf("failed to fetch page: %v", err)
	}

	stateDir := *stateDirFlag
	if stateDir == "" {
		stateDir = os.TempDir()
	}
	store := storage.NewFileStore(stateDir+"/cartpulse-agent.json", *debug)

	t := tracker.New(tracker.Config{
		ClientID:         *clientID,
		Debug:            *debug,
		AutoTrack:        true,
		CampaignEndpoint: *apiBase + "/api/v1/campaign/settings",
		WebhookEndpoint:  *apiBase + "/api/v1/webhook",
		WebhookSecret:    *secret,
		HTTPClient:       client,
	}, snap, &consoleSurface{}, store)

	fmt.Printf("platform: %s\n", t.Platform())
	fmt.Printf("visitor:  %s\n", t.VisitorID())

	t.Start(ctx)
	t.CartEvent()

	if *once {
		t.Stop()
		return
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fresh, err := page.Fetch(ctx, client, *pageURL)
			if err != nil {
				log.Printf("WARNING: agent - page re-fetch failed: %v", err)
				continue
			}
			t.SetSnapshot(fresh)
			t.UserInput()
		case <-sig:
			fmt.Println("shutting down")
			t.Stop()
			return
		}
	}
}
