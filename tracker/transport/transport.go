// Package transport ships event envelopes to the webhook endpoint, falling
// back to a durable offline queue whenever the network is unreachable or a
// send fails.
package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/CartPulse/cartpulse-go/models"
	"github.com/CartPulse/cartpulse-go/tracker/storage"
)

const webhookSecretHeader = "x-webhook-secret"

// Config wires a transport.
type Config struct {
	Client    *http.Client
	Endpoint  string
	Secret    string
	Store     storage.Store
	MaxQueued int
	Debug     bool
}

// Transport delivers envelopes. Queue writes happen synchronously before
// any network attempt can be abandoned, so events are delayed, never lost
// (modulo the documented flush races, see DESIGN.md).
type Transport struct {
	mu sync.Mutex

	client    *http.Client
	endpoint  string
	secret    string
	store     storage.Store
	maxQueued int
	debug     bool
	online    bool
}

func New(cfg Config) *Transport {
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	if cfg.Store == nil {
		cfg.Store = storage.NewMemoryStore()
	}
	if cfg.MaxQueued <= 0 {
		cfg.MaxQueued = 500
	}

	return &Transport{
		client:    cfg.Client,
		endpoint:  cfg.Endpoint,
		secret:    cfg.Secret,
		store:     cfg.Store,
		maxQueued: cfg.MaxQueued,
		debug:     cfg.Debug,
		online:    true,
	}
}

// Send delivers an envelope immediately when online, queueing on any
// failure. Offline sends skip the network attempt entirely.
func (t *Transport) Send(envelope models.Envelope) {
	t.mu.Lock()
	online := t.online
	t.mu.Unlock()

	if !online {
		t.enqueue(envelope)
		return
	}

	if err := t.post(envelope); err != nil {
		if t.debug {
			log.Printf("DEBUG: Transport - send failed, queueing %s: %v", envelope.Event, err)
		}
		t.enqueue(envelope)
	}
}

// SetOnline records a connectivity transition. Coming back online flushes
// the queue.
func (t *Transport) SetOnline(online bool) {
	t.mu.Lock()
	wasOnline := t.online
	t.online = online
	t.mu.Unlock()

	if online && !wasOnline {
		t.Flush()
	}
}

// Flush drains the queue in enqueue order. Each item is best-effort: a
// failed item is re-queued, preserving relative order among failures. The
// queue is cleared atomically before the pass begins; there is no per-item
// delivery acknowledgment, so a crash mid-flush can replay events.
func (t *Transport) Flush() {
	t.mu.Lock()
	queued := t.loadQueueLocked()
	if len(queued) == 0 {
		t.mu.Unlock()
		return
	}
	t.saveQueueLocked(nil)
	t.mu.Unlock()

	var failed []models.Envelope
	for _, envelope := range queued {
		if err := t.post(envelope); err != nil {
			failed = append(failed, envelope)
		}
	}

	if len(failed) > 0 {
		t.mu.Lock()
		// Anything enqueued during the pass stays behind the retries.
		remaining := append(failed, t.loadQueueLocked()...)
		t.saveQueueLocked(remaining)
		t.mu.Unlock()

		if t.debug {
			log.Printf("DEBUG: Transport - flush re-queued %d of %d events", len(failed), len(queued))
		}
	}
}

// QueueLen reports the number of queued envelopes.
func (t *Transport) QueueLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.loadQueueLocked())
}

func (t *Transport) post(envelope models.Envelope) error {
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.secret != "" {
		req.Header.Set(webhookSecretHeader, t.secret)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook rejected event, status code: %d", resp.StatusCode)
	}
	return nil
}

func (t *Transport) enqueue(envelope models.Envelope) {
	t.mu.Lock()
	defer t.mu.Unlock()

	queued := t.loadQueueLocked()
	queued = append(queued, envelope)
	if len(queued) > t.maxQueued {
		queued = queued[len(queued)-t.maxQueued:]
	}
	t.saveQueueLocked(queued)
}

func (t *Transport) loadQueueLocked() []models.Envelope {
	raw, ok := t.store.Get(storage.EventQueueKey)
	if !ok || raw == "" {
		return nil
	}

	var queued []models.Envelope
	if err := json.Unmarshal([]byte(raw), &queued); err != nil {
		if t.debug {
			log.Printf("DEBUG: Transport - dropping corrupt event queue: %v", err)
		}
		return nil
	}
	return queued
}

func (t *Transport) saveQueueLocked(queued []models.Envelope) {
	if len(queued) == 0 {
		t.store.Remove(storage.EventQueueKey)
		return
	}

	raw, err := json.Marshal(queued)
	if err != nil {
		return
	}
	t.store.Set(storage.EventQueueKey, string(raw))
}
