// Package events provides ingest-side event processing for CartPulse
package events

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/CartPulse/cartpulse-go/cache"
	"github.com/CartPulse/cartpulse-go/models"
	"github.com/CartPulse/cartpulse-go/tenant"
	"github.com/CartPulse/cartpulse-go/utils"
)

// EventProcessor persists webhook events and folds them into the tenant's
// analytics caches.
type EventProcessor struct {
	tenantID     string
	ctx          *tenant.Context
	cacheManager *cache.Manager
}

// NewEventProcessor creates a new event processor
func NewEventProcessor(ctx *tenant.Context) *EventProcessor {
	return &EventProcessor{
		tenantID:     ctx.TenantID,
		ctx:          ctx,
		cacheManager: cache.GetGlobalManager(),
	}
}

// ProcessEnvelopes processes a batch of envelopes, continuing past
// individual failures so one bad event never blocks the rest.
func (ep *EventProcessor) ProcessEnvelopes(envelopes []models.Envelope) error {
	var failed int
	for _, envelope := range envelopes {
		if err := ep.ProcessEnvelope(envelope); err != nil {
			log.Printf("ERROR: EventProcessor - error processing %s event: %v", envelope.Event, err)
			failed++
			continue
		}
	}

	if failed == len(envelopes) && failed > 0 {
		return fmt.Errorf("all %d events failed processing", failed)
	}
	return nil
}

// ProcessEnvelope handles a single tracked event end to end: visitor upsert,
// durable insert, analytics bins, live broadcast.
func (ep *EventProcessor) ProcessEnvelope(envelope models.Envelope) error {
	if envelope.Event == "" {
		return fmt.Errorf("envelope missing event name")
	}
	if envelope.VisitorID == "" || envelope.SessionID == "" {
		return fmt.Errorf("envelope missing visitor or session id")
	}

	if err := ep.upsertVisitor(envelope); err != nil {
		return err
	}

	if err := ep.insertEvent(envelope); err != nil {
		return err
	}

	ep.updateCaches(envelope)
	ep.broadcast(envelope)
	return nil
}

func (ep *EventProcessor) upsertVisitor(envelope models.Envelope) error {
	now := time.Now().UTC()

	query := `INSERT INTO visitors (id, platform, first_seen, last_seen)
	          VALUES (?, ?, ?, ?)
	          ON CONFLICT(id) DO UPDATE SET last_seen = excluded.last_seen`

	if _, err := ep.ctx.Database.Conn.Exec(query, envelope.VisitorID, envelope.Platform, now, now); err != nil {
		return fmt.Errorf("failed to upsert visitor: %w", err)
	}

	state, exists := ep.cacheManager.GetVisitorState(ep.tenantID, envelope.VisitorID)
	if !exists {
		state = &models.VisitorState{
			VisitorID: envelope.VisitorID,
			Platform:  envelope.Platform,
			FirstSeen: now,
		}
	}
	state.LastActivity = now
	ep.cacheManager.SetVisitorState(ep.tenantID, state)

	session, exists := ep.cacheManager.GetSession(ep.tenantID, envelope.SessionID)
	if !exists {
		session = &models.SessionData{
			SessionID: envelope.SessionID,
			VisitorID: envelope.VisitorID,
			Platform:  envelope.Platform,
			CreatedAt: now,
		}
	}
	session.LastActivity = now
	if envelope.Page != nil {
		if url, ok := envelope.Page["url"].(string); ok {
			session.CurrentPage = url
		}
	}
	ep.cacheManager.SetSession(ep.tenantID, session)

	return nil
}

func (ep *EventProcessor) insertEvent(envelope models.Envelope) error {
	payload, err := marshalPayload(envelope)
	if err != nil {
		return err
	}

	createdAt := envelope.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `INSERT INTO events
		(id, event, visitor_id, session_id, platform, user_agent, screen_resolution, campaign_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = ep.ctx.Database.Conn.Exec(query,
		utils.GenerateULID(),
		envelope.Event,
		envelope.VisitorID,
		envelope.SessionID,
		envelope.Platform,
		envelope.UserAgent,
		envelope.ScreenResolution,
		nullable(envelope.CampaignID),
		payload,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert %s event: %w", envelope.Event, err)
	}

	return nil
}

// marshalPayload collapses the event-specific sections into one JSON column.
func marshalPayload(envelope models.Envelope) (string, error) {
	payload := make(map[string]any)
	if envelope.Page != nil {
		payload["page"] = envelope.Page
	}
	if envelope.Product != nil {
		payload["product"] = envelope.Product
	}
	if envelope.Order != nil {
		payload["order"] = envelope.Order
	}
	if envelope.Cart != nil {
		payload["cart"] = envelope.Cart
	}
	if envelope.Properties != nil {
		payload["properties"] = envelope.Properties
	}
	if len(payload) == 0 {
		return "", nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return string(raw), nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (ep *EventProcessor) updateCaches(envelope models.Envelope) {
	var cartValue, orderValue float64

	switch envelope.Event {
	case models.EventCartUpdated, models.EventCheckoutStarted:
		if envelope.Cart != nil {
			cartValue = envelope.Cart.Total
		}
	case models.EventPurchase:
		if envelope.Order != nil {
			if total, ok := envelope.Order["total"].(float64); ok {
				orderValue = total
			}
		}
	}

	ep.cacheManager.RecordSiteEvent(ep.tenantID, envelope.VisitorID, envelope.Event, cartValue, orderValue)

	switch envelope.Event {
	case models.EventPopupShown, models.EventPopupClicked, models.EventPopupClosed:
		reason := ""
		if envelope.Properties != nil {
			if r, ok := envelope.Properties["reason"].(string); ok {
				reason = r
			}
		}
		ep.cacheManager.RecordCampaignEvent(ep.tenantID, envelope.CampaignID, envelope.Event, reason)
	}
}

func (ep *EventProcessor) broadcast(envelope models.Envelope) {
	data, err := json.Marshal(map[string]any{
		"event":     envelope.Event,
		"visitorId": envelope.VisitorID,
		"sessionId": envelope.SessionID,
		"platform":  envelope.Platform,
		"timestamp": envelope.Timestamp,
	})
	if err != nil {
		return
	}
	models.Broadcaster.Broadcast("tracked", string(data))
}
