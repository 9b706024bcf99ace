package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/CartPulse/cartpulse-go/events"
	"github.com/CartPulse/cartpulse-go/models"
	"github.com/gin-gonic/gin"
)

const webhookSecretHeader = "x-webhook-secret"

// WebhookHandler ingests tracked events from store frontends. The shared
// secret travels in the x-webhook-secret header; a mismatch is rejected
// before the body is read. The body is a single event envelope or a JSON
// array of envelopes.
func WebhookHandler(c *gin.Context) {
	ctx, err := getTenantContext(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to resolve tenant"})
		return
	}

	if c.GetHeader(webhookSecretHeader) != ctx.Config.WebhookSecret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read request body"})
		return
	}

	envelopes, err := decodeEnvelopes(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event payload"})
		return
	}

	processor := events.NewEventProcessor(ctx)
	if err := processor.ProcessEnvelopes(envelopes); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func decodeEnvelopes(body []byte) ([]models.Envelope, error) {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var batch []models.Envelope
		if err := json.Unmarshal(body, &batch); err != nil {
			return nil, err
		}
		return batch, nil
	}

	var single models.Envelope
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, err
	}
	return []models.Envelope{single}, nil
}
