package controllers

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/learnfox/LearnFox/internal/pkg/billing"
	"github.com/learnfox/LearnFox/internal/pkg/database"
	"github.com/learnfox/LearnFox/internal/pkg/env"
)

const (
	headerSignature = "X-Gateway-Signature"
	headerTimestamp = "X-Gateway-Timestamp"
)

// webhookEnvelope is the outer shape of every gateway delivery. Data is kept
// raw; the processor decodes it per event type.
type webhookEnvelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt int64           `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// HandlePaymentWebhook is the single ingress for asynchronous gateway events.
// Signature and timestamp are verified against the raw body before anything
// is parsed or persisted. 2xx acknowledges (including duplicates and ignored
// events); 5xx asks the gateway to redeliver.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	body := c.Body()
	timestamp := c.Get(headerTimestamp)
	signature := c.Get(headerSignature)
	secret := env.GetEnv("GATEWAY_WEBHOOK_SECRET", "")

	if !billing.TimestampWithinTolerance(timestamp, time.Now(), billing.DefaultSignatureTolerance) {
		log.Printf("[webhook] rejected delivery from %s: timestamp outside tolerance", c.IP())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid_timestamp",
		})
	}
	if !billing.VerifyWebhookSignature(body, timestamp, signature, secret) {
		log.Printf("[webhook] rejected delivery from %s: signature verification failed", c.IP())
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid_signature",
		})
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		log.Printf("[webhook] malformed envelope from %s: %v", c.IP(), err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "malformed_envelope",
		})
	}

	payload := envelope.Data
	if len(payload) == 0 {
		payload = body
	}
	event := billing.Event{
		EventID:     envelope.ID,
		Type:        billing.EventType(envelope.Type),
		PayloadJSON: payload,
	}
	if envelope.OccurredAt > 0 {
		event.OccurredAt = time.Unix(envelope.OccurredAt, 0)
	}

	processor := billing.NewProcessor(database.GetDB())
	result, err := processor.Process(c.Context(), event, true)
	if err != nil {
		if billing.IsRetryable(err) {
			log.Printf("[webhook] processing failed for event %s, requesting redelivery: %v", envelope.ID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "processing_failed",
			})
		}
		log.Printf("[webhook] acknowledging unprocessable event %s: %v", envelope.ID, err)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"received": true,
			"status":   string(billing.StatusIgnored),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"received": true,
		"status":   string(result.Status),
		"reason":   result.Reason,
	})
}
