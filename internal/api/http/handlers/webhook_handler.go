package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// WebhookIngestor verifies and applies identity provider events.
type WebhookIngestor interface {
	HandleEvent(ctx context.Context, rawBody []byte, headers http.Header) error
}

// WebhookHandler receives directory webhooks.
type WebhookHandler struct {
	ingestor WebhookIngestor
}

// NewWebhookHandler constructs handler.
func NewWebhookHandler(ingestor WebhookIngestor) *WebhookHandler {
	return &WebhookHandler{ingestor: ingestor}
}

// Receive handles POST /api/webhooks/clerk. The body is passed through
// byte-for-byte since the signature covers the exact payload.
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	headers := http.Header{}
	for key, values := range c.GetReqHeaders() {
		for _, v := range values {
			headers.Add(key, v)
		}
	}

	body := append([]byte(nil), c.Body()...)
	if err := h.ingestor.HandleEvent(c.UserContext(), body, headers); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"received": true})
}
