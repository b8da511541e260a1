package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/learnfox/LearnFox/app/controllers"
)

type WebhookRouter struct {
}

// InstallRouter registers the gateway event ingress. Authentication here is
// the HMAC signature on the body, not a bearer token.
func (h WebhookRouter) InstallRouter(app *fiber.App) {
	app.Post("/webhooks/payment-events", controllers.HandlePaymentWebhook)
}

func NewWebhookRouter() *WebhookRouter {
	return &WebhookRouter{}
}
