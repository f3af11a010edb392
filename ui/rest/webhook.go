package rest

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	domainWebhook "github.com/staykit/staywap/domains/webhook"
	"github.com/staykit/staywap/pkg/utils"
)

type Webhook struct {
	Service domainWebhook.IWebhookUsecase
}

func InitRestWebhook(app fiber.Router, service domainWebhook.IWebhookUsecase) Webhook {
	rest := Webhook{Service: service}
	app.Post("/webhook/:hotel_id", rest.Receive)
	return rest
}

// Receive ingests one Green API event for a hotel. The gateway retries
// deliveries that do not get a 2xx, so processing errors surface as 5xx.
func (controller *Webhook) Receive(c *fiber.Ctx) error {
	hotelID := c.Params("hotel_id")

	h, err := controller.Service.ResolveHotel(c.UserContext(), hotelID, webhookToken(c))
	utils.PanicIfNeeded(err)

	var payload domainWebhook.Payload
	err = c.BodyParser(&payload)
	utils.PanicIfNeeded(err)

	err = controller.Service.Process(c.UserContext(), h, payload)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Webhook processed",
	})
}

// webhookToken reads the per-hotel token from either the dedicated header
// or a bearer Authorization header.
func webhookToken(c *fiber.Ctx) string {
	if token := c.Get("X-Webhook-Token"); token != "" {
		return token
	}
	auth := c.Get(fiber.HeaderAuthorization)
	return strings.TrimPrefix(auth, "Bearer ")
}
