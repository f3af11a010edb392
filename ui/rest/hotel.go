package rest

import (
	"github.com/gofiber/fiber/v2"
	domainHotel "github.com/staykit/staywap/domains/hotel"
	domainWebhook "github.com/staykit/staywap/domains/webhook"
	"github.com/staykit/staywap/infrastructure/greenapi"
	"github.com/staykit/staywap/pkg/utils"
)

// Hotel exposes the tenant administration endpoints. Registration is the
// only way instances enter the system, so it lives next to the pipeline
// even though day-to-day traffic never touches it.
type Hotel struct {
	Repository domainHotel.IHotelRepository
	Pool       *greenapi.Pool
	Webhook    domainWebhook.IWebhookUsecase
}

func InitRestHotel(app fiber.Router, repository domainHotel.IHotelRepository, pool *greenapi.Pool, webhook domainWebhook.IWebhookUsecase) Hotel {
	rest := Hotel{Repository: repository, Pool: pool, Webhook: webhook}
	app.Post("/hotels", rest.Create)
	app.Get("/hotels/:id", rest.Get)
	app.Put("/hotels/:id/settings", rest.UpdateSettings)
	return rest
}

func (controller *Hotel) Create(c *fiber.Ctx) error {
	var request domainHotel.Hotel
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	err = controller.Repository.Create(c.UserContext(), &request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Hotel registered",
		Results: request,
	})
}

func (controller *Hotel) Get(c *fiber.Ctx) error {
	h, err := controller.Repository.GetByID(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Hotel retrieved",
		Results: h,
	})
}

func (controller *Hotel) UpdateSettings(c *fiber.Ctx) error {
	var settings domainHotel.Settings
	err := c.BodyParser(&settings)
	utils.PanicIfNeeded(err)

	id := c.Params("id")
	err = controller.Repository.UpdateSettings(c.UserContext(), id, settings)
	utils.PanicIfNeeded(err)

	// The pooled gateway client and the webhook hotel cache both hold the
	// old settings; evict so the next call rebuilds from the DB.
	if controller.Pool != nil {
		controller.Pool.Remove(id)
	}
	if controller.Webhook != nil {
		controller.Webhook.InvalidateHotel(id)
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Hotel settings updated",
	})
}
