package rest

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	domainMessage "github.com/staykit/staywap/domains/message"
	"github.com/staykit/staywap/pkg/utils"
)

type Send struct {
	Service domainMessage.ISendUsecase
}

func InitRestSend(app fiber.Router, service domainMessage.ISendUsecase) Send {
	rest := Send{Service: service}
	app.Post("/send/message", rest.SendText)
	app.Post("/send/file", rest.SendFile)
	app.Post("/send/location", rest.SendLocation)
	app.Post("/send/queue/:id/retry", rest.RetryFailed)
	app.Get("/send/queue/:id", rest.GetQueueItem)
	return rest
}

func (controller *Send) SendText(c *fiber.Ctx) error {
	var request domainMessage.SendTextRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	response, err := controller.Service.SendText(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Message accepted",
		Results: response,
	})
}

func (controller *Send) SendFile(c *fiber.Ctx) error {
	var request domainMessage.SendFileRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	response, err := controller.Service.SendFile(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "File accepted",
		Results: response,
	})
}

func (controller *Send) SendLocation(c *fiber.Ctx) error {
	var request domainMessage.SendLocationRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	response, err := controller.Service.SendLocation(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Location accepted",
		Results: response,
	})
}

func (controller *Send) RetryFailed(c *fiber.Ctx) error {
	queueID := c.Params("id")

	response, err := controller.Service.RetryFailed(c.UserContext(), queueID)
	if errors.Is(err, domainMessage.ErrQueueItemNotFound) {
		return c.Status(404).JSON(utils.ResponseData{
			Status:  404,
			Code:    "NOT_FOUND",
			Message: err.Error(),
		})
	}
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Retry dispatched",
		Results: response,
	})
}

func (controller *Send) GetQueueItem(c *fiber.Ctx) error {
	queueID := c.Params("id")

	item, err := controller.Service.GetQueueItem(c.UserContext(), queueID)
	if errors.Is(err, domainMessage.ErrQueueItemNotFound) {
		return c.Status(404).JSON(utils.ResponseData{
			Status:  404,
			Code:    "NOT_FOUND",
			Message: err.Error(),
		})
	}
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Queue item retrieved",
		Results: item,
	})
}
