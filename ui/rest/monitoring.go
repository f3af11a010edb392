package rest

import (
	"github.com/gofiber/fiber/v2"
	domainNotification "github.com/staykit/staywap/domains/notification"
	"github.com/staykit/staywap/infrastructure/greenapi"
	"github.com/staykit/staywap/pkg/metrics"
	"github.com/staykit/staywap/pkg/utils"
)

type Monitoring struct {
	Monitor       *metrics.Monitor
	Pool          *greenapi.Pool
	Notifications domainNotification.INotificationRepository
}

func InitRestMonitoring(app fiber.Router, monitor *metrics.Monitor, pool *greenapi.Pool, notifications domainNotification.INotificationRepository) Monitoring {
	rest := Monitoring{Monitor: monitor, Pool: pool, Notifications: notifications}
	app.Get("/monitoring/stats", rest.GetStats)
	app.Get("/monitoring/hotels/:hotel_id/notifications", rest.ListNotifications)
	app.Post("/monitoring/notifications/:id/read", rest.MarkNotificationRead)
	return rest
}

func (controller *Monitoring) GetStats(c *fiber.Ctx) error {
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Pipeline stats retrieved",
		Results: fiber.Map{
			"pipeline": controller.Monitor.GetStats(),
			"clients":  controller.Pool.Stats(),
		},
	})
}

func (controller *Monitoring) ListNotifications(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)

	records, err := controller.Notifications.ListByHotel(c.UserContext(), c.Params("hotel_id"), limit)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Notifications retrieved",
		Results: records,
	})
}

func (controller *Monitoring) MarkNotificationRead(c *fiber.Ctx) error {
	err := controller.Notifications.MarkRead(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Notification marked as read",
	})
}
