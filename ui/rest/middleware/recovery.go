package middleware

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	pkgError "github.com/staykit/staywap/pkg/error"
	"github.com/staykit/staywap/pkg/utils"
)

// Recovery turns panics from the handler chain into JSON error envelopes.
// Handlers lean on utils.PanicIfNeeded, so typed pipeline errors arrive
// here carrying their own status code; anything else is a plain 500.
func Recovery() fiber.Handler {
	return func(c *fiber.Ctx) error {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}

			res := utils.ResponseData{
				Status:  fiber.StatusInternalServerError,
				Code:    "INTERNAL_SERVER_ERROR",
				Message: fmt.Sprintf("%v", recovered),
			}
			if generic, ok := recovered.(pkgError.GenericError); ok {
				res.Status = generic.StatusCode()
				res.Code = generic.ErrCode()
				res.Message = generic.Error()
			}

			entry := logrus.WithFields(logrus.Fields{
				"path":       c.Path(),
				"request_id": c.Locals("requestid"),
				"code":       res.Code,
			})
			if res.Status >= fiber.StatusInternalServerError {
				entry.Errorf("[RECOVERY] panic: %v", recovered)
			} else {
				entry.Debugf("[RECOVERY] request rejected: %s", res.Message)
			}

			_ = c.Status(res.Status).JSON(res)
		}()

		return c.Next()
	}
}
