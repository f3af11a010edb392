package cmd

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	coreconfig "github.com/staykit/staywap/core/config"
	"github.com/staykit/staywap/ui/rest"
	"github.com/staykit/staywap/ui/rest/middleware"
)

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Serve the delivery pipeline over http",
	Run:   restServer,
}

func init() {
	restCmd.Flags().String("port", "", "Override the listen port")
	restCmd.Flags().String("basic-auth", "", "Override basic auth credentials, format <user>:<secret>[,<user2>:<secret2>]")
	rootCmd.AddCommand(restCmd)
}

func restServer(cmd *cobra.Command, _ []string) {
	if portFlag, _ := cmd.Flags().GetString("port"); portFlag != "" {
		coreconfig.Global.App.Port = portFlag
	}
	if baFlag, _ := cmd.Flags().GetString("basic-auth"); baFlag != "" {
		coreconfig.Global.App.BasicAuth = strings.Split(baFlag, ",")
	}

	fiberConfig := fiber.Config{
		EnableTrustedProxyCheck: true,
		Network:                 "tcp",
		AppName:                 "StayWap Delivery Engine",
		ServerHeader:            "Hidden",
	}
	if len(coreconfig.Global.App.TrustedProxies) > 0 {
		fiberConfig.TrustedProxies = coreconfig.Global.App.TrustedProxies
		fiberConfig.ProxyHeader = fiber.HeaderXForwardedHost
	}

	app := fiber.New(fiberConfig)

	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Webhook-Token, X-Request-ID",
	}))
	app.Use(middleware.Recovery())
	app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))

	// One coarse HTTP limiter per caller IP. The per-hotel gateway rate
	// limiting happens inside the client pool, not here.
	app.Use(limiter.New(limiter.Config{
		Max:        1000,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		Next: func(c *fiber.Ctx) bool {
			// Gateway callbacks must never be throttled away.
			return strings.HasPrefix(c.Path(), coreconfig.Global.App.BasePath+"/webhook")
		},
	}))

	if coreconfig.Global.App.Debug {
		app.Use(logger.New())
	}

	apiGroup := app.Group(coreconfig.Global.App.BasePath + "/api")

	// The api group carries the admin surfaces; the webhook route stays
	// public because it authenticates per hotel with its own token.
	if len(coreconfig.Global.App.BasicAuth) > 0 {
		account := make(map[string]string)
		for _, basicAuth := range coreconfig.Global.App.BasicAuth {
			ba := strings.Split(basicAuth, ":")
			if len(ba) != 2 {
				logrus.Fatalln("Basic auth is not valid, please use the format <user>:<secret>")
			}
			account[ba[0]] = ba[1]
		}
		apiGroup.Use(basicauth.New(basicauth.Config{
			Users: account,
			Next: func(c *fiber.Ctx) bool {
				// Allow CORS preflight without credentials.
				return c.Method() == fiber.MethodOptions
			},
		}))
	} else {
		logrus.Warn("[REST] APP_BASIC_AUTH not set, the api group is unprotected")
	}

	rest.InitRestSend(apiGroup, sendUsecase)
	rest.InitRestHotel(apiGroup, hotelRepo, clientPool, webhookUsecase)
	rest.InitRestMonitoring(apiGroup, monitor, clientPool, notificationRepo)

	// The webhook endpoint authenticates per hotel with its own token, so
	// it sits outside the api group.
	rest.InitRestWebhook(app.Group(coreconfig.Global.App.BasePath), webhookUsecase)

	apiGroup.All("/*", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "API Endpoint not found",
			"path":  c.Path(),
		})
	})

	// Graceful shutdown handler
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[REST] Termination signal received, shutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			logrus.Errorf("[REST] Error during Fiber shutdown: %v", err)
		}
		StopApp()
	}()

	if err := app.Listen(":" + coreconfig.Global.App.Port); err != nil {
		logrus.Fatalln("Failed to start: ", err.Error())
	}
}
