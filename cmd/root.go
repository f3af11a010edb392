package cmd

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	coreconfig "github.com/staykit/staywap/core/config"
	coreDB "github.com/staykit/staywap/core/database"
	domainGuest "github.com/staykit/staywap/domains/guest"
	domainHotel "github.com/staykit/staywap/domains/hotel"
	domainMessage "github.com/staykit/staywap/domains/message"
	domainNotification "github.com/staykit/staywap/domains/notification"
	domainWebhook "github.com/staykit/staywap/domains/webhook"
	"github.com/staykit/staywap/infrastructure/events"
	"github.com/staykit/staywap/infrastructure/greenapi"
	"github.com/staykit/staywap/infrastructure/storage"
	infraValkey "github.com/staykit/staywap/infrastructure/valkey"
	"github.com/staykit/staywap/integrations/deepseek"
	"github.com/staykit/staywap/pkg/keylock"
	"github.com/staykit/staywap/pkg/metrics"
	"github.com/staykit/staywap/pkg/scheduler"
	"github.com/staykit/staywap/pkg/utils"
	"github.com/staykit/staywap/usecase"
	"gorm.io/gorm"
)

var (
	db *gorm.DB

	// Repositories
	hotelRepo        domainHotel.IHotelRepository
	guestRepo        domainGuest.IGuestRepository
	conversationRepo domainGuest.IConversationRepository
	messageRepo      domainMessage.IMessageRepository
	queueRepo        domainMessage.IQueueRepository
	notificationRepo domainNotification.INotificationRepository

	// Infrastructure
	monitor      *metrics.Monitor
	taskSchedule scheduler.Scheduler
	locker       keylock.Locker
	publisher    events.Publisher
	clientPool   *greenapi.Pool
	valkeyClient *infraValkey.Client

	// Usecases
	sendUsecase    domainMessage.ISendUsecase
	webhookUsecase domainWebhook.IWebhookUsecase
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "staywap",
	Short: "Multi-tenant WhatsApp delivery backend for hotels",
	Long: `StayWap routes hotel guest conversations through the Green API
WhatsApp gateway: per-hotel rate limiting, retries with backoff, a
delivery queue and webhook ingestion.`,
}

func init() {
	// Load environment variables first
	utils.LoadConfig(".")

	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	cobra.OnInitialize(initEnvConfig, initApp)
}

// initEnvConfig lets viper-visible variables override the process
// environment before config is materialized.
func initEnvConfig() {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	for _, key := range []string{
		"APP_PORT", "APP_DEBUG", "APP_BASIC_AUTH", "DB_DRIVER", "DB_NAME",
		"GATEWAY_BASE_URL", "DEEPSEEK_API_KEY", "RABBITMQ_URL",
	} {
		if v := viper.GetString(key); v != "" {
			_ = os.Setenv(key, v)
		}
	}
}

func initApp() {
	cfg, err := coreconfig.LoadConfig()
	if err != nil {
		logrus.Fatalf("[APP] failed to load config: %v", err)
	}

	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	db, err = coreDB.NewDatabase(cfg)
	if err != nil {
		logrus.Fatalf("[APP] failed to open database: %v", err)
	}
	if err := storage.AutoMigrate(db); err != nil {
		logrus.Fatalf("[APP] migration failed: %v", err)
	}

	// Repositories
	hotelRepo = storage.NewHotelGormRepository(db)
	guestRepo = storage.NewGuestGormRepository(db)
	conversationRepo = storage.NewConversationGormRepository(db)
	messageRepo = storage.NewMessageGormRepository(db)
	queueRepo = storage.NewQueueGormRepository(db)
	notificationRepo = storage.NewNotificationGormRepository(db)

	// Shared infrastructure
	monitor = metrics.Default
	clientPool = greenapi.NewPool(cfg.Gateway.BaseURL, monitor)

	taskSchedule, err = scheduler.NewGocronScheduler()
	if err != nil {
		logrus.Fatalf("[APP] failed to start scheduler: %v", err)
	}

	// Keyed locks: Valkey when configured, otherwise in-process
	locker = keylock.NewMemoryLocker()
	if cfg.Database.ValkeyEnabled {
		valkeyClient, err = infraValkey.NewClient(infraValkey.Config{
			Address:   cfg.Database.ValkeyAddress,
			Password:  cfg.Database.ValkeyPassword,
			DB:        cfg.Database.ValkeyDB,
			KeyPrefix: cfg.Database.ValkeyKeyPrefix,
		})
		if err != nil {
			logrus.Fatalf("[APP] failed to connect to valkey: %v", err)
		}
		locker = infraValkey.NewLocker(valkeyClient)
	}

	// Events: RabbitMQ when configured, otherwise no-op
	publisher = events.NoopPublisher{}
	if cfg.Events.RabbitURL != "" {
		rabbit, err := events.NewRabbitPublisher(cfg.Events.RabbitURL, cfg.Events.Queue)
		if err != nil {
			logrus.Fatalf("[APP] failed to connect to rabbitmq: %v", err)
		}
		publisher = rabbit
	}

	// AI responder is optional; without a key incoming messages are
	// persisted but never auto-answered.
	var responder usecase.Responder
	if cfg.AI.DeepSeekAPIKey != "" {
		r, err := deepseek.NewResponder(cfg.AI.DeepSeekAPIKey, cfg.AI.DeepSeekBaseURL, cfg.AI.Model)
		if err != nil {
			logrus.Fatalf("[APP] failed to build deepseek responder: %v", err)
		}
		responder = r
	}

	sendUsecase = usecase.NewSendService(
		hotelRepo, guestRepo, conversationRepo, messageRepo, queueRepo,
		clientPool, taskSchedule, locker, monitor, publisher,
	)
	webhookUsecase = usecase.NewWebhookService(
		hotelRepo, guestRepo, conversationRepo, messageRepo, notificationRepo,
		sendUsecase, responder, taskSchedule, locker, monitor, publisher,
	)

	// Scheduled sends are swept on a fixed interval.
	sweep := time.Duration(cfg.Gateway.ScheduledSweepSecs) * time.Second
	err = taskSchedule.Every("scheduled-send-sweep", sweep, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweep)
		defer cancel()
		sendUsecase.DispatchDueScheduled(ctx)
	})
	if err != nil {
		logrus.Fatalf("[APP] failed to start scheduled sweep: %v", err)
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// StopApp performs a clean shutdown of all connections and services.
func StopApp() {
	logrus.Info("[APP] Stopping application...")

	if taskSchedule != nil {
		if err := taskSchedule.Shutdown(); err != nil {
			logrus.Errorf("[APP] scheduler shutdown: %v", err)
		}
	}
	if clientPool != nil {
		clientPool.CloseAll()
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logrus.Errorf("[APP] publisher close: %v", err)
		}
	}
	if valkeyClient != nil {
		valkeyClient.Close()
	}
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	logrus.Info("[APP] Application stopped cleanly.")
}
