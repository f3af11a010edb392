package rest

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainHotel "github.com/staykit/staywap/domains/hotel"
	"github.com/staykit/staywap/infrastructure/greenapi"
	"github.com/staykit/staywap/infrastructure/storage"
	"github.com/staykit/staywap/pkg/keylock"
	"github.com/staykit/staywap/pkg/metrics"
	"github.com/staykit/staywap/ui/rest/middleware"
	"github.com/staykit/staywap/usecase"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestUpdateSettingsEvictsPooledClientAndHotelCache(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:rest_hotel_test?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, storage.AutoMigrate(db))

	hotels := storage.NewHotelGormRepository(db)
	pool := greenapi.NewPool("http://127.0.0.1:9", metrics.New(8))
	t.Cleanup(pool.CloseAll)

	webhook := usecase.NewWebhookService(
		hotels,
		storage.NewGuestGormRepository(db),
		storage.NewConversationGormRepository(db),
		storage.NewMessageGormRepository(db),
		storage.NewNotificationGormRepository(db),
		nil, nil, nil, keylock.NewMemoryLocker(), metrics.New(8), nil,
	)

	app := fiber.New()
	app.Use(middleware.Recovery())
	InitRestHotel(app, hotels, pool, webhook)

	ctx := context.Background()
	h := &domainHotel.Hotel{
		ID:           "h1",
		Name:         "Hotel h1",
		InstanceID:   "instance-h1",
		APIToken:     "token-h1",
		WebhookToken: "webhook-h1",
		Enabled:      true,
		Settings: domainHotel.Settings{
			AI: domainHotel.AISettings{SystemPrompt: "old prompt"},
		},
	}
	require.NoError(t, hotels.Create(ctx, h))

	// Warm both caches: the webhook hotel snapshot and the pooled client.
	resolved, err := webhook.ResolveHotel(ctx, "h1", "webhook-h1")
	require.NoError(t, err)
	assert.Equal(t, "old prompt", resolved.Settings.AI.SystemPrompt)

	_, err = pool.GetForHotel(h)
	require.NoError(t, err)
	require.Contains(t, pool.Stats(), "h1")

	req := httptest.NewRequest(fiber.MethodPut, "/hotels/h1/settings",
		strings.NewReader(`{"ai":{"system_prompt":"new prompt"}}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// The stale client is gone; the next send rebuilds it from the DB.
	assert.NotContains(t, pool.Stats(), "h1")

	// The webhook cache was invalidated, not just left to its TTL.
	resolved, err = webhook.ResolveHotel(ctx, "h1", "webhook-h1")
	require.NoError(t, err)
	assert.Equal(t, "new prompt", resolved.Settings.AI.SystemPrompt)
}
