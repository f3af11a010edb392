package greenapi

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/staykit/staywap/domains/hotel"
	"github.com/staykit/staywap/pkg/metrics"
)

func testHotel(id string) *hotel.Hotel {
	return &hotel.Hotel{
		ID:         id,
		Name:       "Test Hotel",
		InstanceID: "instance-" + id,
		APIToken:   "token-" + id,
		Settings:   hotel.DefaultSettings(),
		Enabled:    true,
	}
}

func TestPoolReturnsSameClientPerHotel(t *testing.T) {
	pool := NewPool("http://localhost:1", metrics.New(8))
	defer pool.CloseAll()

	const callers = 16
	clients := make([]*Client, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := pool.GetForHotel(testHotel("h1"))
			require.NoError(t, err)
			clients[i] = c
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		assert.Same(t, clients[0], clients[i], "one live client per tenant")
	}
}

func TestPoolIsolatesTenants(t *testing.T) {
	pool := NewPool("http://localhost:1", metrics.New(8))
	defer pool.CloseAll()

	c1, err := pool.GetForHotel(testHotel("h1"))
	require.NoError(t, err)
	c2, err := pool.GetForHotel(testHotel("h2"))
	require.NoError(t, err)

	assert.NotSame(t, c1, c2)

	stats := pool.Stats()
	assert.Len(t, stats, 2)
}

func TestPoolRemoveEvicts(t *testing.T) {
	pool := NewPool("http://localhost:1", metrics.New(8))
	defer pool.CloseAll()

	c1, err := pool.GetForHotel(testHotel("h1"))
	require.NoError(t, err)

	pool.Remove("h1")

	c2, err := pool.GetForHotel(testHotel("h1"))
	require.NoError(t, err)
	assert.NotSame(t, c1, c2, "Remove drops the cached client")
}

func TestPoolRejectsHotelWithoutCredentials(t *testing.T) {
	pool := NewPool("http://localhost:1", metrics.New(8))
	defer pool.CloseAll()

	h := testHotel("h1")
	h.APIToken = ""
	_, err := pool.GetForHotel(h)
	require.Error(t, err)
}

func TestConfigForHotelMergesOverrides(t *testing.T) {
	h := testHotel("h1")
	h.Settings.RateLimit.RequestsPerMinute = 10
	h.Settings.Retry.MaxRetries = 7

	cfg := ConfigForHotel("http://example", h)

	assert.Equal(t, 10, cfg.RequestsPerMinute)
	assert.Equal(t, 7, cfg.Retry.MaxRetries)
	// Unset override fields fall back to defaults.
	assert.Equal(t, hotel.DefaultSettings().RateLimit.RequestsPerSecond, cfg.RequestsPerSecond)
}
