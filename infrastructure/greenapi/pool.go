package greenapi

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/staykit/staywap/domains/hotel"
	"github.com/staykit/staywap/pkg/metrics"
)

// Pool caches one live Client per hotel. All send paths for a hotel must go
// through the pooled client so the rate-limiter state is actually shared.
type Pool struct {
	mu      sync.RWMutex
	clients map[string]*Client
	baseURL string
	monitor *metrics.Monitor
}

func NewPool(baseURL string, monitor *metrics.Monitor) *Pool {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if monitor == nil {
		monitor = metrics.Default
	}
	return &Pool{
		clients: make(map[string]*Client),
		baseURL: baseURL,
		monitor: monitor,
	}
}

// ConfigForHotel merges the hotel's overrides over the defaults and builds
// the client configuration. The only place settings merging happens.
func ConfigForHotel(baseURL string, h *hotel.Hotel) ClientConfig {
	s := hotel.MergeSettings(hotel.DefaultSettings(), h.Settings)
	return ClientConfig{
		HotelID:           h.ID,
		BaseURL:           baseURL,
		InstanceID:        h.InstanceID,
		APIToken:          h.APIToken,
		RequestsPerMinute: s.RateLimit.RequestsPerMinute,
		RequestsPerSecond: s.RateLimit.RequestsPerSecond,
		BurstLimit:        s.RateLimit.BurstLimit,
		ConnectTimeout:    time.Duration(s.Timeout.ConnectSeconds) * time.Second,
		RequestTimeout:    time.Duration(s.Timeout.RequestSeconds) * time.Second,
		Retry: RetryConfig{
			MaxRetries:      s.Retry.MaxRetries,
			BaseDelay:       time.Duration(s.Retry.BaseDelayMs) * time.Millisecond,
			MaxDelay:        time.Duration(s.Retry.MaxDelayMs) * time.Millisecond,
			ExponentialBase: s.Retry.ExponentialBase,
			Jitter:          s.Retry.Jitter,
		},
	}
}

// GetForHotel returns the pooled client for the hotel, creating it lazily.
func (p *Pool) GetForHotel(h *hotel.Hotel) (*Client, error) {
	return p.Get(h.ID, func() ClientConfig { return ConfigForHotel(p.baseURL, h) })
}

// Get resolves hotelID to a client. Double-checked locking: concurrent
// callers for the same new tenant never create two live clients.
func (p *Pool) Get(hotelID string, buildConfig func() ClientConfig) (*Client, error) {
	p.mu.RLock()
	c, ok := p.clients[hotelID]
	p.mu.RUnlock()
	if ok {
		return c, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[hotelID]; ok {
		return c, nil
	}

	c, err := NewClient(buildConfig(), p.monitor)
	if err != nil {
		return nil, err
	}
	p.clients[hotelID] = c
	logrus.Infof("[POOL] gateway client created for hotel %s", hotelID)
	return c, nil
}

// Remove closes and evicts the client for one hotel, typically after its
// credentials changed.
func (p *Pool) Remove(hotelID string) {
	p.mu.Lock()
	c, ok := p.clients[hotelID]
	if ok {
		delete(p.clients, hotelID)
	}
	p.mu.Unlock()

	if ok {
		c.Close()
		logrus.Infof("[POOL] gateway client removed for hotel %s", hotelID)
	}
}

// CloseAll tears down every pooled client. Called on shutdown.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, c := range p.clients {
		c.Close()
		delete(p.clients, id)
	}
	logrus.Info("[POOL] all gateway clients closed")
}

// Stats snapshots per-client counters for the monitoring surface.
func (p *Pool) Stats() map[string]ClientStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]ClientStats, len(p.clients))
	for id, c := range p.clients {
		out[id] = c.Stats()
	}
	return out
}
