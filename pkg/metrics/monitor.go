package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Pipeline stages recorded by the monitor.
const (
	StageWebhook   = "webhook"
	StageGateway   = "gateway"
	StageSend      = "send"
	StageRetry     = "retry"
	StageRateLimit = "rate_limit"
)

// Event is a single observation from the delivery pipeline.
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	HotelID    string    `json:"hotel_id"`
	Stage      string    `json:"stage"`  // webhook | gateway | send | retry | rate_limit
	Kind       string    `json:"kind"`   // typeWebhook value, gateway endpoint or message type
	Status     string    `json:"status"` // ok | error | skipped
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
}

// InstanceStats aggregates counters for a single hotel instance.
type InstanceStats struct {
	GatewayRequests int64 `json:"gateway_requests"`
	GatewayErrors   int64 `json:"gateway_errors"`
	MessagesSent    int64 `json:"messages_sent"`
	MessagesFailed  int64 `json:"messages_failed"`
	WebhooksTotal   int64 `json:"webhooks_total"`
}

// Stats is the on-demand snapshot returned to the monitoring surface.
type Stats struct {
	TotalGatewayRequests int64                     `json:"total_gateway_requests"`
	TotalGatewayErrors   int64                     `json:"total_gateway_errors"`
	TotalSent            int64                     `json:"total_sent"`
	TotalReceived        int64                     `json:"total_received"`
	TotalFailed          int64                     `json:"total_failed"`
	TotalRetries         int64                     `json:"total_retries"`
	RateLimitHits        int64                     `json:"rate_limit_hits"`
	AvgRateLimitWaitMs   int64                     `json:"avg_rate_limit_wait_ms"`
	WebhooksByType       map[string]int64          `json:"webhooks_by_type"`
	PerInstance          map[string]*InstanceStats `json:"per_instance"`
	RecentEvents         []Event                   `json:"recent_events"`
}

// Monitor keeps a fixed-size ring of recent events plus atomic counters.
// Safe for concurrent use from every pipeline component.
type Monitor struct {
	eventsMu sync.Mutex
	events   []Event
	idx      int
	count    int

	totalGatewayRequests int64
	totalGatewayErrors   int64
	totalSent            int64
	totalReceived        int64
	totalFailed          int64
	totalRetries         int64
	rateLimitHits        int64
	rateLimitWaitMs      int64

	aggMu     sync.Mutex
	byWebhook map[string]int64
	byHotel   map[string]*InstanceStats
}

func New(size int) *Monitor {
	if size <= 0 {
		size = 256
	}
	return &Monitor{
		events:    make([]Event, size),
		byWebhook: make(map[string]int64),
		byHotel:   make(map[string]*InstanceStats),
	}
}

// Default is the process-wide monitor. Components still receive a *Monitor
// explicitly so tests can inject their own.
var Default = New(256)

func (m *Monitor) Record(e Event) {
	e.Timestamp = time.Now().UTC()

	inst := m.instance(e.HotelID)

	switch e.Stage {
	case StageWebhook:
		atomic.AddInt64(&m.totalReceived, 1)
		m.aggMu.Lock()
		m.byWebhook[e.Kind]++
		m.aggMu.Unlock()
		if inst != nil {
			atomic.AddInt64(&inst.WebhooksTotal, 1)
		}
	case StageGateway:
		atomic.AddInt64(&m.totalGatewayRequests, 1)
		if inst != nil {
			atomic.AddInt64(&inst.GatewayRequests, 1)
		}
		if e.Status == "error" {
			atomic.AddInt64(&m.totalGatewayErrors, 1)
			if inst != nil {
				atomic.AddInt64(&inst.GatewayErrors, 1)
			}
		}
	case StageSend:
		if e.Status == "ok" {
			atomic.AddInt64(&m.totalSent, 1)
			if inst != nil {
				atomic.AddInt64(&inst.MessagesSent, 1)
			}
		} else if e.Status == "error" {
			atomic.AddInt64(&m.totalFailed, 1)
			if inst != nil {
				atomic.AddInt64(&inst.MessagesFailed, 1)
			}
		}
	case StageRetry:
		atomic.AddInt64(&m.totalRetries, 1)
	}

	m.eventsMu.Lock()
	m.events[m.idx] = e
	m.idx = (m.idx + 1) % len(m.events)
	if m.count < len(m.events) {
		m.count++
	}
	m.eventsMu.Unlock()
}

// ObserveRateLimitWait accumulates the time callers spent blocked in the
// rate limiter for the given hotel.
func (m *Monitor) ObserveRateLimitWait(hotelID string, d time.Duration) {
	atomic.AddInt64(&m.rateLimitHits, 1)
	atomic.AddInt64(&m.rateLimitWaitMs, d.Milliseconds())
	m.Record(Event{HotelID: hotelID, Stage: StageRateLimit, Status: "ok", DurationMs: d.Milliseconds()})
}

func (m *Monitor) instance(hotelID string) *InstanceStats {
	if hotelID == "" {
		return nil
	}
	m.aggMu.Lock()
	defer m.aggMu.Unlock()
	inst, ok := m.byHotel[hotelID]
	if !ok {
		inst = &InstanceStats{}
		m.byHotel[hotelID] = inst
	}
	return inst
}

func (m *Monitor) GetStats() Stats {
	stats := Stats{
		TotalGatewayRequests: atomic.LoadInt64(&m.totalGatewayRequests),
		TotalGatewayErrors:   atomic.LoadInt64(&m.totalGatewayErrors),
		TotalSent:            atomic.LoadInt64(&m.totalSent),
		TotalReceived:        atomic.LoadInt64(&m.totalReceived),
		TotalFailed:          atomic.LoadInt64(&m.totalFailed),
		TotalRetries:         atomic.LoadInt64(&m.totalRetries),
		RateLimitHits:        atomic.LoadInt64(&m.rateLimitHits),
		WebhooksByType:       make(map[string]int64),
		PerInstance:          make(map[string]*InstanceStats),
	}
	if stats.RateLimitHits > 0 {
		stats.AvgRateLimitWaitMs = atomic.LoadInt64(&m.rateLimitWaitMs) / stats.RateLimitHits
	}

	m.aggMu.Lock()
	for k, v := range m.byWebhook {
		stats.WebhooksByType[k] = v
	}
	for k, v := range m.byHotel {
		stats.PerInstance[k] = &InstanceStats{
			GatewayRequests: atomic.LoadInt64(&v.GatewayRequests),
			GatewayErrors:   atomic.LoadInt64(&v.GatewayErrors),
			MessagesSent:    atomic.LoadInt64(&v.MessagesSent),
			MessagesFailed:  atomic.LoadInt64(&v.MessagesFailed),
			WebhooksTotal:   atomic.LoadInt64(&v.WebhooksTotal),
		}
	}
	m.aggMu.Unlock()

	m.eventsMu.Lock()
	recent := make([]Event, 0, m.count)
	start := m.idx - m.count
	if start < 0 {
		start += len(m.events)
	}
	for i := 0; i < m.count; i++ {
		recent = append(recent, m.events[(start+i)%len(m.events)])
	}
	m.eventsMu.Unlock()
	stats.RecentEvents = recent

	return stats
}
