package hotel

import (
	"context"
	"time"
)

// Hotel is the tenant root. Gateway credentials plus the per-hotel settings
// blob live here; the delivery pipeline reads them, the (external) config
// surface writes them.
type Hotel struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	WhatsappNumber string    `json:"whatsapp_number"`
	InstanceID     string    `json:"instance_id"`
	APIToken       string    `json:"-"`
	WebhookToken   string    `json:"-"`
	Settings       Settings  `json:"settings"`
	Enabled        bool      `json:"enabled"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Settings is the typed per-hotel configuration stored as a JSON column.
type Settings struct {
	RateLimit    RateLimitSettings `json:"rate_limit"`
	Timeout      TimeoutSettings   `json:"timeout"`
	Retry        RetrySettings     `json:"retry"`
	AI           AISettings        `json:"ai"`
	Language     string            `json:"language,omitempty"`
	GatewayState string            `json:"gateway_state,omitempty"`
	DeviceInfo   map[string]any    `json:"device_info,omitempty"`
}

type RateLimitSettings struct {
	RequestsPerMinute int `json:"requests_per_minute,omitempty"`
	RequestsPerSecond int `json:"requests_per_second,omitempty"`
	BurstLimit        int `json:"burst_limit,omitempty"`
}

type TimeoutSettings struct {
	ConnectSeconds int `json:"connect_seconds,omitempty"`
	RequestSeconds int `json:"request_seconds,omitempty"`
}

type RetrySettings struct {
	MaxRetries      int     `json:"max_retries,omitempty"`
	BaseDelayMs     int     `json:"base_delay_ms,omitempty"`
	MaxDelayMs      int     `json:"max_delay_ms,omitempty"`
	ExponentialBase float64 `json:"exponential_base,omitempty"`
	Jitter          bool    `json:"jitter,omitempty"`
}

type AISettings struct {
	AutoResponse bool   `json:"auto_response,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	Model        string `json:"model,omitempty"`
}

// DefaultSettings matches the Green API guidance for a single instance.
func DefaultSettings() Settings {
	return Settings{
		RateLimit: RateLimitSettings{
			RequestsPerMinute: 60,
			RequestsPerSecond: 2,
			BurstLimit:        5,
		},
		Timeout: TimeoutSettings{
			ConnectSeconds: 10,
			RequestSeconds: 30,
		},
		Retry: RetrySettings{
			MaxRetries:      3,
			BaseDelayMs:     1000,
			MaxDelayMs:      30000,
			ExponentialBase: 2.0,
			Jitter:          true,
		},
		Language: "en",
	}
}

// MergeSettings overlays the non-zero fields of override on top of base.
// Used once at configuration-load boundaries, never in business logic.
func MergeSettings(base, override Settings) Settings {
	out := base
	if override.RateLimit.RequestsPerMinute > 0 {
		out.RateLimit.RequestsPerMinute = override.RateLimit.RequestsPerMinute
	}
	if override.RateLimit.RequestsPerSecond > 0 {
		out.RateLimit.RequestsPerSecond = override.RateLimit.RequestsPerSecond
	}
	if override.RateLimit.BurstLimit > 0 {
		out.RateLimit.BurstLimit = override.RateLimit.BurstLimit
	}
	if override.Timeout.ConnectSeconds > 0 {
		out.Timeout.ConnectSeconds = override.Timeout.ConnectSeconds
	}
	if override.Timeout.RequestSeconds > 0 {
		out.Timeout.RequestSeconds = override.Timeout.RequestSeconds
	}
	if override.Retry.MaxRetries > 0 {
		out.Retry.MaxRetries = override.Retry.MaxRetries
	}
	if override.Retry.BaseDelayMs > 0 {
		out.Retry.BaseDelayMs = override.Retry.BaseDelayMs
	}
	if override.Retry.MaxDelayMs > 0 {
		out.Retry.MaxDelayMs = override.Retry.MaxDelayMs
	}
	if override.Retry.ExponentialBase > 0 {
		out.Retry.ExponentialBase = override.Retry.ExponentialBase
	}
	if override.Retry.Jitter {
		out.Retry.Jitter = true
	}
	if override.AI.AutoResponse {
		out.AI.AutoResponse = true
	}
	if override.AI.SystemPrompt != "" {
		out.AI.SystemPrompt = override.AI.SystemPrompt
	}
	if override.AI.Model != "" {
		out.AI.Model = override.AI.Model
	}
	if override.Language != "" {
		out.Language = override.Language
	}
	if override.GatewayState != "" {
		out.GatewayState = override.GatewayState
	}
	if override.DeviceInfo != nil {
		out.DeviceInfo = override.DeviceInfo
	}
	return out
}

type IHotelRepository interface {
	Create(ctx context.Context, h *Hotel) error
	GetByID(ctx context.Context, id string) (*Hotel, error)
	GetByInstanceID(ctx context.Context, instanceID string) (*Hotel, error)
	UpdateSettings(ctx context.Context, id string, settings Settings) error
}
