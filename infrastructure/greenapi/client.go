package greenapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/staykit/staywap/pkg/metrics"
)

// DefaultBaseURL is the hosted Green API endpoint.
const DefaultBaseURL = "https://api.green-api.com"

// ClientConfig carries everything needed to talk to one gateway instance.
type ClientConfig struct {
	HotelID    string
	BaseURL    string
	InstanceID string
	APIToken   string

	RequestsPerMinute int
	RequestsPerSecond int
	BurstLimit        int

	ConnectTimeout time.Duration
	RequestTimeout time.Duration

	Retry RetryConfig

	BreakerMaxFailures int
	BreakerCooldown    time.Duration
}

// Validate fails fast on missing credentials, before any network attempt.
func (cfg ClientConfig) Validate() error {
	if strings.TrimSpace(cfg.InstanceID) == "" {
		return errors.New("gateway instance id is required")
	}
	if strings.TrimSpace(cfg.APIToken) == "" {
		return errors.New("gateway api token is required")
	}
	return nil
}

// Client is the single HTTP entry point to the gateway for one hotel
// instance. Every call runs rate-limit -> breaker -> retry -> HTTP, in that
// order, so admission control happens before the breaker can short-circuit
// and retries stay inside one breaker-visible call.
type Client struct {
	http       *resty.Client
	hotelID    string
	instanceID string
	token      string

	limiter *RateLimiter
	retry   *RetryHandler
	breaker *CircuitBreaker
	monitor *metrics.Monitor

	requestCount int64
	errorCount   int64
	lastRequest  int64 // unix nanos
}

type ClientStats struct {
	Requests      int64     `json:"requests"`
	Errors        int64     `json:"errors"`
	LastRequestAt time.Time `json:"last_request_at"`
	BreakerState  string    `json:"breaker_state"`
}

func NewClient(cfg ClientConfig, monitor *metrics.Monitor) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if monitor == nil {
		monitor = metrics.Default
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.RequestTimeout).
		SetHeader("Content-Type", "application/json").
		SetTransport(&http.Transport{
			DialContext:         (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		})

	c := &Client{
		http:       httpClient,
		hotelID:    cfg.HotelID,
		instanceID: cfg.InstanceID,
		token:      cfg.APIToken,
		limiter:    NewRateLimiter(cfg.RequestsPerMinute, cfg.RequestsPerSecond, cfg.BurstLimit),
		retry:      NewRetryHandler(cfg.Retry),
		breaker:    NewCircuitBreaker("green-api:"+cfg.InstanceID, cfg.BreakerMaxFailures, cfg.BreakerCooldown),
		monitor:    monitor,
	}
	c.limiter.OnWait = func(d time.Duration) {
		c.monitor.ObserveRateLimitWait(c.hotelID, d)
	}

	logrus.WithFields(logrus.Fields{
		"instance_id": cfg.InstanceID,
		"base_url":    cfg.BaseURL,
	}).Info("[GREEN_API] client configured")

	return c, nil
}

// Close releases the underlying HTTP session. Safe to call more than once.
func (c *Client) Close() {
	c.http.GetClient().CloseIdleConnections()
}

func (c *Client) Stats() ClientStats {
	var last time.Time
	if ns := atomic.LoadInt64(&c.lastRequest); ns > 0 {
		last = time.Unix(0, ns)
	}
	return ClientStats{
		Requests:      atomic.LoadInt64(&c.requestCount),
		Errors:        atomic.LoadInt64(&c.errorCount),
		LastRequestAt: last,
		BreakerState:  c.breaker.State().String(),
	}
}

func (c *Client) path(endpoint string) string {
	return fmt.Sprintf("/waInstance%s/%s/%s", c.instanceID, endpoint, c.token)
}

// call performs one gateway operation. It returns found=false when the
// gateway answered 204 or an empty/null body, which receiveNotification
// treats as "no data queued".
func (c *Client) call(ctx context.Context, method, endpoint, pathSuffix string, body, out any) (found bool, err error) {
	start := time.Now()
	url := c.path(endpoint) + pathSuffix

	if err := c.limiter.Acquire(ctx); err != nil {
		return false, err
	}

	found = true
	err = c.breaker.Call(ctx, func(ctx context.Context) error {
		return c.retry.Execute(ctx, func(ctx context.Context) error {
			req := c.http.R().SetContext(ctx)
			if body != nil {
				req.SetBody(body)
			}
			resp, reqErr := req.Execute(method, url)
			if reqErr != nil {
				return fmt.Errorf("gateway request failed: %w", reqErr)
			}
			if resp.IsError() {
				return &APIError{
					StatusCode: resp.StatusCode(),
					Method:     method,
					Endpoint:   endpoint,
					Body:       strings.TrimSpace(string(resp.Body())),
				}
			}

			raw := bytes.TrimSpace(resp.Body())
			if resp.StatusCode() == http.StatusNoContent || len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
				found = false
				return nil
			}
			if out == nil {
				return nil
			}
			if decErr := json.Unmarshal(raw, out); decErr != nil {
				return fmt.Errorf("decode gateway response: %w", decErr)
			}
			return nil
		})
	})

	atomic.AddInt64(&c.requestCount, 1)
	atomic.StoreInt64(&c.lastRequest, time.Now().UnixNano())
	elapsed := time.Since(start)

	if err != nil {
		atomic.AddInt64(&c.errorCount, 1)
		logrus.WithFields(logrus.Fields{
			"instance_id": c.instanceID,
			"method":      method,
			"endpoint":    endpoint,
			"error_type":  fmt.Sprintf("%T", err),
			"duration_ms": elapsed.Milliseconds(),
		}).WithError(err).Error("[GREEN_API] request failed")
		c.monitor.Record(metrics.Event{
			HotelID: c.hotelID, Stage: metrics.StageGateway, Kind: endpoint,
			Status: "error", Error: err.Error(), DurationMs: elapsed.Milliseconds(),
		})
		return false, err
	}

	logrus.WithFields(logrus.Fields{
		"instance_id": c.instanceID,
		"method":      method,
		"endpoint":    endpoint,
		"duration_ms": elapsed.Milliseconds(),
	}).Debug("[GREEN_API] request completed")
	c.monitor.Record(metrics.Event{
		HotelID: c.hotelID, Stage: metrics.StageGateway, Kind: endpoint,
		Status: "ok", DurationMs: elapsed.Milliseconds(),
	})
	return found, nil
}

// --- Send operations ---

func (c *Client) SendText(ctx context.Context, req SendMessageRequest) (*SendResult, error) {
	var out SendResult
	if _, err := c.call(ctx, http.MethodPost, "sendMessage", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SendFileByURL(ctx context.Context, req SendFileByURLRequest) (*SendResult, error) {
	var out SendResult
	if _, err := c.call(ctx, http.MethodPost, "sendFileByUrl", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SendLocation(ctx context.Context, req SendLocationRequest) (*SendResult, error) {
	var out SendResult
	if _, err := c.call(ctx, http.MethodPost, "sendLocation", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SendContact(ctx context.Context, req SendContactRequest) (*SendResult, error) {
	var out SendResult
	if _, err := c.call(ctx, http.MethodPost, "sendContact", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SendPoll(ctx context.Context, req SendPollRequest) (*SendResult, error) {
	var out SendResult
	if _, err := c.call(ctx, http.MethodPost, "sendPoll", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Instance operations ---

func (c *Client) GetSettings(ctx context.Context) (*InstanceSettings, error) {
	var out InstanceSettings
	if _, err := c.call(ctx, http.MethodGet, "getSettings", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetSettings(ctx context.Context, settings InstanceSettings) (*SetSettingsResult, error) {
	var out SetSettingsResult
	if _, err := c.call(ctx, http.MethodPost, "setSettings", "", settings, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetStateInstance(ctx context.Context) (*StateInstance, error) {
	var out StateInstance
	if _, err := c.call(ctx, http.MethodGet, "getStateInstance", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetStatusInstance(ctx context.Context) (*StatusInstance, error) {
	var out StatusInstance
	if _, err := c.call(ctx, http.MethodGet, "getStatusInstance", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReceiveNotification pulls one queued event. Returns (nil, nil) when the
// gateway has nothing queued.
func (c *Client) ReceiveNotification(ctx context.Context) (*Notification, error) {
	var out Notification
	found, err := c.call(ctx, http.MethodGet, "receiveNotification", "", nil, &out)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &out, nil
}

func (c *Client) DeleteNotification(ctx context.Context, receiptID int) (bool, error) {
	var out DeleteNotificationResult
	if _, err := c.call(ctx, http.MethodDelete, "deleteNotification", "/"+strconv.Itoa(receiptID), nil, &out); err != nil {
		return false, err
	}
	return out.Result, nil
}
