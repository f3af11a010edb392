package valkey

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	valkeylib "github.com/valkey-io/valkey-go"
)

const defaultConnectTimeout = 5 * time.Second

// Config holds the connection settings for the optional Valkey backend.
type Config struct {
	Address        string
	Password       string
	DB             int
	KeyPrefix      string
	ConnectTimeout time.Duration
}

// Client wraps valkey-go with key prefixing. Created once in cmd wiring and
// passed down; callers own Close().
type Client struct {
	inner     valkeylib.Client
	keyPrefix string
}

func NewClient(cfg Config) (*Client, error) {
	opts := valkeylib.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	inner, err := valkeylib.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = defaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := inner.Do(ctx, inner.B().Ping().Build()).Error(); err != nil {
		inner.Close()
		return nil, fmt.Errorf("failed to ping valkey: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &Client{inner: inner, keyPrefix: prefix}, nil
}

func (c *Client) Key(parts ...string) string {
	return c.keyPrefix + strings.Join(parts, ":")
}

func (c *Client) Close() {
	if c.inner != nil {
		c.inner.Close()
	}
}

// Locker implements pkg/keylock.Locker on Valkey SET NX PX, so webhook
// processors on different nodes serialize the same (hotel, phone) key.
type Locker struct {
	client *Client
}

func NewLocker(client *Client) *Locker {
	return &Locker{client: client}
}

func (l *Locker) Acquire(key string, ttl time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	k := l.client.Key("lock", key)
	cmd := l.client.inner.B().Set().Key(k).Value("1").Nx().Px(ttl).Build()
	resp := l.client.inner.Do(ctx, cmd)
	if err := resp.Error(); err != nil {
		if valkeylib.IsValkeyNil(err) {
			return false
		}
		logrus.WithError(err).Warnf("[VALKEY] lock acquire failed for %s", key)
		return false
	}
	return true
}

func (l *Locker) Release(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	k := l.client.Key("lock", key)
	if err := l.client.inner.Do(ctx, l.client.inner.B().Del().Key(k).Build()).Error(); err != nil {
		logrus.WithError(err).Warnf("[VALKEY] lock release failed for %s", key)
	}
}
