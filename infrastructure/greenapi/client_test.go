package greenapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/staykit/staywap/pkg/metrics"
)

func testClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		HotelID:           "hotel-1",
		BaseURL:           baseURL,
		InstanceID:        "1101000001",
		APIToken:          "test-token",
		RequestsPerMinute: 600,
		RequestsPerSecond: 100,
		Retry: RetryConfig{
			MaxRetries:      2,
			BaseDelay:       time.Millisecond,
			MaxDelay:        5 * time.Millisecond,
			ExponentialBase: 2.0,
			Jitter:          false,
		},
	}
}

func TestClientConfigValidation(t *testing.T) {
	_, err := NewClient(ClientConfig{APIToken: "tok"}, metrics.New(8))
	require.Error(t, err)

	_, err = NewClient(ClientConfig{InstanceID: "1101"}, metrics.New(8))
	require.Error(t, err)
}

func TestClientSendTextBuildsGatewayPath(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"idMessage":"abc123"}`))
	}))
	defer server.Close()

	c, err := NewClient(testClientConfig(server.URL), metrics.New(8))
	require.NoError(t, err)
	defer c.Close()

	result, err := c.SendText(context.Background(), SendMessageRequest{
		ChatID:  ChatID("34600111222"),
		Message: "hola",
	})
	require.NoError(t, err)

	assert.Equal(t, "abc123", result.IDMessage)
	assert.Equal(t, "/waInstance1101000001/sendMessage/test-token", gotPath)
}

func TestClientRetriesServerErrors(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"idMessage":"after-retry"}`))
	}))
	defer server.Close()

	c, err := NewClient(testClientConfig(server.URL), metrics.New(8))
	require.NoError(t, err)
	defer c.Close()

	result, err := c.SendText(context.Background(), SendMessageRequest{ChatID: "1@c.us", Message: "x"})
	require.NoError(t, err)

	assert.Equal(t, "after-retry", result.IDMessage)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"forbidden"}`))
	}))
	defer server.Close()

	c, err := NewClient(testClientConfig(server.URL), metrics.New(8))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.SendText(context.Background(), SendMessageRequest{ChatID: "1@c.us", Message: "x"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Requests)
	assert.Equal(t, int64(1), stats.Errors)
}

func TestClientReceiveNotificationNoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c, err := NewClient(testClientConfig(server.URL), metrics.New(8))
	require.NoError(t, err)
	defer c.Close()

	notification, err := c.ReceiveNotification(context.Background())
	require.NoError(t, err)
	assert.Nil(t, notification, "empty gateway queue yields nil, nil")
}

func TestClientReceiveNotificationNullBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("null"))
	}))
	defer server.Close()

	c, err := NewClient(testClientConfig(server.URL), metrics.New(8))
	require.NoError(t, err)
	defer c.Close()

	notification, err := c.ReceiveNotification(context.Background())
	require.NoError(t, err)
	assert.Nil(t, notification)
}

func TestChatIDHelpers(t *testing.T) {
	assert.Equal(t, "34600111222@c.us", ChatID("34600111222"))
	assert.Equal(t, "34600111222@c.us", ChatID("+34600111222"))
	assert.Equal(t, "34600111222@c.us", ChatID("34600111222@c.us"))

	assert.Equal(t, "34600111222", PhoneFromChatID("34600111222@c.us"))
	assert.Equal(t, "123-456", PhoneFromChatID("123-456@g.us"))
}
