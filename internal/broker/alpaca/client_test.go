package alpaca

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/iMOD07/AlpacaTradingBot/internal/config"
)

func newTestClient(t *testing.T, baseURL string) (*Client, *int32) {
	t.Helper()
	c, err := NewClient(config.AlpacaConfig{
		BaseURL:   baseURL,
		DataURL:   baseURL,
		KeyID:     "key",
		SecretKey: "secret",
	})
	require.NoError(t, err)
	sleeps := new(int32)
	c.SetRetryPolicy(DefaultRetryPolicy(time.Millisecond))
	c.SetSleep(func(time.Duration) { atomic.AddInt32(sleeps, 1) })
	return c, sleeps
}

func TestRetryOn5xxThenSuccess(t *testing.T) {
	var calls int32
	var keys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"id":"ord-1"}`))
	}))
	defer srv.Close()

	c, sleeps := newTestClient(t, srv.URL)
	raw, err := c.PlaceMarketableLimitBuy(context.Background(), "ASTC", 32, decimal.RequireFromString("6.36"), false)
	require.NoError(t, err)

	assert.Equal(t, "ord-1", gjson.GetBytes(raw, "id").String())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, int32(2), atomic.LoadInt32(sleeps))

	// The idempotency key is fresh per logical call but stable across
	// retries so the broker can drop duplicates.
	require.Len(t, keys, 3)
	assert.NotEmpty(t, keys[0])
	assert.Equal(t, keys[0], keys[1])
	assert.Equal(t, keys[0], keys[2])
}

func TestRetriesExhaustedSurfaceBrokerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("down"))
	}))
	defer srv.Close()

	c, sleeps := newTestClient(t, srv.URL)
	_, err := c.GetAccount(context.Background())
	require.Error(t, err)

	be, ok := AsBrokerError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, be.Status)
	assert.Equal(t, "down", be.Body)
	assert.Equal(t, int32(2), atomic.LoadInt32(sleeps))
}

func TestClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"qty must be > 0"}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	_, err := c.PlaceOCO(context.Background(), "ASTC", 0, decimal.New(1, 0), decimal.New(1, 0))
	require.Error(t, err)

	be, ok := AsBrokerError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, be.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTransportFailureIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from now on

	c, sleeps := newTestClient(t, srv.URL)
	_, err := c.GetAccount(context.Background())
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Equal(t, int32(2), atomic.LoadInt32(sleeps))
}

func TestGetRequestsCarryNoIdempotencyKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "key", r.Header.Get("APCA-API-KEY-ID"))
		assert.Equal(t, "secret", r.Header.Get("APCA-API-SECRET-KEY"))
		_, _ = w.Write([]byte(`{"trade":{"p":6.42}}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	px, err := c.GetLastTradePrice(context.Background(), "ASTC")
	require.NoError(t, err)
	assert.Equal(t, "6.42", px.String())
}

func TestOutboundPricesNormalized(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"id":"ord-2"}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	_, err := c.PlaceMarketableLimitBuy(context.Background(), "ASTC", 32, decimal.RequireFromString("6.678"), true)
	require.NoError(t, err)

	assert.Equal(t, "6.68", gjson.GetBytes(body, "limit_price").String())
	assert.True(t, gjson.GetBytes(body, "extended_hours").Bool())
	assert.Equal(t, "32", gjson.GetBytes(body, "qty").String())

	_, err = c.PlaceOCO(context.Background(), "PENNY", 10,
		decimal.RequireFromString("0.12345"), decimal.RequireFromString("0.11111"))
	require.NoError(t, err)
	assert.Equal(t, "0.1235", gjson.GetBytes(body, "take_profit.limit_price").String())
	assert.Equal(t, "0.1111", gjson.GetBytes(body, "stop_loss.stop_price").String())
	assert.Equal(t, "oco", gjson.GetBytes(body, "order_class").String())
}

func TestGetLastQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"quote":{"bp":6.30,"ap":6.34}}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	q, err := c.GetLastQuote(context.Background(), "ASTC")
	require.NoError(t, err)
	assert.Equal(t, "6.3", q.Bid.String())
	assert.Equal(t, "6.34", q.Ask.String())
}

func TestGetOrderAvgFillPrice(t *testing.T) {
	t.Run("filled", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"filled","filled_avg_price":"6.37"}`))
		}))
		defer srv.Close()
		c, _ := newTestClient(t, srv.URL)
		px, ok, err := c.GetOrderAvgFillPrice(context.Background(), "ord-1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "6.37", px.String())
	})

	t.Run("not settled yet", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"new","filled_avg_price":null}`))
		}))
		defer srv.Close()
		c, _ := newTestClient(t, srv.URL)
		_, ok, err := c.GetOrderAvgFillPrice(context.Background(), "ord-1")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestListOrders(t *testing.T) {
	since := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "closed", r.URL.Query().Get("status"))
		assert.Equal(t, "sell", r.URL.Query().Get("side"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		assert.Equal(t, "2025-03-01T12:00:00Z", r.URL.Query().Get("after"))
		_ = json.NewEncoder(w).Encode([]Order{
			{ID: "a", Symbol: "ASTC", Side: "sell", Type: "limit", Status: "filled", FilledAvgPrice: "6.68"},
		})
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	orders, err := c.ListOrders(context.Background(), "closed", "sell", since, 100)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "ASTC", orders[0].Symbol)
}

func TestNormalizePrice(t *testing.T) {
	cases := []struct{ in, want string }{
		{"6.678", "6.68"},
		{"6.675", "6.68"},
		{"1.00", "1"},
		{"0.12345", "0.1235"},
		{"0.99999", "1"},
		{"123.456", "123.46"},
	}
	for _, tc := range cases {
		got := NormalizePrice(decimal.RequireFromString(tc.in))
		assert.Equal(t, tc.want, got.String(), "input %s", tc.in)
	}
}
