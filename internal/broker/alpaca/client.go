// Package alpaca wraps the Alpaca trading and market-data REST APIs behind
// a retrying, idempotent client.
package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/iMOD07/AlpacaTradingBot/internal/config"
	"github.com/iMOD07/AlpacaTradingBot/internal/logger"
	"github.com/iMOD07/AlpacaTradingBot/internal/metrics"
	"github.com/iMOD07/AlpacaTradingBot/internal/pkg/circuit"
)

const (
	breakerThreshold = 5
	breakerTimeout   = 30 * time.Second
)

// Client is a stateless facade over the brokerage REST API. Every mutating
// call carries a fresh Idempotency-Key that stays stable across retries of
// the same logical request.
type Client struct {
	baseURL    string
	dataURL    string
	keyID      string
	secretKey  string
	httpClient *http.Client
	retry      RetryPolicy
	breaker    *circuit.Breaker
	sleep      func(time.Duration)
}

func NewClient(cfg config.AlpacaConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	data := strings.TrimRight(strings.TrimSpace(cfg.DataURL), "/")
	if base == "" || data == "" {
		return nil, fmt.Errorf("alpaca base_url/data_url cannot be empty")
	}
	if strings.TrimSpace(cfg.KeyID) == "" || strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, fmt.Errorf("alpaca credentials not configured")
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL:    base,
		dataURL:    data,
		keyID:      strings.TrimSpace(cfg.KeyID),
		secretKey:  strings.TrimSpace(cfg.SecretKey),
		httpClient: &http.Client{Timeout: timeout},
		retry:      DefaultRetryPolicy(2 * time.Second),
		breaker:    circuit.NewBreaker("alpaca", breakerThreshold, breakerTimeout),
		sleep:      time.Sleep,
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) { c.httpClient = client }

// SetRetryPolicy overrides the retry policy (tests use a zero backoff).
func (c *Client) SetRetryPolicy(p RetryPolicy) { c.retry = p }

// SetSleep overrides the backoff sleeper for testing.
func (c *Client) SetSleep(fn func(time.Duration)) { c.sleep = fn }

// GetAccount fetches the trading account.
func (c *Client) GetAccount(ctx context.Context) (*Account, error) {
	body, err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/v2/account", nil, "account")
	if err != nil {
		return nil, err
	}
	var acc Account
	if err := json.Unmarshal(body, &acc); err != nil {
		return nil, fmt.Errorf("decoding account failed: %w", err)
	}
	return &acc, nil
}

// GetLastTradePrice returns the latest trade price for symbol.
func (c *Client) GetLastTradePrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	u := fmt.Sprintf("%s/stocks/%s/trades/latest", c.dataURL, url.PathEscape(symbol))
	body, err := c.doRequest(ctx, http.MethodGet, u, nil, "last_trade")
	if err != nil {
		return decimal.Zero, err
	}
	p := gjson.GetBytes(body, "trade.p")
	if p.Type != gjson.Number {
		return decimal.Zero, fmt.Errorf("no latest trade price for %s", symbol)
	}
	return decimal.NewFromString(p.Raw)
}

// GetLastQuote returns the latest bid/ask for symbol.
func (c *Client) GetLastQuote(ctx context.Context, symbol string) (Quote, error) {
	u := fmt.Sprintf("%s/stocks/%s/quotes/latest", c.dataURL, url.PathEscape(symbol))
	body, err := c.doRequest(ctx, http.MethodGet, u, nil, "last_quote")
	if err != nil {
		return Quote{}, err
	}
	bid := gjson.GetBytes(body, "quote.bp")
	ask := gjson.GetBytes(body, "quote.ap")
	if bid.Type != gjson.Number || ask.Type != gjson.Number {
		return Quote{}, fmt.Errorf("no quote for %s", symbol)
	}
	b, err := decimal.NewFromString(bid.Raw)
	if err != nil {
		return Quote{}, err
	}
	a, err := decimal.NewFromString(ask.Raw)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Bid: b, Ask: a}, nil
}

// PlaceMarketableLimitBuy submits a day limit buy priced to fill
// immediately. Returns the raw order payload for auditing.
func (c *Client) PlaceMarketableLimitBuy(ctx context.Context, symbol string, qty int, limitPrice decimal.Decimal, extendedHours bool) (json.RawMessage, error) {
	payload := map[string]any{
		"symbol":         symbol,
		"qty":            strconv.Itoa(qty),
		"side":           "buy",
		"type":           "limit",
		"time_in_force":  "day",
		"limit_price":    NormalizePrice(limitPrice).String(),
		"extended_hours": extendedHours,
	}
	return c.doRequest(ctx, http.MethodPost, c.baseURL+"/v2/orders", payload, "place_buy")
}

// PlaceOCO submits the paired take-profit limit / stop-loss sell.
func (c *Client) PlaceOCO(ctx context.Context, symbol string, qty int, takeProfit, stopLoss decimal.Decimal) (json.RawMessage, error) {
	payload := map[string]any{
		"symbol":        symbol,
		"qty":           strconv.Itoa(qty),
		"side":          "sell",
		"type":          "limit",
		"time_in_force": "gtc",
		"order_class":   "oco",
		"take_profit":   map[string]string{"limit_price": NormalizePrice(takeProfit).String()},
		"stop_loss":     map[string]string{"stop_price": NormalizePrice(stopLoss).String()},
	}
	return c.doRequest(ctx, http.MethodPost, c.baseURL+"/v2/orders", payload, "place_oco")
}

// CancelOrder cancels an open order by id.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	u := c.baseURL + "/v2/orders/" + url.PathEscape(orderID)
	_, err := c.doRequest(ctx, http.MethodDelete, u, nil, "cancel_order")
	return err
}

// GetOrderAvgFillPrice returns the average fill price for an order, or
// ok=false when the order has not (partially) filled yet.
func (c *Client) GetOrderAvgFillPrice(ctx context.Context, orderID string) (decimal.Decimal, bool, error) {
	u := c.baseURL + "/v2/orders/" + url.PathEscape(orderID)
	body, err := c.doRequest(ctx, http.MethodGet, u, nil, "get_order")
	if err != nil {
		return decimal.Zero, false, err
	}
	status := strings.ToLower(gjson.GetBytes(body, "status").String())
	if status != "filled" && status != "partially_filled" {
		return decimal.Zero, false, nil
	}
	raw := strings.TrimSpace(gjson.GetBytes(body, "filled_avg_price").String())
	if raw == "" {
		return decimal.Zero, false, nil
	}
	px, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("bad filled_avg_price %q: %w", raw, err)
	}
	return px, true, nil
}

// ListOrders fetches orders filtered by status and side since a point in
// time.
func (c *Client) ListOrders(ctx context.Context, status, side string, since time.Time, limit int) ([]Order, error) {
	q := url.Values{}
	q.Set("status", status)
	q.Set("side", side)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("nested", "true")
	if !since.IsZero() {
		q.Set("after", since.UTC().Format(time.RFC3339))
	}
	u := c.baseURL + "/v2/orders?" + q.Encode()
	body, err := c.doRequest(ctx, http.MethodGet, u, nil, "list_orders")
	if err != nil {
		return nil, err
	}
	var orders []Order
	if err := json.Unmarshal(body, &orders); err != nil {
		return nil, fmt.Errorf("decoding orders failed: %w", err)
	}
	return orders, nil
}

func (c *Client) doRequest(ctx context.Context, method, rawURL string, payload any, endpoint string) ([]byte, error) {
	if !c.breaker.Allow() {
		metrics.BrokerRequests.WithLabelValues(endpoint, "unreachable").Inc()
		return nil, fmt.Errorf("circuit open for %s: %w", endpoint, ErrUnreachable)
	}

	var bodyBytes []byte
	if payload != nil {
		var err error
		bodyBytes, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request failed: %w", err)
		}
	}
	// One key per logical request; retries reuse it so the broker can
	// discard duplicates.
	idempotencyKey := ""
	if method != http.MethodGet {
		idempotencyKey = uuid.NewString()
	}

	maxAttempts := c.retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := c.send(ctx, method, rawURL, bodyBytes, idempotencyKey)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts-1 {
				c.backoff(attempt)
				continue
			}
			c.breaker.RecordFailure()
			metrics.BrokerRequests.WithLabelValues(endpoint, "unreachable").Inc()
			return nil, fmt.Errorf("%s: %v: %w", endpoint, err, ErrUnreachable)
		}

		if resp.status/100 == 2 {
			c.breaker.RecordSuccess()
			metrics.BrokerRequests.WithLabelValues(endpoint, "ok").Inc()
			return resp.body, nil
		}
		if c.retry.RetryStatus != nil && c.retry.RetryStatus(resp.status) && attempt < maxAttempts-1 {
			logger.Warnf("alpaca %s returned %d, retrying (attempt %d/%d)", endpoint, resp.status, attempt+1, maxAttempts)
			c.backoff(attempt)
			continue
		}
		if resp.status == 429 || resp.status >= 500 {
			c.breaker.RecordFailure()
		} else {
			c.breaker.RecordSuccess()
		}
		metrics.BrokerRequests.WithLabelValues(endpoint, "broker_error").Inc()
		return nil, &BrokerError{Status: resp.status, Body: string(resp.body)}
	}
	return nil, fmt.Errorf("%s: %w", endpoint, lastErr)
}

type response struct {
	status int
	body   []byte
}

func (c *Client) send(ctx context.Context, method, rawURL string, body []byte, idempotencyKey string) (*response, error) {
	var reader io.Reader
	if method != http.MethodGet && method != http.MethodDelete {
		if body == nil {
			body = []byte("{}")
		}
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("APCA-API-KEY-ID", c.keyID)
	req.Header.Set("APCA-API-SECRET-KEY", c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	return &response{status: resp.StatusCode, body: data}, nil
}

func (c *Client) backoff(attempt int) {
	metrics.BrokerRetries.Inc()
	if c.retry.Backoff == nil {
		return
	}
	if d := c.retry.Backoff(attempt); d > 0 {
		c.sleep(d)
	}
}
