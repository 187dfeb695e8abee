package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/quantumalpha/replicator/trade"
)

const (
	defaultTimeout     = 15 * time.Second
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
)

// HTTPClient is the production venue client. Calls are wrapped in bounded
// retry with exponential backoff for transient failures only.
type HTTPClient struct {
	baseURL     string
	httpClient  *http.Client
	logger      *zap.Logger
	maxAttempts int
	baseDelay   time.Duration
}

// HTTPOption tweaks an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) { c.httpClient.Timeout = d }
}

// WithRetry overrides the retry policy.
func WithRetry(attempts int, baseDelay time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		if attempts > 0 {
			c.maxAttempts = attempts
		}
		if baseDelay > 0 {
			c.baseDelay = baseDelay
		}
	}
}

// NewHTTPClient creates a venue client for the given API base URL.
func NewHTTPClient(baseURL string, logger *zap.Logger, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// tradesResponse tolerates the venue wrapping the trade list in either
// "trades" or "data".
type tradesResponse struct {
	Trades []map[string]any `json:"trades"`
	Data   []map[string]any `json:"data"`
}

// FetchTrades returns the account's trade book, normalized.
func (c *HTTPClient) FetchTrades(ctx context.Context, accountID string, creds Credentials) ([]trade.Trade, error) {
	u := fmt.Sprintf("%s/accounts/%s/trades", c.baseURL, accountID)

	body, err := c.do(ctx, http.MethodGet, u, creds, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch trades for %s: %w", accountID, err)
	}

	var resp tradesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		// Some venues return a bare array.
		var bare []map[string]any
		if err2 := json.Unmarshal(body, &bare); err2 != nil {
			return nil, fmt.Errorf("decode trades response: %w", err)
		}
		resp.Trades = bare
	}

	raws := resp.Trades
	if len(raws) == 0 {
		raws = resp.Data
	}

	trades := make([]trade.Trade, 0, len(raws))
	for _, raw := range raws {
		t, err := trade.Normalize(raw, accountID)
		if err != nil {
			c.logger.Warn("skipping malformed trade payload",
				zap.String("account", accountID), zap.Error(err))
			continue
		}
		trades = append(trades, t)
	}
	return trades, nil
}

type placeOrderRequest struct {
	Symbol          string  `json:"symbol"`
	TransactionType string  `json:"transactionType"`
	Quantity        int64   `json:"quantity"`
	OrderType       string  `json:"orderType"`
	Price           float64 `json:"price"`
	ClientOrderID   string  `json:"clientOrderId"`
}

// placeOrderResponse tolerates the three order-id spellings seen in the
// wild. Extraction order: orderId, order_id, id.
type placeOrderResponse struct {
	OrderID      string `json:"orderId"`
	OrderIDSnake string `json:"order_id"`
	ID           string `json:"id"`
}

func (r placeOrderResponse) orderID() string {
	switch {
	case r.OrderID != "":
		return r.OrderID
	case r.OrderIDSnake != "":
		return r.OrderIDSnake
	default:
		return r.ID
	}
}

// PlaceOrder submits an order for the account and returns the venue order id.
func (c *HTTPClient) PlaceOrder(ctx context.Context, accountID string, creds Credentials, ord Order) (Placement, error) {
	u := fmt.Sprintf("%s/accounts/%s/orders", c.baseURL, accountID)

	orderType := ord.OrderType
	if orderType == "" {
		orderType = "MARKET"
	}

	payload, err := json.Marshal(placeOrderRequest{
		Symbol:          ord.Symbol,
		TransactionType: string(ord.Side),
		Quantity:        ord.Quantity,
		OrderType:       orderType,
		Price:           ord.Price,
		ClientOrderID:   ord.ClientOrderID,
	})
	if err != nil {
		return Placement{}, fmt.Errorf("marshal order: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, u, creds, payload)
	if err != nil {
		return Placement{}, fmt.Errorf("place order for %s: %w", accountID, err)
	}

	var resp placeOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Placement{}, fmt.Errorf("decode order response: %w", err)
	}
	orderID := resp.orderID()
	if orderID == "" {
		return Placement{}, ErrNoOrderID
	}
	return Placement{OrderID: orderID}, nil
}

// CancelOrder asks the venue to cancel a previously placed order.
func (c *HTTPClient) CancelOrder(ctx context.Context, orderID string, creds Credentials) error {
	u := fmt.Sprintf("%s/orders/%s/cancel", c.baseURL, orderID)

	if _, err := c.do(ctx, http.MethodPost, u, creds, nil); err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return nil
}

// do performs one HTTP call with bounded retry. Attempts double the delay
// each time (base 500ms); only transient errors are retried, a 4xx fails
// immediately.
func (c *HTTPClient) do(ctx context.Context, method, url string, creds Credentials, payload []byte) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.baseDelay << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		body, err := c.once(ctx, method, url, creds, payload)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, lastErr
		}
		if !Transient(err) {
			return nil, lastErr
		}
		c.logger.Warn("venue call failed, retrying",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return nil, lastErr
}

func (c *HTTPClient) once(ctx context.Context, method, url string, creds Credentials, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	// Session token takes precedence over key/client-id headers.
	if creds.SessionToken != "" {
		req.Header.Set("Authorization", "Bearer "+creds.SessionToken)
	} else {
		req.Header.Set("x-api-key", creds.APIKey)
		req.Header.Set("x-client-id", creds.ClientID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
