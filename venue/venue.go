// Package venue talks to the upstream brokerage API: fetching trade books
// and placing or cancelling orders on behalf of an account.
package venue

import (
	"context"
	"errors"
	"fmt"

	"github.com/quantumalpha/replicator/trade"
)

// Credentials scope a call to one venue account.
type Credentials struct {
	APIKey       string `json:"api_key,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	SessionToken string `json:"session_token,omitempty"`
}

// Order is an order placement request.
type Order struct {
	ClientOrderID string
	Symbol        string
	Side          trade.Side
	Quantity      int64
	Price         float64
	OrderType     string
}

// Placement is the venue's acknowledgment of a placed order.
type Placement struct {
	OrderID string
}

// Client is the venue surface the engine depends on. Implementations must
// honor ctx cancellation; every call is scoped to one account's credentials.
type Client interface {
	FetchTrades(ctx context.Context, accountID string, creds Credentials) ([]trade.Trade, error)
	PlaceOrder(ctx context.Context, accountID string, creds Credentials, ord Order) (Placement, error)
	CancelOrder(ctx context.Context, orderID string, creds Credentials) error
}

// ErrNoOrderID is returned when the venue acknowledges a placement without
// an order identifier; the order cannot be tracked or cancelled later.
var ErrNoOrderID = errors.New("venue returned no order id")

// StatusError is a non-2xx venue response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("venue API error (status %d): %s", e.Code, e.Body)
}

// Transient reports whether the error is worth retrying: network failures
// and 5xx responses are, 4xx validation failures are not.
func Transient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == 429
	}
	// Anything that never reached the venue (DNS, reset, timeout).
	return err != nil
}
