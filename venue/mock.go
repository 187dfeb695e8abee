package venue

import (
	"context"
	"fmt"
	"sync"

	"github.com/quantumalpha/replicator/trade"
)

// Mock is an in-memory Client for tests and dry runs. Behavior is
// programmable per account/order via the error maps.
type Mock struct {
	mu sync.Mutex

	// TradesByAccount is returned by FetchTrades.
	TradesByAccount map[string][]trade.Trade
	// FetchErr, PlaceErr and CancelErr force failures for specific accounts
	// or orders.
	FetchErr  map[string]error
	PlaceErr  map[string]error
	CancelErr map[string]error

	// Placed and Cancelled record every successful call in order.
	Placed    []PlacedOrder
	Cancelled []string

	seq int
}

// PlacedOrder is one recorded PlaceOrder call.
type PlacedOrder struct {
	AccountID string
	Order     Order
	OrderID   string
}

// NewMock returns an empty Mock.
func NewMock() *Mock {
	return &Mock{
		TradesByAccount: make(map[string][]trade.Trade),
		FetchErr:        make(map[string]error),
		PlaceErr:        make(map[string]error),
		CancelErr:       make(map[string]error),
	}
}

func (m *Mock) FetchTrades(_ context.Context, accountID string, _ Credentials) ([]trade.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FetchErr[accountID]; err != nil {
		return nil, err
	}
	out := make([]trade.Trade, len(m.TradesByAccount[accountID]))
	copy(out, m.TradesByAccount[accountID])
	return out, nil
}

func (m *Mock) PlaceOrder(_ context.Context, accountID string, _ Credentials, ord Order) (Placement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.PlaceErr[accountID]; err != nil {
		return Placement{}, err
	}
	m.seq++
	orderID := fmt.Sprintf("V-%s-%d", accountID, m.seq)
	m.Placed = append(m.Placed, PlacedOrder{AccountID: accountID, Order: ord, OrderID: orderID})
	return Placement{OrderID: orderID}, nil
}

func (m *Mock) CancelOrder(_ context.Context, orderID string, _ Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.CancelErr[orderID]; err != nil {
		return err
	}
	m.Cancelled = append(m.Cancelled, orderID)
	return nil
}

// PlacedFor returns the orders placed on one account.
func (m *Mock) PlacedFor(accountID string) []PlacedOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PlacedOrder
	for _, p := range m.Placed {
		if p.AccountID == accountID {
			out = append(out, p)
		}
	}
	return out
}
