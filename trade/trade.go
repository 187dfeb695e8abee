// Package trade defines the canonical fill record shared by the poller,
// the replication engine, and the persistence layer.
package trade

import (
	"fmt"
	"strings"
	"time"
)

// Side is the direction of a fill.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// ParseSide maps the many upstream spellings ("Buy", "sell", "B") onto a
// canonical Side. Anything that is not recognizably a sell is a buy, which
// matches venue trade-book payloads that omit the side for buys.
func ParseSide(raw string) Side {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SELL", "S":
		return Sell
	default:
		return Buy
	}
}

// Trade is one fill on a venue account. Master trades are immutable once
// ingested; follower fills reuse the same shape.
type Trade struct {
	ID          string    `json:"id"`
	Account     string    `json:"account,omitempty"`
	Symbol      string    `json:"symbol"`
	Exchange    string    `json:"exchange,omitempty"`
	Side        Side      `json:"side"`
	Quantity    int64     `json:"quantity"`
	Price       float64   `json:"price,omitempty"` // zero for market fills not yet priced
	ProductType string    `json:"product_type,omitempty"`
	OrderType   string    `json:"order_type,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Validate reports whether the trade carries the fields replication needs.
func (t Trade) Validate() error {
	if t.Symbol == "" {
		return fmt.Errorf("trade symbol is required")
	}
	if t.Side != Buy && t.Side != Sell {
		return fmt.Errorf("invalid side %q", t.Side)
	}
	if t.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", t.Quantity)
	}
	if t.Price < 0 {
		return fmt.Errorf("price must not be negative, got %f", t.Price)
	}
	return nil
}

// DedupKey returns the key the trade store deduplicates on. The vendor id
// wins when present; otherwise the key is synthesized from the fill fields
// so re-fetching the same trade book never re-ingests a fill.
func (t Trade) DedupKey() string {
	if t.ID != "" {
		return t.ID
	}
	return SynthesizeID(t)
}

// SynthesizeID builds a stable id for fills the venue did not tag.
func SynthesizeID(t Trade) string {
	return fmt.Sprintf("%s-%s-%d-%.4f-%d",
		t.Symbol, t.Side, t.Quantity, t.Price, t.Timestamp.UnixMilli())
}

// WithID returns a copy of the trade with a guaranteed non-empty id.
func (t Trade) WithID() Trade {
	if t.ID == "" {
		t.ID = SynthesizeID(t)
	}
	return t
}
