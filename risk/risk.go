// Package risk decides whether and at what size a master trade is
// replicated to a follower. Evaluate is a pure function so every rule is
// testable without a venue or a database.
package risk

import (
	"fmt"
	"math"
	"strings"

	"github.com/quantumalpha/replicator/trade"
)

// Config is one follower's risk configuration. It is owned by the account
// management boundary; the engine only reads it.
type Config struct {
	LotMultiplier float64 `json:"lot_multiplier" yaml:"lot_multiplier"`
	MaxQuantity   int64   `json:"max_quantity" yaml:"max_quantity"`

	// Optional caps. Zero means unset.
	MaxOrderValue float64 `json:"max_order_value,omitempty" yaml:"max_order_value,omitempty"`
	MaxDailyLoss  float64 `json:"max_daily_loss,omitempty" yaml:"max_daily_loss,omitempty"` // informational only

	// Allow-lists. Empty means unrestricted.
	AllowedInstruments  []string `json:"allowed_instruments,omitempty" yaml:"allowed_instruments,omitempty"`
	AllowedProductTypes []string `json:"allowed_product_types,omitempty" yaml:"allowed_product_types,omitempty"`
	AllowedOrderTypes   []string `json:"allowed_order_types,omitempty" yaml:"allowed_order_types,omitempty"`

	// Enabled is the follower's kill-switch.
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// Decision is the outcome of evaluating one trade against one config.
type Decision struct {
	Eligible bool
	Quantity int64
	// Reason is set for every rejection and for the max-quantity clamp.
	Reason string
}

// Evaluate applies the follower's risk rules to a master trade. Checks
// short-circuit in a fixed order: kill-switch, instrument allow-list, order
// type, product type, order value cap, then quantity scaling.
//
// Exceeding MaxQuantity clamps (still eligible); a multiplier that rounds
// the quantity to zero rejects. The asymmetry is deliberate: a zero result
// is a configuration problem worth surfacing, a capped one is routine.
func Evaluate(t trade.Trade, cfg Config) Decision {
	if !cfg.Enabled {
		return Decision{Reason: "account is disabled"}
	}

	if !allowed(t.Symbol, cfg.AllowedInstruments) {
		return Decision{Reason: fmt.Sprintf("symbol %s not in allowed instruments", t.Symbol)}
	}

	if t.OrderType != "" && !allowed(t.OrderType, cfg.AllowedOrderTypes) {
		return Decision{Reason: fmt.Sprintf("order type %s not allowed", t.OrderType)}
	}

	if t.ProductType != "" && !allowed(t.ProductType, cfg.AllowedProductTypes) {
		return Decision{Reason: fmt.Sprintf("product type %s not allowed", t.ProductType)}
	}

	if t.Price > 0 && cfg.MaxOrderValue > 0 {
		value := float64(t.Quantity) * t.Price
		if value > cfg.MaxOrderValue {
			return Decision{Reason: fmt.Sprintf("order value %.2f exceeds max %.2f", value, cfg.MaxOrderValue)}
		}
	}

	qty := int64(math.Floor(float64(t.Quantity) * cfg.LotMultiplier))
	if qty == 0 {
		return Decision{Reason: fmt.Sprintf("quantity becomes 0 after multiplier %g", cfg.LotMultiplier)}
	}
	if cfg.MaxQuantity > 0 && qty > cfg.MaxQuantity {
		return Decision{
			Eligible: true,
			Quantity: cfg.MaxQuantity,
			Reason:   fmt.Sprintf("capped to max quantity %d", cfg.MaxQuantity),
		}
	}

	return Decision{Eligible: true, Quantity: qty}
}

// allowed reports membership in an allow-list; an empty list allows all.
// Comparison is case-insensitive because venues disagree on casing.
func allowed(value string, list []string) bool {
	if len(list) == 0 {
		return true
	}
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}
