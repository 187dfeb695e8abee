package trade

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Normalize maps one loosely-typed venue payload onto the canonical Trade
// shape. Venues disagree on field names, so each field is resolved through a
// fixed fallback order:
//
//	id:        id, tradeId, trade_id
//	symbol:    symbol, instrument, scrip, ticker
//	side:      side, buySell, transactionType
//	quantity:  quantity, qty, quantityFilled, filledQty
//	price:     price, rate, fillPrice, avgPrice
//	timestamp: timestamp, time, tradeTime (RFC 3339 or unix millis)
//
// All upstream ambiguity is contained here; everything downstream works with
// the typed Trade only.
func Normalize(raw map[string]any, account string) (Trade, error) {
	if raw == nil {
		return Trade{}, fmt.Errorf("nil payload")
	}

	t := Trade{
		Account:     account,
		ID:          firstString(raw, "id", "tradeId", "trade_id"),
		Symbol:      firstString(raw, "symbol", "instrument", "scrip", "ticker"),
		Exchange:    firstString(raw, "exchange", "exch"),
		Side:        ParseSide(firstString(raw, "side", "buySell", "transactionType")),
		ProductType: firstString(raw, "productType", "product_type", "pCode"),
		OrderType:   firstString(raw, "orderType", "order_type", "type"),
	}

	qty, err := firstInt(raw, "quantity", "qty", "quantityFilled", "filledQty")
	if err != nil {
		return Trade{}, fmt.Errorf("quantity: %w", err)
	}
	t.Quantity = qty

	if price, err := firstFloat(raw, "price", "rate", "fillPrice", "avgPrice"); err == nil {
		t.Price = price
	}

	t.Timestamp = firstTime(raw, "timestamp", "time", "tradeTime")

	if t.Symbol == "" {
		return Trade{}, fmt.Errorf("payload has no symbol")
	}
	if t.Quantity <= 0 {
		return Trade{}, fmt.Errorf("payload has no positive quantity")
	}

	return t.WithID(), nil
}

func firstString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func firstFloat(raw map[string]any, keys ...string) (float64, error) {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			if f, err := toFloat(v); err == nil {
				return f, nil
			}
		}
	}
	return 0, fmt.Errorf("no numeric value for %v", keys)
}

func firstInt(raw map[string]any, keys ...string) (int64, error) {
	f, err := firstFloat(raw, keys...)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

func firstTime(raw map[string]any, keys ...string) time.Time {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		switch tv := v.(type) {
		case string:
			if ts, err := time.Parse(time.RFC3339, tv); err == nil {
				return ts
			}
		default:
			if millis, err := toFloat(v); err == nil && millis > 0 {
				return time.UnixMilli(int64(millis)).UTC()
			}
		}
	}
	return time.Now().UTC()
}

// toFloat converts the scalar types venue JSON decodes into.
func toFloat(val any) (float64, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		if v == "" {
			return 0, fmt.Errorf("empty string")
		}
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", val)
	}
}
