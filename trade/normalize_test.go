package trade

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeFieldPrecedence(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"tradeId":    "VT-42",
		"instrument": "RELIANCE",
		"buySell":    "Sell",
		"qty":        float64(100),
		"rate":       2850.50,
		"time":       "2024-07-30T10:30:05Z",
	}

	tr, err := Normalize(raw, "MASTER-001")
	assert.NoError(t, err)
	assert.Equal(t, "VT-42", tr.ID)
	assert.Equal(t, "MASTER-001", tr.Account)
	assert.Equal(t, "RELIANCE", tr.Symbol)
	assert.Equal(t, Sell, tr.Side)
	assert.Equal(t, int64(100), tr.Quantity)
	assert.InDelta(t, 2850.50, tr.Price, 1e-9)
	assert.Equal(t, time.Date(2024, 7, 30, 10, 30, 5, 0, time.UTC), tr.Timestamp)
}

func TestNormalizePrimaryNamesWin(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"id":      "T1",
		"tradeId": "ignored",
		"symbol":  "TCS",
		"scrip":   "ignored",
		"side":    "BUY",
		"qty":     "50", // numeric string
		"price":   "3900.00",
	}

	tr, err := Normalize(raw, "acct")
	assert.NoError(t, err)
	assert.Equal(t, "T1", tr.ID)
	assert.Equal(t, "TCS", tr.Symbol)
	assert.Equal(t, Buy, tr.Side)
	assert.Equal(t, int64(50), tr.Quantity)
	assert.InDelta(t, 3900.0, tr.Price, 1e-9)
}

func TestNormalizeSynthesizesMissingID(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"symbol":   "INFY",
		"side":     "Buy",
		"quantity": float64(200),
		"price":    1650.25,
		"time":     "2024-07-30T10:35:40Z",
	}

	tr, err := Normalize(raw, "acct")
	assert.NoError(t, err)
	assert.NotEmpty(t, tr.ID)

	// Same payload yields the same synthesized id.
	tr2, err := Normalize(raw, "acct")
	assert.NoError(t, err)
	assert.Equal(t, tr.ID, tr2.ID)
}

func TestNormalizeRejectsBadPayloads(t *testing.T) {
	t.Parallel()

	_, err := Normalize(nil, "acct")
	assert.Error(t, err)

	_, err = Normalize(map[string]any{"quantity": float64(10)}, "acct")
	assert.Error(t, err, "missing symbol")

	_, err = Normalize(map[string]any{"symbol": "X"}, "acct")
	assert.Error(t, err, "missing quantity")

	_, err = Normalize(map[string]any{"symbol": "X", "quantity": float64(0)}, "acct")
	assert.Error(t, err, "zero quantity")
}

func TestParseSide(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Sell, ParseSide("SELL"))
	assert.Equal(t, Sell, ParseSide("sell"))
	assert.Equal(t, Sell, ParseSide(" S "))
	assert.Equal(t, Buy, ParseSide("BUY"))
	assert.Equal(t, Buy, ParseSide("anything-else"))
}

func TestTradeValidate(t *testing.T) {
	t.Parallel()

	good := Trade{ID: "T1", Symbol: "RELIANCE", Side: Buy, Quantity: 100, Price: 2850.50}
	assert.NoError(t, good.Validate())

	bad := good
	bad.Quantity = 0
	assert.Error(t, bad.Validate())

	bad = good
	bad.Side = "HOLD"
	assert.Error(t, bad.Validate())

	bad = good
	bad.Price = -1
	assert.Error(t, bad.Validate())
}

func TestDedupKeyPrefersVendorID(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 7, 30, 10, 30, 5, 0, time.UTC)
	tr := Trade{ID: "T001", Symbol: "RELIANCE", Side: Buy, Quantity: 100, Price: 2850.50, Timestamp: ts}
	assert.Equal(t, "T001", tr.DedupKey())

	tr.ID = ""
	assert.Equal(t, SynthesizeID(tr), tr.DedupKey())
	assert.Contains(t, tr.DedupKey(), "RELIANCE")
}
