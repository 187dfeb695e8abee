package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quantumalpha/replicator/follower"
	"github.com/quantumalpha/replicator/ledger"
	"github.com/quantumalpha/replicator/notify"
	"github.com/quantumalpha/replicator/poller"
	"github.com/quantumalpha/replicator/replicate"
	"github.com/quantumalpha/replicator/risk"
	"github.com/quantumalpha/replicator/trade"
	"github.com/quantumalpha/replicator/venue"
)

type fixture struct {
	server    *Server
	followers *follower.Memory
	venue     *venue.Mock
	ledger    *ledger.Store
	notifier  *notify.Notifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := ledger.Open(filepath.Join(t.TempDir(), "replicator.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	followers := follower.NewMemory()
	mock := venue.NewMock()
	notifier := notify.New(zap.NewNop())
	engine := replicate.New(followers, mock, store, zap.NewNop(), 2)
	p := poller.New(followers, mock, store, notifier, zap.NewNop(), 2)

	return &fixture{
		server:    NewServer(engine, p, store, notifier, zap.NewNop()),
		followers: followers,
		venue:     mock,
		ledger:    store,
		notifier:  notifier,
	}
}

func (f *fixture) addFollower(id string, cfg risk.Config) {
	f.followers.Add(follower.Account{
		ID: id, Name: id, Status: follower.StatusActive, Consent: true, Risk: cfg,
	})
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.server.R.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReplicateEndpoint(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addFollower("f1", risk.Config{LotMultiplier: 0.5, Enabled: true})

	// Vendor field spellings are accepted and normalized.
	w := f.do(t, http.MethodPost, "/api/replicate", `{
		"trade": {
			"tradeId": "M-9",
			"instrument": "RELIANCE",
			"transactionType": "B",
			"qty": 100,
			"rate": 2500
		}
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "M-9", body["master_order_id"])
	summary := body["summary"].(map[string]any)
	assert.EqualValues(t, 1, summary["total_followers"])
	assert.EqualValues(t, 1, summary["successful"])

	placed := f.venue.PlacedFor("f1")
	require.Len(t, placed, 1)
	assert.Equal(t, int64(50), placed[0].Order.Quantity)
}

func TestReplicateEndpointSelectedFollowers(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addFollower("f1", risk.Config{LotMultiplier: 1, Enabled: true})
	f.addFollower("f2", risk.Config{LotMultiplier: 1, Enabled: true})

	w := f.do(t, http.MethodPost, "/api/replicate", `{
		"trade": {"id": "M-7", "symbol": "TCS", "side": "BUY", "quantity": 10, "price": 3100},
		"follower_ids": ["f2"]
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Empty(t, f.venue.PlacedFor("f1"))
	assert.Len(t, f.venue.PlacedFor("f2"), 1)
}

func TestReplicateEndpointBadBody(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/replicate", `{"trade": {}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/replicate", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// A payload without a usable quantity is a validation error, not a 500.
	w = f.do(t, http.MethodPost, "/api/replicate", `{"trade": {"symbol": "X", "side": "BUY"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExitEndpoint(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addFollower("f1", risk.Config{LotMultiplier: 1, Enabled: true})

	w := f.do(t, http.MethodPost, "/api/replicate", `{
		"trade": {"id": "M-5", "symbol": "INFY", "side": "SELL", "quantity": 20, "price": 1500}
	}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/exit", `{"master_order_id": "M-5"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	summary := decode(t, w)["summary"].(map[string]any)
	assert.EqualValues(t, 1, summary["successful"])
	assert.Len(t, f.venue.Cancelled, 1)

	w = f.do(t, http.MethodPost, "/api/exit", `{"master_order_id": ""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestModifyEndpoint(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addFollower("f1", risk.Config{LotMultiplier: 1, Enabled: true})

	w := f.do(t, http.MethodPost, "/api/replicate", `{
		"trade": {"id": "M-3", "symbol": "INFY", "side": "BUY", "quantity": 20, "price": 1500}
	}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/modify", `{"master_order_id": "M-3", "quantity": 40, "price": 1510}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, http.MethodGet, "/api/events?master_order_id=M-3&type=MODIFY", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 1, body["total"])
}

func TestPollEndpoint(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.followers.Add(follower.Account{ID: "master", Status: follower.StatusActive, Consent: true})
	f.followers.SetMaster("master")
	f.venue.TradesByAccount["master"] = []trade.Trade{{
		ID: "T-1", Symbol: "SBIN", Side: trade.Buy, Quantity: 5, Price: 600,
		Timestamp: time.Now().UTC(),
	}}

	w := f.do(t, http.MethodPost, "/api/poll", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.EqualValues(t, 1, body["new_trades"])

	w = f.do(t, http.MethodGet, "/api/trades?account=master", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["total"])
}

func TestTradesQueryAndPurge(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.AppendTrades(ctx, "A", []trade.Trade{
		{ID: "T-1", Symbol: "X", Side: trade.Buy, Quantity: 1, Price: 1, Timestamp: time.Now().UTC()},
		{ID: "T-2", Symbol: "Y", Side: trade.Sell, Quantity: 2, Price: 2, Timestamp: time.Now().UTC()},
	})
	require.NoError(t, err)

	w := f.do(t, http.MethodGet, "/api/trades?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 2, body["total"])
	assert.Len(t, body["trades"], 1)

	w = f.do(t, http.MethodDelete, "/api/trades?account=A", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["deleted"])

	w = f.do(t, http.MethodGet, "/api/trades", "")
	assert.EqualValues(t, 0, decode(t, w)["total"])
}

func TestMappingsQuery(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addFollower("f1", risk.Config{LotMultiplier: 1, Enabled: true})
	f.addFollower("f2", risk.Config{LotMultiplier: 1, Enabled: true})

	w := f.do(t, http.MethodPost, "/api/replicate", `{
		"trade": {"id": "M-2", "symbol": "INFY", "side": "BUY", "quantity": 20, "price": 1500}
	}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/mappings?master_order_id=M-2&follower_id=f1", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 1, body["total"])

	w = f.do(t, http.MethodGet, "/api/mappings?status=ACTIVE", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["total"])

	w = f.do(t, http.MethodGet, "/api/mappings?status=LIMBO", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStreamSnapshotHoldsLatestTrades(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	trades := make([]trade.Trade, 0, snapshotLimit+10)
	for i := 1; i <= snapshotLimit+10; i++ {
		trades = append(trades, trade.Trade{
			ID: fmt.Sprintf("T-%03d", i), Symbol: "SBIN", Side: trade.Buy,
			Quantity: int64(i), Price: 600, Timestamp: time.Now().UTC(),
		})
	}
	_, err := f.ledger.AppendTrades(ctx, "master", trades)
	require.NoError(t, err)

	srv := httptest.NewServer(f.server.R)
	defer srv.Close()

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, srv.URL+"/api/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	var data string
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if line == "" {
			break
		}
		if v, ok := strings.CutPrefix(line, "data: "); ok {
			data = v
		}
	}

	var snapshot struct {
		Trades []trade.Trade `json:"trades"`
	}
	require.NoError(t, json.Unmarshal([]byte(data), &snapshot))
	require.Len(t, snapshot.Trades, snapshotLimit)

	// The snapshot is the latest fills in chronological order; the oldest
	// ten fell off the window.
	assert.Equal(t, "T-011", snapshot.Trades[0].ID)
	assert.Equal(t, fmt.Sprintf("T-%03d", snapshotLimit+10), snapshot.Trades[snapshotLimit-1].ID)
	for _, tr := range snapshot.Trades {
		assert.NotEqual(t, "T-001", tr.ID)
	}
}

func TestStreamSendsSnapshotThenLiveEvents(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.AppendTrades(ctx, "master", []trade.Trade{{
		ID: "T-1", Symbol: "SBIN", Side: trade.Buy, Quantity: 5, Price: 600,
		Timestamp: time.Now().UTC(),
	}})
	require.NoError(t, err)

	srv := httptest.NewServer(f.server.R)
	defer srv.Close()

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, srv.URL+"/api/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var event, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			if line == "" {
				return event, data
			}
			if v, ok := strings.CutPrefix(line, "event: "); ok {
				event = v
			}
			if v, ok := strings.CutPrefix(line, "data: "); ok {
				data = v
			}
		}
	}

	event, data := readEvent()
	assert.Equal(t, "snapshot", event)
	assert.Contains(t, data, "T-1")

	// Wait for the subscriber to register before publishing.
	require.Eventually(t, func() bool { return f.notifier.Subscribers() == 1 },
		time.Second, 10*time.Millisecond)
	f.notifier.Publish(notify.Event{
		Trade:   trade.Trade{ID: "T-2", Symbol: "INFY", Side: trade.Sell, Quantity: 1, Timestamp: time.Now().UTC()},
		Account: "master",
		Master:  true,
	})

	event, data = readEvent()
	assert.Equal(t, "trade", event)
	assert.Contains(t, data, "T-2")
	assert.Contains(t, data, "is_master")
}
