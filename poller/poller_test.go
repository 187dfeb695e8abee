package poller

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quantumalpha/replicator/follower"
	"github.com/quantumalpha/replicator/ledger"
	"github.com/quantumalpha/replicator/notify"
	"github.com/quantumalpha/replicator/trade"
	"github.com/quantumalpha/replicator/venue"
)

func newFixture(t *testing.T) (*follower.Memory, *venue.Mock, *ledger.Store, *notify.Notifier, *Poller) {
	t.Helper()

	store, err := ledger.Open(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	accounts := follower.NewMemory()
	mock := venue.NewMock()
	notifier := notify.New(zap.NewNop())
	p := New(accounts, mock, store, notifier, zap.NewNop(), 2)
	return accounts, mock, store, notifier, p
}

func masterFill(id string) trade.Trade {
	return trade.Trade{
		ID: id, Symbol: "RELIANCE", Side: trade.Buy, Quantity: 100, Price: 2850.50,
		Timestamp: time.Date(2024, 7, 30, 10, 30, 5, 0, time.UTC),
	}
}

func TestPollIngestsAndNotifies(t *testing.T) {
	t.Parallel()

	accounts, mock, store, notifier, p := newFixture(t)
	accounts.Add(follower.Account{ID: "MASTER", Status: "ACTIVE", Consent: true})
	accounts.Add(follower.Account{ID: "F1", Status: "ACTIVE", Consent: true})
	accounts.SetMaster("MASTER")

	mock.TradesByAccount["MASTER"] = []trade.Trade{masterFill("T1"), masterFill("T2")}
	mock.TradesByAccount["F1"] = []trade.Trade{masterFill("T100")}

	sub := notifier.Subscribe(8)
	defer sub.Close()

	res, err := p.Poll(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, res.Accounts)
	assert.Equal(t, 3, res.NewTrades)
	assert.Zero(t, res.Failures)

	// All three land in the store.
	_, total, err := store.ListTrades(context.Background(), ledger.TradeFilter{})
	assert.NoError(t, err)
	assert.Equal(t, 3, total)

	// Master events are tagged as such. Master is polled first, so its
	// events come first.
	ev := <-sub.C
	assert.True(t, ev.Master)
	assert.Equal(t, "MASTER", ev.Account)
}

func TestPollIsIdempotent(t *testing.T) {
	t.Parallel()

	accounts, mock, _, _, p := newFixture(t)
	accounts.Add(follower.Account{ID: "MASTER", Status: "ACTIVE", Consent: true})
	accounts.SetMaster("MASTER")
	mock.TradesByAccount["MASTER"] = []trade.Trade{masterFill("T1")}

	res, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewTrades)

	// Second cycle sees the same trade book: nothing new.
	res, err = p.Poll(context.Background())
	assert.NoError(t, err)
	assert.Zero(t, res.NewTrades)
}

func TestPollAccountFailureIsIsolated(t *testing.T) {
	t.Parallel()

	accounts, mock, store, _, p := newFixture(t)
	accounts.Add(follower.Account{ID: "A", Status: "ACTIVE", Consent: true})
	accounts.Add(follower.Account{ID: "B", Status: "ACTIVE", Consent: true})
	accounts.Add(follower.Account{ID: "C", Status: "ACTIVE", Consent: true})

	mock.TradesByAccount["A"] = []trade.Trade{masterFill("TA")}
	mock.FetchErr["B"] = errors.New("venue down")
	mock.TradesByAccount["C"] = []trade.Trade{masterFill("TC")}

	res, err := p.Poll(context.Background())
	assert.NoError(t, err, "per-account failures never abort the cycle")
	assert.Equal(t, 2, res.NewTrades)
	assert.Equal(t, 1, res.Failures)

	_, totalA, err := store.ListTrades(context.Background(), ledger.TradeFilter{Account: "A"})
	assert.NoError(t, err)
	assert.Equal(t, 1, totalA)
	_, totalC, err := store.ListTrades(context.Background(), ledger.TradeFilter{Account: "C"})
	assert.NoError(t, err)
	assert.Equal(t, 1, totalC)
}

func TestPollNoAccounts(t *testing.T) {
	t.Parallel()

	_, _, _, _, p := newFixture(t)

	res, err := p.Poll(context.Background())
	assert.NoError(t, err)
	assert.Zero(t, res.Accounts)
	assert.Zero(t, res.NewTrades)
}
