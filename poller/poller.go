// Package poller pulls trade books from the venue for every known account
// and merges them into the trade store.
package poller

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quantumalpha/replicator/follower"
	"github.com/quantumalpha/replicator/ledger"
	"github.com/quantumalpha/replicator/notify"
	"github.com/quantumalpha/replicator/venue"
)

const defaultWorkers = 4

// Poller fetches, deduplicates, and persists fills, then pushes the newly
// accepted ones to the live notifier.
type Poller struct {
	accounts follower.Store
	venue    venue.Client
	store    *ledger.Store
	notifier *notify.Notifier
	logger   *zap.Logger
	workers  int
}

// New creates a Poller. workers bounds the per-account fan-out; <= 0 uses
// the default.
func New(accounts follower.Store, vc venue.Client, store *ledger.Store, notifier *notify.Notifier, logger *zap.Logger, workers int) *Poller {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Poller{
		accounts: accounts,
		venue:    vc,
		store:    store,
		notifier: notifier,
		logger:   logger,
		workers:  workers,
	}
}

// Result summarizes one polling cycle.
type Result struct {
	Accounts  int `json:"accounts"`
	NewTrades int `json:"new_trades"`
	Failures  int `json:"failures"`
}

// Poll runs one cycle over every account with stored credentials. The
// master account is polled first so auto-replication sees its fills
// promptly; the remaining accounts are fetched by a bounded worker pool.
// Per-account failures are logged and counted, never fatal to the cycle.
func (p *Poller) Poll(ctx context.Context) (Result, error) {
	accounts, err := p.accounts.ListAccounts(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list accounts: %w", err)
	}
	masterID, err := p.accounts.MasterAccountID(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("master account: %w", err)
	}

	res := Result{Accounts: len(accounts)}
	var rest []follower.Account

	for _, acc := range accounts {
		if acc.ID == masterID {
			n, err := p.pollAccount(ctx, acc, true)
			if err != nil {
				p.logger.Error("polling master account failed",
					zap.String("account", acc.ID), zap.Error(err))
				res.Failures++
			}
			res.NewTrades += n
			continue
		}
		rest = append(rest, acc)
	}

	type outcome struct {
		newTrades int
		failed    bool
	}
	outcomes := make([]outcome, len(rest))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, acc := range rest {
		i, acc := i, acc
		g.Go(func() error {
			n, err := p.pollAccount(gctx, acc, false)
			if err != nil {
				p.logger.Error("polling account failed",
					zap.String("account", acc.ID), zap.Error(err))
				outcomes[i] = outcome{failed: true}
				return nil // isolation: one account never aborts the rest
			}
			outcomes[i] = outcome{newTrades: n}
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		res.NewTrades += o.newTrades
		if o.failed {
			res.Failures++
		}
	}

	p.logger.Info("poll cycle complete",
		zap.Int("accounts", res.Accounts),
		zap.Int("new_trades", res.NewTrades),
		zap.Int("failures", res.Failures))
	return res, nil
}

func (p *Poller) pollAccount(ctx context.Context, acc follower.Account, isMaster bool) (int, error) {
	trades, err := p.venue.FetchTrades(ctx, acc.ID, acc.Credentials)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}

	added, err := p.store.AppendTrades(ctx, acc.ID, trades)
	if err != nil {
		return 0, fmt.Errorf("append: %w", err)
	}

	for _, t := range added {
		p.notifier.Publish(notify.Event{Trade: t, Account: acc.ID, Master: isMaster})
	}
	return len(added), nil
}
