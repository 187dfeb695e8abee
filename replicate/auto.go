package replicate

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/quantumalpha/replicator/ledger"
	"github.com/quantumalpha/replicator/poller"
	"github.com/quantumalpha/replicator/trade"
)

// AutoReplicator drives hands-free replication: poll every account, then
// replicate any master trade not yet fanned out. A coarse replicated set
// plus a mapping existence check keep each master trade from being fanned
// out twice across restarts.
type AutoReplicator struct {
	engine   *Engine
	poller   *poller.Poller
	logger   *zap.Logger
	interval time.Duration
}

// TickResult reports one auto-replication pass.
type TickResult struct {
	Polled     poller.Result `json:"polled"`
	Considered int           `json:"considered"`
	Replicated int           `json:"replicated"`
	Summaries  []Summary     `json:"summaries,omitempty"`
}

const defaultInterval = 10 * time.Second

// NewAuto creates an AutoReplicator. interval <= 0 uses the default.
func NewAuto(engine *Engine, p *poller.Poller, logger *zap.Logger, interval time.Duration) *AutoReplicator {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &AutoReplicator{engine: engine, poller: p, logger: logger, interval: interval}
}

// Tick runs one poll-then-replicate pass.
func (a *AutoReplicator) Tick(ctx context.Context) (TickResult, error) {
	polled, err := a.poller.Poll(ctx)
	res := TickResult{Polled: polled}
	if err != nil {
		return res, err
	}

	masterID, err := a.engine.followers.MasterAccountID(ctx)
	if err != nil {
		return res, err
	}
	if masterID == "" {
		return res, nil
	}

	masterTrades, _, err := a.engine.ledger.ListTrades(ctx, ledger.TradeFilter{Account: masterID})
	if err != nil {
		return res, err
	}

	for _, t := range masterTrades {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		replicated, err := a.replicateIfNew(ctx, t)
		if err != nil {
			a.logger.Error("auto replication pass failed for trade",
				zap.String("trade_id", t.ID), zap.Error(err))
			continue
		}
		res.Considered++
		if replicated != nil {
			res.Replicated++
			res.Summaries = append(res.Summaries, *replicated)
		}
	}
	return res, nil
}

// replicateIfNew fans out one master trade unless it was handled before.
// The replicated set is only advanced when some follower succeeded or
// failed; a pass where every follower was skipped leaves the trade
// eligible for a later tick (a follower activated afterwards still gets
// the trade, and the per-pair mapping constraint protects the rest).
func (a *AutoReplicator) replicateIfNew(ctx context.Context, t trade.Trade) (*Summary, error) {
	key := t.DedupKey()
	done, err := a.engine.ledger.WasReplicated(ctx, key)
	if err != nil {
		return nil, err
	}
	if done {
		return nil, nil
	}
	hasMappings, err := a.engine.ledger.HasMappings(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	if hasMappings {
		if err := a.engine.ledger.MarkReplicated(ctx, key); err != nil {
			return nil, err
		}
		return nil, nil
	}

	results, err := a.engine.Replicate(ctx, t, nil)
	if err != nil {
		return nil, err
	}
	sum := Summarize(results)
	if sum.Successful > 0 || sum.Failed > 0 {
		if err := a.engine.ledger.MarkReplicated(ctx, key); err != nil {
			return nil, err
		}
	}
	return &sum, nil
}

// Run ticks at the configured interval until ctx is cancelled.
func (a *AutoReplicator) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	a.logger.Info("auto replication loop started", zap.Duration("interval", a.interval))
	for {
		if _, err := a.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("auto replication tick failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			a.logger.Info("auto replication loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
