// Package replicate fans master trades out to follower accounts under each
// follower's risk rules, and keeps the order mapping ledger as the record
// of what happened.
package replicate

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quantumalpha/replicator/follower"
	"github.com/quantumalpha/replicator/ledger"
	"github.com/quantumalpha/replicator/pkg/id"
	"github.com/quantumalpha/replicator/risk"
	"github.com/quantumalpha/replicator/trade"
	"github.com/quantumalpha/replicator/venue"
)

// ResultStatus classifies one follower's outcome.
type ResultStatus string

const (
	Success ResultStatus = "SUCCESS"
	Skipped ResultStatus = "SKIPPED"
	Failed  ResultStatus = "FAILED"
)

// Result is one follower's outcome for one fan-out. A SKIPPED or FAILED
// result always carries a reason.
type Result struct {
	FollowerID       string       `json:"follower_id"`
	Status           ResultStatus `json:"status"`
	Reason           string       `json:"reason,omitempty"`
	FollowerOrderID  string       `json:"follower_order_id,omitempty"`
	ExecutedQuantity int64        `json:"executed_quantity,omitempty"`
	MappingID        string       `json:"order_mapping_id,omitempty"`
}

// Summary aggregates results into the counts the audit log records.
type Summary struct {
	Total      int `json:"total_followers"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// Summarize counts results by status.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case Success:
			s.Successful++
		case Failed:
			s.Failed++
		case Skipped:
			s.Skipped++
		}
	}
	return s
}

const defaultWorkers = 4

// Engine orchestrates replication, exit-sync, and modify-sync.
type Engine struct {
	followers follower.Store
	venue     venue.Client
	ledger    *ledger.Store
	logger    *zap.Logger
	workers   int
}

// New creates an Engine. workers bounds the per-follower fan-out; <= 0
// uses the default.
func New(followers follower.Store, vc venue.Client, store *ledger.Store, logger *zap.Logger, workers int) *Engine {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Engine{
		followers: followers,
		venue:     vc,
		ledger:    store,
		logger:    logger,
		workers:   workers,
	}
}

// Replicate fans one master trade out to the active followers, or to the
// subset named by followerIDs when non-empty. Each follower is processed
// independently by a bounded worker pool: one follower's failure never
// blocks another's order. One PLACE audit row is written for the fan-out.
func (e *Engine) Replicate(ctx context.Context, t trade.Trade, followerIDs []string) ([]Result, error) {
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid master trade: %w", err)
	}
	t = t.WithID()

	followers, err := e.followers.ListActiveFollowers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active followers: %w", err)
	}
	if len(followerIDs) > 0 {
		followers = selectFollowers(followers, followerIDs)
	}

	results := make([]Result, len(followers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, f := range followers {
		i, f := i, f
		g.Go(func() error {
			results[i] = e.replicateOne(gctx, t, f)
			return nil
		})
	}
	_ = g.Wait()

	sum := Summarize(results)
	if _, err := e.ledger.RecordEvent(ctx, ledger.TradeEvent{
		MasterOrderID: t.ID,
		EventType:     ledger.EventPlace,
		Symbol:        t.Symbol,
		Side:          string(t.Side),
		Quantity:      t.Quantity,
		Price:         t.Price,
		Total:         sum.Total,
		Successful:    sum.Successful,
		Failed:        sum.Failed,
		Skipped:       sum.Skipped,
	}); err != nil {
		e.logger.Error("recording PLACE audit event failed",
			zap.String("master_order_id", t.ID), zap.Error(err))
	}

	e.logger.Info("replication fan-out complete",
		zap.String("master_order_id", t.ID),
		zap.Int("total", sum.Total),
		zap.Int("successful", sum.Successful),
		zap.Int("failed", sum.Failed),
		zap.Int("skipped", sum.Skipped))
	return results, nil
}

// replicateOne runs the whole pipeline for one follower: risk check,
// PENDING checkpoint, venue placement, final transition.
func (e *Engine) replicateOne(ctx context.Context, t trade.Trade, f follower.Account) Result {
	decision := risk.Evaluate(t, f.Risk)
	if !decision.Eligible {
		return Result{FollowerID: f.ID, Status: Skipped, Reason: decision.Reason}
	}

	// The PENDING row is the idempotence checkpoint: creating it claims
	// the (master order, follower) pair.
	mappingID := id.New()
	err := e.ledger.CreateMapping(ctx, ledger.OrderMapping{
		ID:                mappingID,
		MasterOrderID:     t.ID,
		FollowerID:        f.ID,
		Symbol:            t.Symbol,
		Side:              string(t.Side),
		RequestedQuantity: decision.Quantity,
	})
	if errors.Is(err, ledger.ErrMappingExists) {
		return Result{FollowerID: f.ID, Status: Skipped, Reason: "already replicated"}
	}
	if err != nil {
		return Result{FollowerID: f.ID, Status: Failed, Reason: fmt.Sprintf("ledger: %v", err)}
	}

	placement, err := e.venue.PlaceOrder(ctx, f.ID, f.Credentials, venue.Order{
		ClientOrderID: t.ID,
		Symbol:        t.Symbol,
		Side:          t.Side,
		Quantity:      decision.Quantity,
		Price:         t.Price,
		OrderType:     t.OrderType,
	})
	if err != nil {
		// Not retried here: a blind retry risks a duplicate live order.
		// An operator re-triggers replication after investigating.
		if terr := e.ledger.Transition(ctx, mappingID, ledger.StatusFailed,
			ledger.TransitionFields{ErrorMessage: err.Error()}); terr != nil {
			e.logger.Error("marking mapping FAILED failed",
				zap.String("mapping_id", mappingID), zap.Error(terr))
		}
		return Result{
			FollowerID: f.ID,
			Status:     Failed,
			Reason:     fmt.Sprintf("order placement failed: %v", err),
			MappingID:  mappingID,
		}
	}

	if err := e.ledger.Transition(ctx, mappingID, ledger.StatusActive, ledger.TransitionFields{
		FollowerOrderID:  placement.OrderID,
		ExecutedQuantity: decision.Quantity,
	}); err != nil {
		// The live order exists but the ledger could not record it; surface
		// loudly rather than report success.
		e.logger.Error("order placed but ACTIVE transition failed",
			zap.String("mapping_id", mappingID),
			zap.String("follower_order_id", placement.OrderID),
			zap.Error(err))
		return Result{
			FollowerID: f.ID,
			Status:     Failed,
			Reason:     fmt.Sprintf("order %s placed but not recorded: %v", placement.OrderID, err),
			MappingID:  mappingID,
		}
	}

	res := Result{
		FollowerID:       f.ID,
		Status:           Success,
		FollowerOrderID:  placement.OrderID,
		ExecutedQuantity: decision.Quantity,
		MappingID:        mappingID,
	}
	if decision.Reason != "" {
		res.Reason = decision.Reason // e.g. the max-quantity clamp note
	}
	return res
}

func selectFollowers(all []follower.Account, ids []string) []follower.Account {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := all[:0]
	for _, f := range all {
		if want[f.ID] {
			out = append(out, f)
		}
	}
	return out
}
