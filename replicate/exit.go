package replicate

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quantumalpha/replicator/ledger"
)

// Exit cancels the follower orders mapped to one master order. The local
// ledger is authoritative: every non-terminal mapping is marked CANCELLED
// even when the venue cancel fails, and the venue failure is reported in
// the result reason so an operator can reconcile.
func (e *Engine) Exit(ctx context.Context, masterOrderID string) ([]Result, error) {
	mappings, _, err := e.ledger.ListMappings(ctx, ledger.MappingFilter{MasterOrderID: masterOrderID})
	if err != nil {
		return nil, fmt.Errorf("load mappings for %s: %w", masterOrderID, err)
	}

	results := make([]Result, len(mappings))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, m := range mappings {
		i, m := i, m
		g.Go(func() error {
			results[i] = e.exitOne(gctx, m)
			return nil
		})
	}
	_ = g.Wait()

	sum := Summarize(results)
	if _, err := e.ledger.RecordEvent(ctx, ledger.TradeEvent{
		MasterOrderID: masterOrderID,
		EventType:     ledger.EventExit,
		Total:         sum.Total,
		Successful:    sum.Successful,
		Failed:        sum.Failed,
		Skipped:       sum.Skipped,
	}); err != nil {
		e.logger.Error("recording EXIT audit event failed",
			zap.String("master_order_id", masterOrderID), zap.Error(err))
	}
	return results, nil
}

func (e *Engine) exitOne(ctx context.Context, m ledger.OrderMapping) Result {
	if m.Status == ledger.StatusCancelled {
		return Result{FollowerID: m.FollowerID, Status: Skipped, Reason: "already cancelled", MappingID: m.ID}
	}
	if m.Status.Terminal() {
		return Result{FollowerID: m.FollowerID, Status: Skipped,
			Reason: fmt.Sprintf("mapping is %s", m.Status), MappingID: m.ID}
	}
	if m.FollowerOrderID == "" {
		return Result{FollowerID: m.FollowerID, Status: Skipped, Reason: "no follower order id", MappingID: m.ID}
	}

	f, err := e.followers.Get(ctx, m.FollowerID)
	if err != nil {
		return Result{FollowerID: m.FollowerID, Status: Failed,
			Reason: fmt.Sprintf("load follower: %v", err), MappingID: m.ID}
	}

	res := Result{FollowerID: m.FollowerID, Status: Success, FollowerOrderID: m.FollowerOrderID, MappingID: m.ID}
	if err := e.venue.CancelOrder(ctx, m.FollowerOrderID, f.Credentials); err != nil {
		e.logger.Warn("venue cancel failed, marking cancelled locally",
			zap.String("mapping_id", m.ID),
			zap.String("follower_order_id", m.FollowerOrderID),
			zap.Error(err))
		res.Reason = fmt.Sprintf("venue cancel failed: %v", err)
	}
	if err := e.ledger.Transition(ctx, m.ID, ledger.StatusCancelled, ledger.TransitionFields{}); err != nil {
		return Result{FollowerID: m.FollowerID, Status: Failed,
			Reason: fmt.Sprintf("mark cancelled: %v", err), MappingID: m.ID}
	}
	return res
}
