package replicate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/quantumalpha/replicator/ledger"
)

// ModifySync records the intent to modify follower orders tracking one
// master order. Follower orders are not amended at the venue; the ACTIVE
// mappings are touched and a MODIFY audit row is written.
func (e *Engine) ModifySync(ctx context.Context, masterOrderID string, quantity int64, price float64) ([]Result, error) {
	mappings, _, err := e.ledger.ListMappings(ctx, ledger.MappingFilter{
		MasterOrderID: masterOrderID,
		Status:        ledger.StatusActive,
	})
	if err != nil {
		return nil, fmt.Errorf("load mappings for %s: %w", masterOrderID, err)
	}

	results := make([]Result, 0, len(mappings))
	for _, m := range mappings {
		if err := e.ledger.Touch(ctx, m.ID); err != nil {
			results = append(results, Result{FollowerID: m.FollowerID, Status: Failed,
				Reason: fmt.Sprintf("touch mapping: %v", err), MappingID: m.ID})
			continue
		}
		results = append(results, Result{FollowerID: m.FollowerID, Status: Success,
			FollowerOrderID: m.FollowerOrderID, MappingID: m.ID})
	}

	sum := Summarize(results)
	if _, err := e.ledger.RecordEvent(ctx, ledger.TradeEvent{
		MasterOrderID: masterOrderID,
		EventType:     ledger.EventModify,
		Quantity:      quantity,
		Price:         price,
		Total:         sum.Total,
		Successful:    sum.Successful,
		Failed:        sum.Failed,
		Skipped:       sum.Skipped,
	}); err != nil {
		e.logger.Error("recording MODIFY audit event failed",
			zap.String("master_order_id", masterOrderID), zap.Error(err))
	}
	return results, nil
}
