package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// The replicated_trades set is the auto-replicator's coarse idempotence
// check: master order ids already handed to the engine. It deliberately
// duplicates the per-pair uniqueness of order_mappings at trade grain, so
// repeated scheduler ticks skip whole trades without loading followers.

// MarkReplicated records that a master trade has been processed by
// auto-replication. Marking twice is a no-op.
func (s *Store) MarkReplicated(ctx context.Context, masterOrderID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO replicated_trades (master_order_id, marked_at)
		VALUES (?, ?)
		ON CONFLICT(master_order_id) DO NOTHING`,
		masterOrderID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("mark replicated: %w", err)
	}
	return nil
}

// WasReplicated reports membership in the auto-replication set.
func (s *Store) WasReplicated(ctx context.Context, masterOrderID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM replicated_trades WHERE master_order_id = ?`, masterOrderID).Scan(&one)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check replicated: %w", err)
}

// HasMappings reports whether any mapping rows exist for the master order,
// regardless of status.
func (s *Store) HasMappings(ctx context.Context, masterOrderID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM order_mappings WHERE master_order_id = ?`, masterOrderID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count mappings for %s: %w", masterOrderID, err)
	}
	return n > 0, nil
}
