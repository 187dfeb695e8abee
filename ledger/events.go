package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/quantumalpha/replicator/pkg/id"
)

// EventType tags the fan-out operation an audit row summarizes.
type EventType string

const (
	EventPlace  EventType = "PLACE"
	EventModify EventType = "MODIFY"
	EventExit   EventType = "EXIT"
	EventCancel EventType = "CANCEL"
)

// TradeEvent is one immutable audit row: how one fan-out over the followers
// went, in counts.
type TradeEvent struct {
	ID            string    `json:"id"`
	MasterOrderID string    `json:"master_order_id"`
	EventType     EventType `json:"event_type"`
	Symbol        string    `json:"symbol"`
	Side          string    `json:"side"`
	Quantity      int64     `json:"quantity"`
	Price         float64   `json:"price"`
	Total         int       `json:"total_followers"`
	Successful    int       `json:"successful_followers"`
	Failed        int       `json:"failed_followers"`
	Skipped       int       `json:"skipped_followers"`
	ProcessedAt   time.Time `json:"processed_at"`
}

// RecordEvent appends one audit row and returns its id.
func (s *Store) RecordEvent(ctx context.Context, ev TradeEvent) (string, error) {
	if ev.ID == "" {
		ev.ID = id.New()
	}
	if ev.ProcessedAt.IsZero() {
		ev.ProcessedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trade_events
		(id, master_order_id, event_type, symbol, side, quantity, price, total_followers, successful_followers, failed_followers, skipped_followers, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.MasterOrderID, string(ev.EventType), ev.Symbol, ev.Side,
		ev.Quantity, ev.Price, ev.Total, ev.Successful, ev.Failed, ev.Skipped, ev.ProcessedAt,
	)
	if err != nil {
		return "", fmt.Errorf("record event: %w", err)
	}
	return ev.ID, nil
}

// EventFilter narrows and pages ListEvents.
type EventFilter struct {
	MasterOrderID string
	EventType     EventType
	Limit         int
	Offset        int
}

// ListEvents returns audit rows matching the filter, newest first, plus the
// total count.
func (s *Store) ListEvents(ctx context.Context, f EventFilter) ([]TradeEvent, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	if f.MasterOrderID != "" {
		where += " AND master_order_id = ?"
		args = append(args, f.MasterOrderID)
	}
	if f.EventType != "" {
		where += " AND event_type = ?"
		args = append(args, string(f.EventType))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trade_events`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	q := `SELECT id, master_order_id, event_type, symbol, side, quantity, price,
			total_followers, successful_followers, failed_followers, skipped_followers, processed_at
		FROM trade_events` + where + ` ORDER BY processed_at DESC, id DESC`
	if f.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []TradeEvent
	for rows.Next() {
		var ev TradeEvent
		var et string
		if err := rows.Scan(&ev.ID, &ev.MasterOrderID, &et, &ev.Symbol, &ev.Side,
			&ev.Quantity, &ev.Price, &ev.Total, &ev.Successful, &ev.Failed, &ev.Skipped, &ev.ProcessedAt); err != nil {
			return nil, 0, err
		}
		ev.EventType = EventType(et)
		out = append(out, ev)
	}
	return out, total, rows.Err()
}
