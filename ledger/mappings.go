package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Status is the lifecycle state of an order mapping.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusActive    Status = "ACTIVE"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusFailed || s == StatusCancelled
}

// CanTransition reports whether s -> to is a legal lifecycle step.
// PENDING goes to ACTIVE or FAILED; ACTIVE goes to CANCELLED.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusActive || to == StatusFailed
	case StatusActive:
		return to == StatusCancelled
	default:
		return false
	}
}

// OrderMapping links one master trade to one follower's resulting order.
// One row exists per (master order, follower) pair; the pair is the
// idempotence boundary of the whole engine.
type OrderMapping struct {
	ID                string    `json:"id"`
	MasterOrderID     string    `json:"master_order_id"`
	FollowerID        string    `json:"follower_id"`
	Symbol            string    `json:"symbol"`
	Side              string    `json:"side"`
	RequestedQuantity int64     `json:"requested_quantity"`
	ExecutedQuantity  int64     `json:"executed_quantity"`
	Status            Status    `json:"status"`
	FollowerOrderID   string    `json:"follower_order_id,omitempty"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

var (
	// ErrMappingExists means a mapping for the (master order, follower)
	// pair already exists; the caller should skip, not fail.
	ErrMappingExists = errors.New("mapping already exists for this master order and follower")
	// ErrMappingNotFound is returned for unknown mapping ids.
	ErrMappingNotFound = errors.New("mapping not found")
	// ErrInvalidTransition is a lifecycle violation from a non-terminal state.
	ErrInvalidTransition = errors.New("invalid mapping status transition")
)

// CreateMapping inserts a new mapping row. The unique constraint on
// (master_order_id, follower_id) turns a duplicate attempt into
// ErrMappingExists, which is how concurrent replications of the same trade
// collapse to one PENDING row.
func (s *Store) CreateMapping(ctx context.Context, m OrderMapping) error {
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	if m.Status == "" {
		m.Status = StatusPending
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO order_mappings
		(id, master_order_id, follower_id, symbol, side, requested_quantity, executed_quantity, status, follower_order_id, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.MasterOrderID, m.FollowerID, m.Symbol, m.Side,
		m.RequestedQuantity, m.ExecutedQuantity, string(m.Status),
		m.FollowerOrderID, m.ErrorMessage, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		var serr sqlite3.Error
		if errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrMappingExists
		}
		return fmt.Errorf("create mapping: %w", err)
	}
	return nil
}

// TransitionFields carry the status-specific columns of a transition.
type TransitionFields struct {
	FollowerOrderID  string
	ExecutedQuantity int64
	ErrorMessage     string
}

// Transition moves a mapping to a new status. Transitions out of a terminal
// state are logged no-ops, not errors, because duplicate exit-sync triggers
// are expected. ExecutedQuantity may only be set on the transition to
// ACTIVE.
//
// Only the columns the target status owns are written: ACTIVE sets the
// follower order id and executed quantity, FAILED sets the error message,
// CANCELLED touches nothing but the status. The fields recorded by an
// earlier transition survive later ones.
func (s *Store) Transition(ctx context.Context, id string, to Status, f TransitionFields) error {
	if to != StatusActive && f.ExecutedQuantity != 0 {
		return fmt.Errorf("executed quantity may only be set on ACTIVE, not %s", to)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback()

	var current Status
	err = tx.QueryRowContext(ctx, `SELECT status FROM order_mappings WHERE id = ?`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return ErrMappingNotFound
	}
	if err != nil {
		return fmt.Errorf("load mapping %s: %w", id, err)
	}

	if current.Terminal() {
		s.logger.Info("ignoring transition of terminal mapping",
			zap.String("mapping_id", id),
			zap.String("current", string(current)),
			zap.String("requested", string(to)))
		return nil
	}
	if !current.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, to)
	}

	now := time.Now().UTC()
	switch to {
	case StatusActive:
		_, err = tx.ExecContext(ctx, `
			UPDATE order_mappings
			SET status = ?, follower_order_id = ?, executed_quantity = ?, updated_at = ?
			WHERE id = ?`,
			string(to), f.FollowerOrderID, f.ExecutedQuantity, now, id,
		)
	case StatusFailed:
		_, err = tx.ExecContext(ctx, `
			UPDATE order_mappings
			SET status = ?, error_message = ?, updated_at = ?
			WHERE id = ?`,
			string(to), f.ErrorMessage, now, id,
		)
	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE order_mappings
			SET status = ?, updated_at = ?
			WHERE id = ?`,
			string(to), now, id,
		)
	}
	if err != nil {
		return fmt.Errorf("update mapping %s: %w", id, err)
	}
	return tx.Commit()
}

// Touch bumps updated_at without changing status. Used by modify-sync to
// record that a modification pass visited the mapping.
func (s *Store) Touch(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE order_mappings SET updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("touch mapping %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMappingNotFound
	}
	return nil
}

// GetMapping returns one mapping by id.
func (s *Store) GetMapping(ctx context.Context, id string) (OrderMapping, error) {
	row := s.db.QueryRowContext(ctx, selectMapping+` WHERE id = ?`, id)
	m, err := scanMapping(row)
	if err == sql.ErrNoRows {
		return OrderMapping{}, ErrMappingNotFound
	}
	return m, err
}

// MappingFilter narrows and pages ListMappings. Zero values mean "any".
type MappingFilter struct {
	MasterOrderID string
	FollowerID    string
	Status        Status
	Limit         int
	Offset        int
}

const selectMapping = `
	SELECT id, master_order_id, follower_id, symbol, side, requested_quantity,
	       executed_quantity, status, follower_order_id, error_message, created_at, updated_at
	FROM order_mappings`

// ListMappings returns mappings matching the filter, newest first, plus the
// total count for the filter.
func (s *Store) ListMappings(ctx context.Context, f MappingFilter) ([]OrderMapping, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	if f.MasterOrderID != "" {
		where += " AND master_order_id = ?"
		args = append(args, f.MasterOrderID)
	}
	if f.FollowerID != "" {
		where += " AND follower_id = ?"
		args = append(args, f.FollowerID)
	}
	if f.Status != "" {
		where += " AND status = ?"
		args = append(args, string(f.Status))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM order_mappings`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count mappings: %w", err)
	}

	q := selectMapping + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query mappings: %w", err)
	}
	defer rows.Close()

	var out []OrderMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMapping(r rowScanner) (OrderMapping, error) {
	var m OrderMapping
	var status string
	err := r.Scan(&m.ID, &m.MasterOrderID, &m.FollowerID, &m.Symbol, &m.Side,
		&m.RequestedQuantity, &m.ExecutedQuantity, &status,
		&m.FollowerOrderID, &m.ErrorMessage, &m.CreatedAt, &m.UpdatedAt)
	m.Status = Status(status)
	return m, err
}
