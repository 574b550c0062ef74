package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/model"
)

// PostgresLedgerStore implements LedgerStore and NodeRecordStore on
// PostgreSQL. Tables:
//
//	healing_actions(action_id PK, kind, node_id, new_node_id,
//	    new_node_address, reason, outcome, error_message, created_at,
//	    resolved_at)
//	node_records(node_id PK, current_risk, previous_risk, greylisted,
//	    last_classified_at, last_action_at, pending_action_id,
//	    stale_cycles, missing_cycles)
type PostgresLedgerStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresLedgerStore creates a new PostgreSQL ledger store
func NewPostgresLedgerStore(
	host string,
	port int,
	database, user, password string,
	maxConns, minConns int,
	logger *zap.Logger,
) (*PostgresLedgerStore, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s pool_max_conns=%d pool_min_conns=%d",
		host, port, database, user, password, maxConns, minConns,
	)

	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresLedgerStore{
		pool:   pool,
		logger: logger,
	}, nil
}

// AppendAction writes a new ledger entry. The caller must append before
// invoking the control plane.
func (s *PostgresLedgerStore) AppendAction(ctx context.Context, rec *model.ActionRecord) error {
	query := `
		INSERT INTO healing_actions
			(action_id, kind, node_id, new_node_id, new_node_address, reason, outcome, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		rec.Action.ActionID,
		string(rec.Action.Kind),
		rec.Action.NodeID,
		rec.Action.NewNode.NodeID,
		rec.Action.NewNode.Address,
		rec.Action.Reason,
		string(rec.Outcome),
		rec.CreatedAt,
	)

	return err
}

// ResolveAction transitions a pending action to a terminal outcome. A
// record that already reached a terminal outcome is never mutated again.
func (s *PostgresLedgerStore) ResolveAction(ctx context.Context, actionID string, outcome model.ActionOutcome, errMsg string) error {
	query := `
		UPDATE healing_actions
		SET outcome = $2, error_message = $3, resolved_at = NOW()
		WHERE action_id = $1 AND outcome = 'pending'
	`

	result, err := s.pool.Exec(ctx, query, actionID, string(outcome), errMsg)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("resolve action %s: %w", actionID, ErrAlreadyResolved)
	}

	return nil
}

// GetAction retrieves a ledger entry by action ID
func (s *PostgresLedgerStore) GetAction(ctx context.Context, actionID string) (*model.ActionRecord, error) {
	query := `
		SELECT action_id, kind, node_id, new_node_id, new_node_address,
		       reason, outcome, error_message, created_at, resolved_at
		FROM healing_actions
		WHERE action_id = $1
	`

	rec, err := scanActionRecord(s.pool.QueryRow(ctx, query, actionID))
	if err != nil {
		return nil, fmt.Errorf("failed to get action: %w", err)
	}
	return rec, nil
}

// PendingActions retrieves all ledger entries still awaiting a terminal
// outcome, oldest first.
func (s *PostgresLedgerStore) PendingActions(ctx context.Context) ([]*model.ActionRecord, error) {
	query := `
		SELECT action_id, kind, node_id, new_node_id, new_node_address,
		       reason, outcome, error_message, created_at, resolved_at
		FROM healing_actions
		WHERE outcome = 'pending'
		ORDER BY created_at
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*model.ActionRecord, 0)
	for rows.Next() {
		rec, err := scanActionRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// rowScanner abstracts pgx.Row and pgx.Rows for scanning
type rowScanner interface {
	Scan(dest ...any) error
}

func scanActionRecord(row rowScanner) (*model.ActionRecord, error) {
	var rec model.ActionRecord
	var kind, outcome string
	var errMsg *string

	err := row.Scan(
		&rec.Action.ActionID,
		&kind,
		&rec.Action.NodeID,
		&rec.Action.NewNode.NodeID,
		&rec.Action.NewNode.Address,
		&rec.Action.Reason,
		&outcome,
		&errMsg,
		&rec.CreatedAt,
		&rec.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Action.Kind = model.ActionKind(kind)
	rec.Action.IssuedAt = rec.CreatedAt
	rec.Outcome = model.ActionOutcome(outcome)
	if errMsg != nil {
		rec.Error = *errMsg
	}

	return &rec, nil
}

// SaveNodeRecord upserts a node record
func (s *PostgresLedgerStore) SaveNodeRecord(ctx context.Context, rec *model.NodeRecord) error {
	query := `
		INSERT INTO node_records
			(node_id, current_risk, previous_risk, greylisted, last_classified_at,
			 last_action_at, pending_action_id, stale_cycles, missing_cycles)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (node_id) DO UPDATE SET
			current_risk = EXCLUDED.current_risk,
			previous_risk = EXCLUDED.previous_risk,
			greylisted = EXCLUDED.greylisted,
			last_classified_at = EXCLUDED.last_classified_at,
			last_action_at = EXCLUDED.last_action_at,
			pending_action_id = EXCLUDED.pending_action_id,
			stale_cycles = EXCLUDED.stale_cycles,
			missing_cycles = EXCLUDED.missing_cycles
	`

	_, err := s.pool.Exec(ctx, query,
		rec.NodeID,
		rec.Current.String(),
		rec.Previous.String(),
		rec.Greylisted,
		rec.LastClassifiedAt,
		rec.LastActionAt,
		rec.PendingActionID,
		rec.StaleCycles,
		rec.MissingCycles,
	)

	return err
}

// DeleteNodeRecord removes a node record once the node's removal from the
// cluster is confirmed.
func (s *PostgresLedgerStore) DeleteNodeRecord(ctx context.Context, nodeID string) error {
	query := `DELETE FROM node_records WHERE node_id = $1`
	_, err := s.pool.Exec(ctx, query, nodeID)
	return err
}

// ListNodeRecords retrieves all node records
func (s *PostgresLedgerStore) ListNodeRecords(ctx context.Context) ([]*model.NodeRecord, error) {
	query := `
		SELECT node_id, current_risk, previous_risk, greylisted, last_classified_at,
		       last_action_at, pending_action_id, stale_cycles, missing_cycles
		FROM node_records
		ORDER BY node_id
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*model.NodeRecord, 0)
	for rows.Next() {
		var rec model.NodeRecord
		var current, previous string
		if err := rows.Scan(
			&rec.NodeID,
			&current,
			&previous,
			&rec.Greylisted,
			&rec.LastClassifiedAt,
			&rec.LastActionAt,
			&rec.PendingActionID,
			&rec.StaleCycles,
			&rec.MissingCycles,
		); err != nil {
			return nil, err
		}
		if rec.Current, err = model.ParseRiskLevel(current); err != nil {
			return nil, err
		}
		if rec.Previous, err = model.ParseRiskLevel(previous); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}

	return records, rows.Err()
}

// Ping checks the database connection
func (s *PostgresLedgerStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool
func (s *PostgresLedgerStore) Close() {
	s.pool.Close()
}
