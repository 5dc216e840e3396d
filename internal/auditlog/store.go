// Package auditlog persists a durable, queryable record of completed
// locks, rejections, and double-lock incidents to PostgreSQL. It is
// explicitly NOT engine state: spec.md's Non-goals exclude persistence
// across restarts for the engine proper, and this store is never read back
// into the engine on startup — it is only written, from the engine's
// completion/conflict callbacks and the API's request-rejection path.
package auditlog

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps a pgx connection pool. Adapted from the teacher's
// internal/db.PostgresStore: same Connect/Close/InitSchema shape, with
// single-statement inserts, retargeted from forensic heuristic rows to lock-lifecycle rows.
type Store struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx.
func Connect(connStr string) (*Store, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("auditlog: unable to connect: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("auditlog: ping failed: %w", err)
	}
	log.Println("[auditlog] connected to PostgreSQL")
	return &Store{pool: pool}, nil
}

// Close gracefully closes the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema loads and executes schema.sql.
func (s *Store) InitSchema() error {
	schemaBytes, err := os.ReadFile("internal/auditlog/schema.sql")
	if err != nil {
		return fmt.Errorf("auditlog: failed to read schema file: %w", err)
	}
	if _, err := s.pool.Exec(context.Background(), string(schemaBytes)); err != nil {
		return fmt.Errorf("auditlog: failed to execute schema: %w", err)
	}
	log.Println("[auditlog] schema initialized")
	return nil
}

// RecordCompletion records a successfully finalized lock.
func (s *Store) RecordCompletion(ctx context.Context, txid string, signatures, numInputs int) error {
	sql := `
		INSERT INTO lock_completions (txid, signatures, num_inputs)
		VALUES ($1, $2, $3)
		ON CONFLICT (txid) DO UPDATE
		SET signatures = EXCLUDED.signatures, num_inputs = EXCLUDED.num_inputs;
	`
	_, err := s.pool.Exec(ctx, sql, txid, signatures, numInputs)
	return err
}

// RecordRejection records a rejected request or vote, with its reason.
func (s *Store) RecordRejection(ctx context.Context, txid, reason string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO lock_rejections (txid, reason) VALUES ($1, $2);`,
		txid, reason)
	return err
}

// RecordConflict records a double-lock incident between two candidates.
func (s *Store) RecordConflict(ctx context.Context, txidA, txidB, outpoint string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO lock_conflicts (txid_a, txid_b, outpoint) VALUES ($1, $2, $3);`,
		txidA, txidB, outpoint)
	return err
}

// Completion is one completed lock as returned by RecentCompletions.
type Completion struct {
	Txid         string `json:"txid"`
	Signatures   int    `json:"signatures"`
	NumInputs    int    `json:"numInputs"`
	CompletedAt  string `json:"completedAt"`
}

// RecentCompletions returns the most recently completed locks, newest
// first, for the status API.
func (s *Store) RecentCompletions(ctx context.Context, limit int) ([]Completion, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT txid, signatures, num_inputs, completed_at::TEXT
		 FROM lock_completions ORDER BY completed_at DESC LIMIT $1;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Completion
	for rows.Next() {
		var c Completion
		if err := rows.Scan(&c.Txid, &c.Signatures, &c.NumInputs, &c.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if out == nil {
		out = []Completion{}
	}
	return out, nil
}
