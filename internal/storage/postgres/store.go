package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"metadataWatch/internal/model"
)

// Store provides Postgres persistence for refresh tasks and watcher state.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// PutTaskBatch inserts refresh tasks. Re-delivered events are absorbed by the
// (tx_id, event_index) conflict target, so at-least-once upstream delivery is
// safe.
func (s *Store) PutTaskBatch(ctx context.Context, tasks []model.RefreshTask) error {
	if len(tasks) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, task := range tasks {
		batch.Queue(`
			INSERT INTO refresh_tasks (
				contract_id, token_class, token_ids, emitter, tx_id, event_index,
				block_height, observed_at, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
			ON CONFLICT (tx_id, event_index) DO NOTHING
		`,
			task.ContractID,
			string(task.TokenClass),
			tokenIDsParam(task.TokenIDs),
			task.Emitter,
			task.TxID,
			int64(task.EventIndex),
			int64(task.BlockHeight),
			task.ObservedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range tasks {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns last_processed_height for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var height int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_height FROM watcher_state WHERE name=$1`, name)
	if err := row.Scan(&height); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(height), true, nil
}

// SaveState upserts last_processed_height for a name.
func (s *Store) SaveState(ctx context.Context, name string, height uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO watcher_state (name, last_processed_height, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_height = EXCLUDED.last_processed_height, updated_at = now()
	`, name, int64(height))
	return err
}

func tokenIDsParam(ids []uint64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
