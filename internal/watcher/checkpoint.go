package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"metadataWatch/internal/storage/postgres"
)

// CheckpointStore persists the last fully processed block height so a
// backfill can resume after a restart.
type CheckpointStore interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, height uint64) error
}

type fileCheckpoint struct {
	LastProcessedHeight uint64 `json:"last_processed_height"`
	UpdatedAt           string `json:"updated_at"`
}

// FileCheckpoint persists checkpoints to a local file with an atomic rename.
type FileCheckpoint struct {
	Path string
}

func (c *FileCheckpoint) Load(_ context.Context) (uint64, bool, error) {
	stat, err := os.Stat(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("stat checkpoint: %w", err)
	}
	if stat.IsDir() {
		return 0, false, fmt.Errorf("checkpoint path is a directory")
	}

	data, err := os.ReadFile(c.Path)
	if err != nil {
		return 0, false, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp fileCheckpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return 0, false, fmt.Errorf("parse checkpoint: %w", err)
	}

	return cp.LastProcessedHeight, true, nil
}

func (c *FileCheckpoint) Save(_ context.Context, height uint64) error {
	dir := filepath.Dir(c.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	cp := fileCheckpoint{
		LastProcessedHeight: height,
		UpdatedAt:           time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmpPath := c.Path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.Path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}

	return nil
}

// DBCheckpoint keeps the checkpoint in the watcher_state table, next to the
// tasks when Postgres is the sink.
type DBCheckpoint struct {
	Store *postgres.Store
	Name  string
}

func (c *DBCheckpoint) Load(ctx context.Context) (uint64, bool, error) {
	return c.Store.LoadState(ctx, c.Name)
}

func (c *DBCheckpoint) Save(ctx context.Context, height uint64) error {
	return c.Store.SaveState(ctx, c.Name, height)
}
