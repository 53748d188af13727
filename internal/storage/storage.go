package storage

import (
	"context"

	"metadataWatch/internal/model"
)

// TaskSink defines a destination for refresh tasks.
type TaskSink interface {
	PutTaskBatch(ctx context.Context, tasks []model.RefreshTask) error
}

// RejectSink defines a destination for rejected notifications.
type RejectSink interface {
	PutRejectBatch(ctx context.Context, rejects []model.DecodeError) error
}

// Fanout delivers every batch to each configured sink in order.
type Fanout []TaskSink

// PutTaskBatch writes the batch to all sinks, stopping at the first failure.
func (f Fanout) PutTaskBatch(ctx context.Context, tasks []model.RefreshTask) error {
	for _, sink := range f {
		if err := sink.PutTaskBatch(ctx, tasks); err != nil {
			return err
		}
	}
	return nil
}
