package watcher

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"metadataWatch/internal/model"
	"metadataWatch/internal/notify"
	"metadataWatch/internal/storage"
)

// Runner consumes a live event stream and forwards refresh tasks to the sink.
// Tasks leave in event order; malformed notifications are logged and skipped,
// never fatal. The loop ends when the stream closes or the context is done.
type Runner struct {
	decoder *notify.Decoder
	sink    storage.TaskSink
	logger  *zap.Logger
	now     func() time.Time
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(decoder *notify.Decoder, sink storage.TaskSink, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		decoder: decoder,
		sink:    sink,
		logger:  logger,
		now:     time.Now,
	}
}

// Run executes the watch loop.
func (r *Runner) Run(ctx context.Context, events <-chan model.ContractEvent) error {
	if r.decoder == nil {
		return fmt.Errorf("decoder is nil")
	}
	if r.sink == nil {
		return fmt.Errorf("sink is nil")
	}

	var accepted, rejected, skipped uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				r.logger.Info("event stream closed",
					zap.Uint64("accepted", accepted),
					zap.Uint64("rejected", rejected),
					zap.Uint64("skipped", skipped),
				)
				return nil
			}

			task, err := r.decoder.Process(ev)
			if err != nil {
				rejected++
				r.logger.Warn("malformed notification",
					zap.String("emitter", ev.ContractID),
					zap.String("tx_id", ev.TxID),
					zap.Uint64("event_index", ev.EventIndex),
					zap.Uint64("block_height", ev.BlockHeight),
					zap.Error(err),
				)
				continue
			}
			if task == nil {
				skipped++
				continue
			}

			task.ObservedAt = r.now().UTC().Format(time.RFC3339Nano)
			if err := r.sink.PutTaskBatch(ctx, []model.RefreshTask{*task}); err != nil {
				return fmt.Errorf("store task: %w", err)
			}
			accepted++

			r.logger.Info("refresh task",
				zap.String("contract_id", task.ContractID),
				zap.String("token_class", string(task.TokenClass)),
				zap.Int("token_ids", len(task.TokenIDs)),
				zap.Uint64("block_height", task.BlockHeight),
			)
		}
	}
}
