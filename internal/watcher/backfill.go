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

// EventSource serves historical contract events by block height.
type EventSource interface {
	LatestBlockHeight(ctx context.Context) (uint64, error)
	EventsByHeight(ctx context.Context, height uint64) ([]model.ContractEvent, error)
}

// BackfillConfig holds runtime settings for a height-range replay.
type BackfillConfig struct {
	FromHeight   uint64
	ToHeight     uint64
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
	Checkpoint   CheckpointStore
	Rejects      storage.RejectSink
}

// Backfiller replays contract events over a height range and emits refresh
// tasks. Emission is at-least-once: re-running a range reproduces the same
// tasks, which downstream consumers must tolerate.
type Backfiller struct {
	cfg     BackfillConfig
	source  EventSource
	decoder *notify.Decoder
	sink    storage.TaskSink
	logger  *zap.Logger
	now     func() time.Time
}

// NewBackfiller builds a Backfiller with its dependencies.
func NewBackfiller(cfg BackfillConfig, source EventSource, decoder *notify.Decoder, sink storage.TaskSink, logger *zap.Logger) *Backfiller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backfiller{
		cfg:     cfg,
		source:  source,
		decoder: decoder,
		sink:    sink,
		logger:  logger,
		now:     time.Now,
	}
}

// Run executes the replay loop.
func (b *Backfiller) Run(ctx context.Context) error {
	if b.source == nil {
		return fmt.Errorf("event source is nil")
	}
	if b.decoder == nil {
		return fmt.Errorf("decoder is nil")
	}
	if b.sink == nil {
		return fmt.Errorf("sink is nil")
	}
	if b.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}

	from := b.cfg.FromHeight
	to := b.cfg.ToHeight
	if to == 0 {
		latest, err := b.source.LatestBlockHeight(ctx)
		if err != nil {
			return fmt.Errorf("get latest height: %w", err)
		}
		to = latest
	}

	if b.cfg.Checkpoint != nil {
		last, ok, err := b.cfg.Checkpoint.Load(ctx)
		if err != nil {
			return err
		}
		if ok && last >= from {
			from = last + 1
			b.logger.Info("resume from checkpoint", zap.Uint64("last_processed", last), zap.Uint64("from", from))
		}
	}

	if from > to {
		b.logger.Info("nothing to replay", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, b.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, heightRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		b.logger.Info("fetch events", zap.Uint64("from", heightRange.From), zap.Uint64("to", heightRange.To))

		observedAt := b.now().UTC().Format(time.RFC3339Nano)
		tasks := make([]model.RefreshTask, 0)
		rejects := make([]model.DecodeError, 0)

		for height := heightRange.From; height <= heightRange.To; height++ {
			events, err := b.eventsWithRetry(ctx, height)
			if err != nil {
				return fmt.Errorf("events at height %d: %w", height, err)
			}

			for _, ev := range events {
				task, err := b.decoder.Process(ev)
				if err != nil {
					rejects = append(rejects, model.DecodeError{
						Emitter:     ev.ContractID,
						TxID:        ev.TxID,
						EventIndex:  ev.EventIndex,
						BlockHeight: ev.BlockHeight,
						Error:       err.Error(),
					})
					continue
				}
				if task == nil {
					continue
				}
				task.ObservedAt = observedAt
				tasks = append(tasks, *task)
			}
		}

		if err := b.sink.PutTaskBatch(ctx, tasks); err != nil {
			return fmt.Errorf("store tasks: %w", err)
		}
		if b.cfg.Rejects != nil {
			if err := b.cfg.Rejects.PutRejectBatch(ctx, rejects); err != nil {
				return fmt.Errorf("store rejects: %w", err)
			}
		}

		if b.cfg.Checkpoint != nil {
			if err := b.cfg.Checkpoint.Save(ctx, heightRange.To); err != nil {
				return err
			}
		}

		b.logger.Info("batch complete",
			zap.Int("tasks", len(tasks)),
			zap.Int("rejects", len(rejects)),
			zap.Uint64("from", heightRange.From),
			zap.Uint64("to", heightRange.To),
		)
	}

	return nil
}

func (b *Backfiller) eventsWithRetry(ctx context.Context, height uint64) ([]model.ContractEvent, error) {
	var events []model.ContractEvent
	err := withRetry(ctx, b.cfg.MaxRetries, b.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		events, err = b.source.EventsByHeight(ctx, height)
		if err != nil {
			b.logger.Warn("event fetch failed", zap.Error(err), zap.Uint64("height", height))
		}
		return err
	})
	return events, err
}
