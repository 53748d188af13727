package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"metadataWatch/internal/chain"
	"metadataWatch/internal/config"
	"metadataWatch/internal/model"
	"metadataWatch/internal/notify"
	"metadataWatch/internal/storage"
	"metadataWatch/internal/watcher"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" && cfg.NodeURL == "" {
		return fmt.Errorf("either node url or input path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, store, cleanup, err := buildSink(ctx, sinkOptions{
		Out:         cfg.Out,
		PGDSN:       cfg.PGDSN,
		KafkaBroker: cfg.KafkaBroker,
		KafkaTopic:  cfg.KafkaTopic,
	}, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	var rejects storage.RejectSink
	if cfg.Errors != "" {
		rejects = storage.NewJsonlRejects(cfg.Errors)
	}

	decoder := notify.NewDecoder(notify.Config{TrustPayload: cfg.TrustPayload})

	logger.Info("replay start",
		zap.String("node_url", cfg.NodeURL),
		zap.String("in", cfg.In),
		zap.Uint64("from", cfg.FromHeight),
		zap.Uint64("to", cfg.ToHeight),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.String("kafka_broker", cfg.KafkaBroker),
	)

	if cfg.In != "" {
		return replayFile(ctx, cfg.In, decoder, sink, rejects, logger)
	}

	client, err := chain.NewClient(cfg.NodeURL)
	if err != nil {
		return err
	}

	var checkpoint watcher.CheckpointStore
	if cfg.Checkpoint != "" {
		checkpoint = &watcher.FileCheckpoint{Path: cfg.Checkpoint}
	} else if store != nil {
		checkpoint = &watcher.DBCheckpoint{Store: store, Name: "replay"}
	}

	backfiller := watcher.NewBackfiller(watcher.BackfillConfig{
		FromHeight:   cfg.FromHeight,
		ToHeight:     cfg.ToHeight,
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Checkpoint:   checkpoint,
		Rejects:      rejects,
	}, client, decoder, sink, logger)

	return backfiller.Run(ctx)
}

func replayFile(ctx context.Context, path string, decoder *notify.Decoder, sink storage.TaskSink, rejects storage.RejectSink, logger *zap.Logger) error {
	inputFile, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer inputFile.Close()

	scanner := bufio.NewScanner(inputFile)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	observedAt := time.Now().UTC().Format(time.RFC3339Nano)

	var total, emitted, skipped, rejected int
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var event model.ContractEvent
		if err := json.Unmarshal(line, &event); err != nil {
			rejected++
			if rejects != nil {
				if err := rejects.PutRejectBatch(ctx, []model.DecodeError{{Error: err.Error()}}); err != nil {
					return fmt.Errorf("store reject: %w", err)
				}
			}
			continue
		}

		task, err := decoder.Process(event)
		if err != nil {
			rejected++
			if rejects != nil {
				reject := model.DecodeError{
					Emitter:     event.ContractID,
					TxID:        event.TxID,
					EventIndex:  event.EventIndex,
					BlockHeight: event.BlockHeight,
					Error:       err.Error(),
				}
				if err := rejects.PutRejectBatch(ctx, []model.DecodeError{reject}); err != nil {
					return fmt.Errorf("store reject: %w", err)
				}
			}
			continue
		}
		if task == nil {
			skipped++
			continue
		}

		task.ObservedAt = observedAt
		if err := sink.PutTaskBatch(ctx, []model.RefreshTask{*task}); err != nil {
			return fmt.Errorf("store task: %w", err)
		}
		emitted++
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	logger.Info("replay complete",
		zap.Int("total", total),
		zap.Int("emitted", emitted),
		zap.Int("skipped", skipped),
		zap.Int("rejected", rejected),
	)

	return nil
}
