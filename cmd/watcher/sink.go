package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"metadataWatch/internal/storage"
	"metadataWatch/internal/storage/kafka"
	"metadataWatch/internal/storage/postgres"
)

type sinkOptions struct {
	Out         string
	PGDSN       string
	KafkaBroker string
	KafkaTopic  string
}

// buildSink assembles the configured task sinks. The returned store is
// non-nil when Postgres is configured, so callers can keep checkpoints next
// to the tasks. The cleanup function must run on shutdown.
func buildSink(ctx context.Context, opts sinkOptions, logger *zap.Logger) (storage.TaskSink, *postgres.Store, func(), error) {
	var sinks storage.Fanout
	var cleanups []func()
	var store *postgres.Store

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if opts.Out != "" {
		sinks = append(sinks, storage.NewJsonlSink(opts.Out))
	}

	if opts.PGDSN != "" {
		pgStore, err := postgres.NewStore(ctx, opts.PGDSN)
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		store = pgStore
		sinks = append(sinks, pgStore)
		cleanups = append(cleanups, pgStore.Close)
	}

	if opts.KafkaBroker != "" {
		producer, err := kafka.NewProducer(opts.KafkaBroker, opts.KafkaTopic, logger)
		if err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		sinks = append(sinks, producer)
		cleanups = append(cleanups, producer.Close)
	}

	if len(sinks) == 0 {
		return nil, nil, nil, fmt.Errorf("no task sink configured")
	}
	if len(sinks) == 1 {
		return sinks[0], store, cleanup, nil
	}
	return sinks, store, cleanup, nil
}
