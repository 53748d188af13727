package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"metadataWatch/internal/config"
	"metadataWatch/internal/model"
	"metadataWatch/internal/notify"
	"metadataWatch/internal/watcher"
	"metadataWatch/internal/webhook"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServe(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, _, cleanup, err := buildSink(ctx, sinkOptions{
		Out:         cfg.Out,
		PGDSN:       cfg.PGDSN,
		KafkaBroker: cfg.KafkaBroker,
		KafkaTopic:  cfg.KafkaTopic,
	}, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	events := make(chan model.ContractEvent, cfg.Buffer)
	server := webhook.NewServer(cfg.Listen, cfg.AuthToken, events, logger)

	decoder := notify.NewDecoder(notify.Config{TrustPayload: cfg.TrustPayload})
	runner := watcher.NewRunner(decoder, sink, logger)

	logger.Info("serve start",
		zap.String("listen", cfg.Listen),
		zap.String("out", cfg.Out),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.String("kafka_broker", cfg.KafkaBroker),
		zap.Bool("auth", cfg.AuthToken != ""),
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return server.Run(groupCtx)
	})
	group.Go(func() error {
		return runner.Run(groupCtx, events)
	})

	err = group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
