package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"metadataWatch/internal/config"
	"metadataWatch/internal/notify"
	"metadataWatch/internal/stream"
	"metadataWatch/internal/watcher"
)

func runWatch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.WSURL == "" {
		return fmt.Errorf("ws url is required")
	}

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

	feedCfg := stream.DefaultConfig()
	feedCfg.Buffer = cfg.Buffer
	feed, err := stream.NewClient(cfg.WSURL, feedCfg, logger)
	if err != nil {
		return err
	}

	decoder := notify.NewDecoder(notify.Config{TrustPayload: cfg.TrustPayload})
	runner := watcher.NewRunner(decoder, sink, logger)

	logger.Info("watch start",
		zap.String("ws_url", cfg.WSURL),
		zap.String("out", cfg.Out),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.String("kafka_broker", cfg.KafkaBroker),
		zap.Bool("trust_payload", cfg.TrustPayload),
	)

	return runner.Run(ctx, feed.Events(ctx))
}
