package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "watcher",
		Short:        "Token metadata-update notification watcher",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the live node event feed",
		RunE:  runWatch,
	}

	watchCmd.Flags().String("ws-url", "", "node event feed websocket URL")
	watchCmd.Flags().Bool("trust-payload", false, "skip emitter cross-check of the payload contract-id")
	watchCmd.Flags().String("out", "./data/refresh_tasks.jsonl", "refresh tasks JSONL path (empty to disable)")
	watchCmd.Flags().String("pg-dsn", "", "Postgres DSN task sink")
	watchCmd.Flags().String("kafka-broker", "", "Kafka bootstrap server task sink")
	watchCmd.Flags().String("kafka-topic", "metadata-refresh", "Kafka topic for refresh tasks")
	watchCmd.Flags().Int("buffer", 256, "event channel capacity")
	watchCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(watchCmd)

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay historical contract events into refresh tasks",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("node-url", "", "node core API URL")
	replayCmd.Flags().String("in", "", "input contract events JSONL (instead of node-url)")
	replayCmd.Flags().Uint64("from", 0, "start height (inclusive)")
	replayCmd.Flags().Uint64("to", 0, "end height (inclusive), 0 means latest")
	replayCmd.Flags().Uint64("batch-size", 50, "heights per batch")
	replayCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path (empty to disable)")
	replayCmd.Flags().Bool("trust-payload", false, "skip emitter cross-check of the payload contract-id")
	replayCmd.Flags().String("out", "./data/refresh_tasks.jsonl", "refresh tasks JSONL path (empty to disable)")
	replayCmd.Flags().String("errors", "./data/rejects.jsonl", "rejected notifications JSONL path (empty to disable)")
	replayCmd.Flags().String("pg-dsn", "", "Postgres DSN task sink")
	replayCmd.Flags().String("kafka-broker", "", "Kafka bootstrap server task sink")
	replayCmd.Flags().String("kafka-topic", "metadata-refresh", "Kafka topic for refresh tasks")
	replayCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	replayCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Receive node event-observer callbacks",
		RunE:  runServe,
	}

	serveCmd.Flags().String("listen", ":3700", "observer listen address")
	serveCmd.Flags().String("auth-token", "", "bearer token expected on callbacks")
	serveCmd.Flags().Bool("trust-payload", false, "skip emitter cross-check of the payload contract-id")
	serveCmd.Flags().String("out", "./data/refresh_tasks.jsonl", "refresh tasks JSONL path (empty to disable)")
	serveCmd.Flags().String("pg-dsn", "", "Postgres DSN task sink")
	serveCmd.Flags().String("kafka-broker", "", "Kafka bootstrap server task sink")
	serveCmd.Flags().String("kafka-topic", "metadata-refresh", "Kafka topic for refresh tasks")
	serveCmd.Flags().Int("buffer", 256, "event channel capacity")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
