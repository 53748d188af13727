package config

import (
	"time"

	"github.com/spf13/pflag"
)

// ReplayConfig holds configuration for the replay command.
type ReplayConfig struct {
	NodeURL      string
	In           string
	FromHeight   uint64
	ToHeight     uint64
	BatchSize    uint64
	Checkpoint   string
	TrustPayload bool
	Out          string
	Errors       string
	PGDSN        string
	KafkaBroker  string
	KafkaTopic   string
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
}

// LoadReplay merges config file, environment variables, and flags into
// ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"batch-size":    uint64(50),
		"checkpoint":    "./data/checkpoint.json",
		"out":           "./data/refresh_tasks.jsonl",
		"errors":        "./data/rejects.jsonl",
		"kafka-topic":   "metadata-refresh",
		"max-retries":   5,
		"retry-backoff": 500 * time.Millisecond,
		"log-level":     "info",
	})
	if err != nil {
		return ReplayConfig{}, err
	}

	cfg := ReplayConfig{
		NodeURL:      v.GetString("node-url"),
		In:           v.GetString("in"),
		FromHeight:   v.GetUint64("from"),
		ToHeight:     v.GetUint64("to"),
		BatchSize:    v.GetUint64("batch-size"),
		Checkpoint:   v.GetString("checkpoint"),
		TrustPayload: v.GetBool("trust-payload"),
		Out:          v.GetString("out"),
		Errors:       v.GetString("errors"),
		PGDSN:        v.GetString("pg-dsn"),
		KafkaBroker:  v.GetString("kafka-broker"),
		KafkaTopic:   v.GetString("kafka-topic"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     v.GetString("log-level"),
	}

	return cfg, nil
}
