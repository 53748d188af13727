package config

import (
	"github.com/spf13/pflag"
)

// ServeConfig holds configuration for the serve command.
type ServeConfig struct {
	Listen       string
	AuthToken    string
	TrustPayload bool
	Out          string
	PGDSN        string
	KafkaBroker  string
	KafkaTopic   string
	Buffer       int
	LogLevel     string
}

// LoadServe merges config file, environment variables, and flags into
// ServeConfig.
func LoadServe(cfgFile string, flags *pflag.FlagSet) (ServeConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"listen":      ":3700",
		"out":         "./data/refresh_tasks.jsonl",
		"kafka-topic": "metadata-refresh",
		"buffer":      256,
		"log-level":   "info",
	})
	if err != nil {
		return ServeConfig{}, err
	}

	cfg := ServeConfig{
		Listen:       v.GetString("listen"),
		AuthToken:    v.GetString("auth-token"),
		TrustPayload: v.GetBool("trust-payload"),
		Out:          v.GetString("out"),
		PGDSN:        v.GetString("pg-dsn"),
		KafkaBroker:  v.GetString("kafka-broker"),
		KafkaTopic:   v.GetString("kafka-topic"),
		Buffer:       v.GetInt("buffer"),
		LogLevel:     v.GetString("log-level"),
	}

	return cfg, nil
}
