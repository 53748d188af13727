package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// WatchConfig holds configuration for the watch command.
type WatchConfig struct {
	WSURL        string
	TrustPayload bool
	Out          string
	PGDSN        string
	KafkaBroker  string
	KafkaTopic   string
	Buffer       int
	LogLevel     string
}

// Load merges config file, environment variables, and flags into WatchConfig.
func Load(cfgFile string, flags *pflag.FlagSet) (WatchConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"out":         "./data/refresh_tasks.jsonl",
		"kafka-topic": "metadata-refresh",
		"buffer":      256,
		"log-level":   "info",
	})
	if err != nil {
		return WatchConfig{}, err
	}

	cfg := WatchConfig{
		WSURL:        v.GetString("ws-url"),
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

func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("WATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
}
