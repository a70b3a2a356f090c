package config

import (
	"fmt"
	"strconv"
	"time"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "QUILL_"

// applyEnv overrides configuration from QUILL_* environment variables.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPrefix + "LOG_VERBOSITY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sLOG_VERBOSITY: %w", EnvPrefix, err)
		}
		cfg.Log.Verbosity = n
	}

	if v, ok := lookup(EnvPrefix + "LOG_FILE"); ok {
		cfg.Log.File = v
	}

	if v, ok := lookup(EnvPrefix + "POLL_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sPOLL_INTERVAL: %w", EnvPrefix, err)
		}
		cfg.Editor.PollInterval = Duration{d}
	}

	if v, ok := lookup(EnvPrefix + "HISTORY_LIMIT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sHISTORY_LIMIT: %w", EnvPrefix, err)
		}
		cfg.Editor.HistoryLimit = n
	}

	return nil
}
