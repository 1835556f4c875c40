package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix shared by all environment overrides.
const EnvPrefix = "MRICASES"

// envOverrides lists the settings that can come from the environment.
// Unset variables leave the corresponding field nil so the value from the
// lower layers survives.
type envOverrides struct {
	URL                *string        `split_words:"true"`
	TokenFile          *string        `split_words:"true"`
	InsecureSkipVerify *bool          `split_words:"true"`
	Timeout            *time.Duration `split_words:"true"`
	Fields             []string       `split_words:"true"`
	Forms              []string       `split_words:"true"`
	Events             []string       `split_words:"true"`
	OutputPath         *string        `split_words:"true"`
	OutputFormat       *string        `split_words:"true"`
	HistoryDB          *string        `split_words:"true"`
}

// ApplyEnv overlays MRICASES_* environment variables onto cfg, for example
// MRICASES_URL, MRICASES_TOKEN_FILE, MRICASES_EVENTS (comma separated) or
// MRICASES_OUTPUT_PATH.
func ApplyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}

	if env.URL != nil {
		cfg.REDCap.URL = *env.URL
	}
	if env.TokenFile != nil {
		cfg.REDCap.TokenFile = *env.TokenFile
	}
	if env.InsecureSkipVerify != nil {
		cfg.REDCap.InsecureSkipVerify = *env.InsecureSkipVerify
	}
	if env.Timeout != nil {
		cfg.REDCap.Timeout = *env.Timeout
	}
	if env.Fields != nil {
		cfg.Query.Fields = env.Fields
	}
	if env.Forms != nil {
		cfg.Query.Forms = env.Forms
	}
	if env.Events != nil {
		cfg.Query.Events = env.Events
	}
	if env.OutputPath != nil {
		cfg.Output.Path = *env.OutputPath
	}
	if env.OutputFormat != nil {
		cfg.Output.Format = *env.OutputFormat
	}
	if env.HistoryDB != nil {
		cfg.History.Database = *env.HistoryDB
	}
	return nil
}
