// Package config loads reconciliation job settings from a YAML or JSON file,
// RECONCILE_* environment variables and defaults, in increasing precedence of
// defaults < file < environment < explicitly set flags.
package config

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"go-reconcile-pipeline/internal/model"
)

// EnvPrefix is the prefix of environment overrides, e.g. RECONCILE_LEDGER.
const EnvPrefix = "RECONCILE"

// LogConfig selects the logrus level and formatter
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// Config is a job spec plus the settings of the process running it
type Config struct {
	model.ReconcileJobSpec `mapstructure:",squash"`

	Log    LogConfig `mapstructure:"log"`
	Ledger string    `mapstructure:"ledger"` // sqlite path of the run ledger
	Addr   string    `mapstructure:"addr"`   // API listen address
}

// New returns a viper instance carrying the defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("fact.type", "csv")
	v.SetDefault("fields.fact_order", model.DefaultFieldMap.FactOrder)
	v.SetDefault("fields.fact_group", model.DefaultFieldMap.FactGroup)
	v.SetDefault("fields.fact_merchant", model.DefaultFieldMap.FactMerchant)
	v.SetDefault("fields.fact_region", model.DefaultFieldMap.FactRegion)
	v.SetDefault("fields.survey_order", model.DefaultFieldMap.SurveyOrder)
	v.SetDefault("fields.survey_response", model.DefaultFieldMap.SurveyResponse)
	v.SetDefault("predicate_values", []string{"Não"})
	v.SetDefault("transformations", []string{"trimStrings"})
	v.SetDefault("export.dir", "output")
	v.SetDefault("export.db", true)
	v.SetDefault("job_timeout", "5m")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_delay", "1s")
	v.SetDefault("retry.max_delay", "30s")
	v.SetDefault("retry.backoff_multiplier", 2.0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("ledger", "reconcile.db")
	v.SetDefault("addr", ":8080")

	// Survey keys have no defaults so an absent survey stays nil; bind them so
	// the environment alone can supply one.
	for _, key := range []string{"survey.type", "survey.url", "survey.query", "survey.optional", "fact.url", "fact.query"} {
		v.BindEnv(key)
	}
	return v
}

// Load reads path (if not empty) into v and decodes the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Survey != nil && cfg.Survey.URL == "" && cfg.Survey.Query == "" {
		cfg.Survey = nil
	}
	if cfg.Survey != nil && cfg.Survey.Type == "" {
		cfg.Survey.Type = sourceTypeFromPath(cfg.Survey.URL)
	}
	return &cfg, nil
}

// Validate reports configuration that cannot produce a run. The API server
// skips it since each request carries its own sources.
func (c *Config) Validate() error {
	if c.Fact.URL == "" {
		return fmt.Errorf("fact.url is required")
	}
	if c.Fields.FactOrder == "" || c.Fields.FactGroup == "" {
		return fmt.Errorf("fields.fact_order and fields.fact_group are required")
	}
	return nil
}

func sourceTypeFromPath(p string) string {
	lower := strings.ToLower(p)
	switch {
	case strings.HasSuffix(lower, ".xlsx"), strings.HasSuffix(lower, ".xlsm"):
		return "xlsx"
	case strings.HasSuffix(lower, ".json"):
		return "json"
	default:
		return "csv"
	}
}

// Apply configures the standard logrus logger.
func (l LogConfig) Apply() error {
	level, err := log.ParseLevel(l.Level)
	if err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)

	switch strings.ToLower(l.Format) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("log.format: unknown format %q", l.Format)
	}
	return nil
}
