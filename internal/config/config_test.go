package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"go-reconcile-pipeline/internal/model"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_YAMLWithDefaults(t *testing.T) {
	p := writeConfig(t, "job.yaml", `
fact:
  type: postgres
  url: postgres://reader@dw/approvals
  query: SELECT * FROM approvals
survey:
  url: forms/Projeto Preço Parceiro.xlsx
  optional: true
  sheets: [Respostas]
retry:
  max_attempts: 5
  initial_delay: 250ms
`)
	cfg, err := Load(New(), p)
	require.NoError(t, err)

	require.Equal(t, "postgres", cfg.Fact.Type)
	require.Equal(t, "SELECT * FROM approvals", cfg.Fact.Query)
	require.NotNil(t, cfg.Survey)
	require.Equal(t, "xlsx", cfg.Survey.Type)
	require.True(t, cfg.Survey.Optional)
	require.Equal(t, []string{"Respostas"}, cfg.Survey.Sheets)

	require.Equal(t, model.DefaultFieldMap, cfg.Fields)
	require.Equal(t, []string{"Não"}, cfg.PredicateValues)
	require.Equal(t, 5, cfg.Retry.MaxAttempts)
	require.Equal(t, 250*time.Millisecond, cfg.Retry.InitialDelay)
	require.Equal(t, 30*time.Second, cfg.Retry.MaxDelay)
	require.Equal(t, "5m", cfg.JobTimeout)
	require.Equal(t, "reconcile.db", cfg.Ledger)
	require.Equal(t, &model.Export{Dir: "output", DB: true}, cfg.Export)
}

func TestLoad_JSONAndEnvironment(t *testing.T) {
	p := writeConfig(t, "job.json", `{"fact": {"url": "facts.csv"}, "fields": {"fact_group": "Cliente"}}`)
	t.Setenv("RECONCILE_LEDGER", "/tmp/ledger.db")
	t.Setenv("RECONCILE_SURVEY_URL", "survey.csv")
	t.Setenv("RECONCILE_LOG_LEVEL", "debug")

	cfg, err := Load(New(), p)
	require.NoError(t, err)
	require.Equal(t, "Cliente", cfg.Fields.FactGroup)
	require.Equal(t, "NumeroOS", cfg.Fields.FactOrder)
	require.Equal(t, "/tmp/ledger.db", cfg.Ledger)
	require.Equal(t, "debug", cfg.Log.Level)
	require.NotNil(t, cfg.Survey)
	require.Equal(t, "csv", cfg.Survey.Type)
	require.Equal(t, "survey.csv", cfg.Survey.URL)
}

func TestLoad_NoSurveyStaysNil(t *testing.T) {
	p := writeConfig(t, "job.yaml", "fact:\n  url: facts.csv\n")
	cfg, err := Load(New(), p)
	require.NoError(t, err)
	require.Nil(t, cfg.Survey)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorContains(t, err, "read config")

	cfg, err := Load(New(), writeConfig(t, "job.yaml", "survey:\n  url: s.csv\n"))
	require.NoError(t, err)
	require.ErrorContains(t, cfg.Validate(), "fact.url is required")
}

func TestLogConfig_Apply(t *testing.T) {
	defer log.SetLevel(log.GetLevel())

	require.NoError(t, LogConfig{Level: "warn", Format: "json"}.Apply())
	require.Equal(t, log.WarnLevel, log.GetLevel())
	require.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	require.Error(t, LogConfig{Level: "loud"}.Apply())
	require.Error(t, LogConfig{Level: "info", Format: "xml"}.Apply())
	log.SetFormatter(&log.TextFormatter{})
}
