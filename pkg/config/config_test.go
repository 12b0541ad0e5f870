package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/covergate/pkg/config"
	"github.com/Sumatoshi-tech/covergate/pkg/coverage"
	"github.com/Sumatoshi-tech/covergate/pkg/gate"
	"github.com/Sumatoshi-tech/covergate/pkg/observability"
	"github.com/Sumatoshi-tech/covergate/pkg/stats"
	"github.com/Sumatoshi-tech/covergate/pkg/trend"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".covergate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultReportPattern, cfg.Report.Pattern)
	assert.Equal(t, config.DefaultReportFormat, cfg.Report.Format)
	assert.Equal(t, []string{"json"}, cfg.Report.Artifacts)
	assert.Equal(t, "sqlite", cfg.History.Driver)
	assert.Equal(t, config.DefaultHistoryKeep, cfg.History.Keep)
	assert.Equal(t, config.DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "xsltproc", cfg.Convert.Processor)
	assert.Empty(t, cfg.Gate.Rules)

	size, err := cfg.Source.CacheBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(32<<20), size)

	metrics, err := cfg.Trend.MetricList()
	require.NoError(t, err)
	assert.Equal(t, []coverage.Metric{coverage.Line, coverage.Branch}, metrics)
	assert.Equal(t, trend.Window{MaxBuilds: config.DefaultTrendMaxBuilds}, cfg.Trend.Window())
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
report:
  pattern: "**/cobertura.xml"
  format: cobertura
  workers: 4
  artifacts: [json, yaml]
gate:
  rules:
    - threshold: 80
      criticality: failure
    - baseline: modified_lines
      metric: branch
      threshold: 60
history:
  driver: memory
  keep: 10
trend:
  metrics: [line, mutation]
  theme: dark
  max_builds: 20
  max_age: 720h
logging:
  level: debug
  format: json
server:
  port: 9000
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "**/cobertura.xml", cfg.Report.Pattern)
	assert.Equal(t, 4, cfg.Report.Workers)
	assert.Equal(t, []string{"json", "yaml"}, cfg.Report.Artifacts)
	assert.Equal(t, "memory", cfg.History.Driver)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, trend.Window{MaxBuilds: 20, MaxAge: 720 * time.Hour}, cfg.Trend.Window())

	rules, err := cfg.Gate.GateRules()
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, gate.Failure, rules[0].Criticality)
	assert.InDelta(t, 80.0, rules[0].Threshold, 1e-9)
	assert.Equal(t, stats.ModifiedLines, rules[1].Baseline)
	assert.Equal(t, coverage.Branch, rules[1].Metric)
	assert.Equal(t, gate.Unstable, rules[1].Criticality)

	obs := cfg.Observability("1.2.3", observability.ModeServe)
	assert.Equal(t, slog.LevelDebug, obs.LogLevel)
	assert.True(t, obs.LogJSON)
	assert.Equal(t, "1.2.3", obs.ServiceVersion)
	assert.Equal(t, observability.ModeServe, obs.Mode)
}

func TestGateRules_FileBeforeInline(t *testing.T) {
	t.Parallel()

	gateFile := filepath.Join(t.TempDir(), "gates.yaml")
	require.NoError(t, os.WriteFile(gateFile, []byte(`rules:
  - metric: instruction
    threshold: 50
`), 0o600))

	cfg := config.GateConfig{
		File:  gateFile,
		Rules: []gate.RuleConfig{{Metric: "line", Threshold: 70}},
	}

	rules, err := cfg.GateRules()
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, coverage.Instruction, rules[0].Metric)
	assert.Equal(t, coverage.Line, rules[1].Metric)

	cfg.File = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = cfg.GateRules()
	require.Error(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"port", "server:\n  port: 70000\n", config.ErrInvalidPort},
		{"workers", "report:\n  workers: -1\n", config.ErrInvalidWorkers},
		{"format", "report:\n  format: lcov\n", config.ErrInvalidFormat},
		{"artifact", "report:\n  artifacts: [gob]\n", config.ErrInvalidArtifact},
		{"driver", "history:\n  driver: redis\n", config.ErrInvalidDriver},
		{"keep", "history:\n  keep: -2\n", config.ErrInvalidKeep},
		{"sample ratio", "telemetry:\n  sample_ratio: 1.5\n", config.ErrInvalidSampleRatio},
		{"log level", "logging:\n  level: loud\n", config.ErrInvalidLogLevel},
		{"log format", "logging:\n  format: xml\n", config.ErrInvalidLogFormat},
		{"cache size", "source:\n  cache_size: lots\n", config.ErrInvalidCacheSize},
		{"trend metric", "trend:\n  metrics: [speed]\n", coverage.ErrUnknownMetric},
		{"trend window", "trend:\n  max_builds: -1\n", config.ErrInvalidTrendWindow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfig(t, tt.content))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadConfig_Parasoft(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, "report:\n  format: parasoft\n"))
	require.NoError(t, err)
	assert.Equal(t, "parasoft", cfg.Report.Format)
	assert.Contains(t, config.ReportFormats(), "go-cover")
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_Environment(t *testing.T) { //nolint:paralleltest // uses t.Setenv
	t.Setenv("COVERGATE_REPORT_FORMAT", "pit")
	t.Setenv("COVERGATE_SERVER_PORT", "9191")
	t.Setenv("COVERGATE_HISTORY_DRIVER", "none")

	cfg, err := config.LoadConfig(writeConfig(t, "report:\n  format: cobertura\n"))
	require.NoError(t, err)

	assert.Equal(t, "pit", cfg.Report.Format)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "none", cfg.History.Driver)
}
