// Package config provides configuration loading and validation for covergate.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/covergate/pkg/coverage"
	"github.com/Sumatoshi-tech/covergate/pkg/coverage/parser"
	"github.com/Sumatoshi-tech/covergate/pkg/gate"
	"github.com/Sumatoshi-tech/covergate/pkg/history"
	"github.com/Sumatoshi-tech/covergate/pkg/observability"
	"github.com/Sumatoshi-tech/covergate/pkg/persist"
	"github.com/Sumatoshi-tech/covergate/pkg/recorder"
	"github.com/Sumatoshi-tech/covergate/pkg/trend"
)

// Sentinel validation errors.
var (
	ErrInvalidPort        = errors.New("invalid server port")
	ErrInvalidWorkers     = errors.New("report workers must not be negative")
	ErrInvalidFormat      = errors.New("unsupported report format")
	ErrInvalidDriver      = errors.New("unsupported history driver")
	ErrInvalidKeep        = errors.New("history keep must not be negative")
	ErrInvalidSampleRatio = errors.New("telemetry sample ratio must be within [0, 1]")
	ErrInvalidLogLevel    = errors.New("invalid log level")
	ErrInvalidLogFormat   = errors.New("log format must be text or json")
	ErrInvalidArtifact    = errors.New("unsupported artifact format")
	ErrInvalidCacheSize   = errors.New("invalid source cache size")
	ErrInvalidTrendWindow = errors.New("trend window must not be negative")
)

// Config holds all configuration of covergate.
type Config struct {
	Report    ReportConfig    `mapstructure:"report"`
	Convert   ConvertConfig   `mapstructure:"convert"`
	Gate      GateConfig      `mapstructure:"gate"`
	History   HistoryConfig   `mapstructure:"history"`
	Trend     TrendConfig     `mapstructure:"trend"`
	Source    SourceConfig    `mapstructure:"source"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Server    ServerConfig    `mapstructure:"server"`
}

// ReportConfig selects the coverage reports of a build and where results go.
type ReportConfig struct {
	Pattern        string   `mapstructure:"pattern"`
	Format         string   `mapstructure:"format"`
	Workspace      string   `mapstructure:"workspace"`
	SourceEncoding string   `mapstructure:"source_encoding"`
	Output         string   `mapstructure:"output"`
	Artifacts      []string `mapstructure:"artifacts"`
	Textfile       string   `mapstructure:"textfile"`
	Workers        int      `mapstructure:"workers"`
}

// ConvertConfig configures the XSLT conversion of proprietary reports.
type ConvertConfig struct {
	Stylesheet string `mapstructure:"stylesheet"`
	Processor  string `mapstructure:"xsltproc"`
}

// GateConfig holds the quality gates. Rules of File come before inline rules.
type GateConfig struct {
	File      string            `mapstructure:"file"`
	Reference string            `mapstructure:"reference"`
	Rules     []gate.RuleConfig `mapstructure:"rules"`
}

// HistoryConfig configures the build history store.
type HistoryConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	Keep   int    `mapstructure:"keep"`
}

// TrendConfig configures trend charts.
type TrendConfig struct {
	Metrics   []string      `mapstructure:"metrics"`
	Theme     string        `mapstructure:"theme"`
	MaxBuilds int           `mapstructure:"max_builds"`
	MaxAge    time.Duration `mapstructure:"max_age"`
}

// SourceConfig configures source annotation.
type SourceConfig struct {
	Directories []string `mapstructure:"directories"`
	CacheSize   string   `mapstructure:"cache_size"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	Environment  string  `mapstructure:"environment"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	Port         int           `mapstructure:"port"`
}

// LoadConfig loads configuration from file and environment variables. An
// empty path searches .covergate.yaml in the working directory, ./config and
// /etc/covergate; a missing file there is not an error.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(".covergate")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/covergate")
	}

	viperCfg.SetEnvPrefix("COVERGATE")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("report.pattern", DefaultReportPattern)
	viperCfg.SetDefault("report.format", DefaultReportFormat)
	viperCfg.SetDefault("report.workspace", ".")
	viperCfg.SetDefault("report.source_encoding", DefaultSourceEncoding)
	viperCfg.SetDefault("report.output", DefaultReportOutput)
	viperCfg.SetDefault("report.artifacts", []string{"json"})
	viperCfg.SetDefault("report.textfile", "")
	viperCfg.SetDefault("report.workers", DefaultReportWorkers)

	viperCfg.SetDefault("convert.stylesheet", "")
	viperCfg.SetDefault("convert.xsltproc", DefaultXSLTProcessor)

	viperCfg.SetDefault("gate.file", "")
	viperCfg.SetDefault("gate.reference", "")
	viperCfg.SetDefault("gate.rules", []gate.RuleConfig{})

	viperCfg.SetDefault("history.driver", history.DriverSQLite)
	viperCfg.SetDefault("history.path", DefaultHistoryPath)
	viperCfg.SetDefault("history.keep", DefaultHistoryKeep)

	viperCfg.SetDefault("trend.metrics", []string{coverage.Line.Tag(), coverage.Branch.Tag()})
	viperCfg.SetDefault("trend.theme", string(trend.ThemeLight))
	viperCfg.SetDefault("trend.max_builds", DefaultTrendMaxBuilds)
	viperCfg.SetDefault("trend.max_age", "0s")

	viperCfg.SetDefault("source.directories", []string{})
	viperCfg.SetDefault("source.cache_size", DefaultSourceCacheSize)

	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "text")

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.environment", "")
	viperCfg.SetDefault("telemetry.sample_ratio", 1.0)

	viperCfg.SetDefault("server.host", DefaultServerHost)
	viperCfg.SetDefault("server.port", DefaultServerPort)
	viperCfg.SetDefault("server.read_timeout", "30s")
	viperCfg.SetDefault("server.write_timeout", "30s")
	viperCfg.SetDefault("server.idle_timeout", "60s")
}

func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > maxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, config.Server.Port)
	}

	if config.Report.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, config.Report.Workers)
	}

	if !slices.Contains(ReportFormats(), strings.ToLower(config.Report.Format)) {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, config.Report.Format)
	}

	for _, format := range config.Report.Artifacts {
		_, err := persist.CodecFor(format)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidArtifact, format)
		}
	}

	switch config.History.Driver {
	case history.DriverMemory, history.DriverSQLite, history.DriverNone:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDriver, config.History.Driver)
	}

	if config.History.Keep < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidKeep, config.History.Keep)
	}

	if config.Telemetry.SampleRatio < 0 || config.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidSampleRatio, config.Telemetry.SampleRatio)
	}

	_, err := config.Logging.SlogLevel()
	if err != nil {
		return err
	}

	if config.Logging.Format != "text" && config.Logging.Format != "json" {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	_, err = config.Source.CacheBytes()
	if err != nil {
		return err
	}

	_, err = config.Trend.MetricList()
	if err != nil {
		return err
	}

	if config.Trend.MaxBuilds < 0 || config.Trend.MaxAge < 0 {
		return fmt.Errorf("%w: %d builds, %s", ErrInvalidTrendWindow, config.Trend.MaxBuilds, config.Trend.MaxAge)
	}

	return nil
}

// ReportFormats returns the accepted report.format values.
func ReportFormats() []string {
	return append(parser.Formats(), recorder.FormatParasoft)
}

// SlogLevel parses the configured level.
func (c LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(c.Level))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Level)
	}

	return level, nil
}

// CacheBytes parses the human readable cache size, e.g. "32MiB".
func (c SourceConfig) CacheBytes() (int64, error) {
	size, err := humanize.ParseBytes(c.CacheSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidCacheSize, c.CacheSize, err)
	}

	return int64(min(size, maxCacheBytes)), nil
}

// Window returns the build window of trend charts.
func (c TrendConfig) Window() trend.Window {
	return trend.Window{MaxBuilds: c.MaxBuilds, MaxAge: c.MaxAge}
}

// MetricList parses the configured trend metrics.
func (c TrendConfig) MetricList() ([]coverage.Metric, error) {
	metrics := make([]coverage.Metric, 0, len(c.Metrics))

	for _, tag := range c.Metrics {
		metric, err := coverage.ParseMetric(tag)
		if err != nil {
			return nil, err
		}

		metrics = append(metrics, metric)
	}

	return metrics, nil
}

// GateRules loads the rules of the gate file followed by the inline rules.
func (c GateConfig) GateRules() ([]gate.Rule, error) {
	var rules []gate.Rule

	if c.File != "" {
		fromFile, err := gate.LoadFile(c.File)
		if err != nil {
			return nil, err
		}

		rules = append(rules, fromFile...)
	}

	inline, err := gate.Rules(c.Rules)
	if err != nil {
		return nil, err
	}

	return append(rules, inline...), nil
}

// Observability builds the telemetry configuration of a run.
func (c *Config) Observability(version string, mode observability.AppMode) observability.Config {
	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = version
	cfg.Mode = mode
	cfg.Environment = c.Telemetry.Environment
	cfg.OTLPEndpoint = c.Telemetry.OTLPEndpoint
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(c.Telemetry.OTLPHeaders)
	cfg.OTLPInsecure = c.Telemetry.OTLPInsecure
	cfg.SampleRatio = c.Telemetry.SampleRatio
	cfg.LogJSON = c.Logging.Format == "json"

	level, err := c.Logging.SlogLevel()
	if err == nil {
		cfg.LogLevel = level
	}

	return cfg
}
