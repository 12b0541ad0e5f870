// Package commands implements the covergate command line.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/covergate/pkg/config"
	"github.com/Sumatoshi-tech/covergate/pkg/observability"
	"github.com/Sumatoshi-tech/covergate/pkg/version"
)

// ErrQualityGateFailed is returned when a quality gate fails the build.
var ErrQualityGateFailed = errors.New("quality gate failed")

type observabilityInit func(cfg observability.Config, readers ...sdkmetric.Reader) (observability.Providers, error)

// globalOptions are the persistent flags of the root command.
type globalOptions struct {
	configPath string
	verbose    bool
	quiet      bool
	logJSON    bool
}

// app carries what every command needs once setup ran.
type app struct {
	opts   globalOptions
	initFn observabilityInit
	now    func() time.Time

	cfg     *config.Config
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.RecordMetrics
}

// NewRootCommand creates the covergate command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommandWithDeps(observability.Init, time.Now)
}

func newRootCommandWithDeps(initFn observabilityInit, now func() time.Time) *cobra.Command {
	a := &app{initFn: initFn, now: now}

	root := &cobra.Command{
		Use:   "covergate",
		Short: "Coverage normalization, statistics and quality gates",
		Long: `covergate reads Cobertura, JaCoCo, PIT and Go coverage reports, computes
coverage statistics per baseline, evaluates quality gates and tracks trends
across builds.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&a.opts.configPath, "config", "c", "", "config file (default: .covergate.yaml)")
	root.PersistentFlags().BoolVarP(&a.opts.verbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().BoolVarP(&a.opts.quiet, "quiet", "q", false, "suppress output")
	root.PersistentFlags().BoolVar(&a.opts.logJSON, "log-json", false, "write logs as JSON")

	root.AddCommand(
		newRecordCommand(a),
		newGateCommand(a),
		newTrendCommand(a),
		newSourceCommand(a),
		newConvertCommand(a),
		newServeCommand(a),
		newVersionCommand(),
	)

	return root
}

// setup loads the configuration and starts telemetry. The returned function
// flushes telemetry and must be called when the command finishes.
func (a *app) setup(cmd *cobra.Command, mode observability.AppMode, readers ...sdkmetric.Reader) (func(), error) {
	cfg, err := config.LoadConfig(a.opts.configPath)
	if err != nil {
		return nil, err
	}

	obsCfg := cfg.Observability(version.Get().Version, mode)

	switch {
	case a.opts.verbose:
		obsCfg.LogLevel = slog.LevelDebug
	case a.opts.quiet:
		obsCfg.LogLevel = slog.LevelError
	}

	if a.opts.logJSON {
		obsCfg.LogJSON = true
	}

	providers, err := a.initFn(obsCfg, readers...)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	a.cfg = cfg
	a.logger = observability.NewLogger(cmd.ErrOrStderr(), obsCfg)
	a.tracer = providers.Tracer

	if a.tracer == nil {
		a.tracer = nooptrace.NewTracerProvider().Tracer("covergate")
	}

	if providers.Meter != nil {
		metrics, metricsErr := observability.NewRecordMetrics(providers.Meter)
		if metricsErr != nil {
			a.logger.Warn("record metrics unavailable", "error", metricsErr)
		}

		a.metrics = metrics
	}

	return func() {
		if providers.Shutdown == nil {
			return
		}

		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			a.logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}, nil
}

// printf writes progress to stdout unless --quiet is set.
func (a *app) printf(cmd *cobra.Command, format string, args ...any) {
	if a.opts.quiet {
		return
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
