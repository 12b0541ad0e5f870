package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/covergate/pkg/coverage"
	"github.com/Sumatoshi-tech/covergate/pkg/history"
	"github.com/Sumatoshi-tech/covergate/pkg/observability"
	"github.com/Sumatoshi-tech/covergate/pkg/trend"
)

// TrendCommand holds the flags of the trend command.
type TrendCommand struct {
	app *app

	output    string
	metrics   []string
	theme     string
	asJSON    bool
	maxBuilds int
	maxAge    time.Duration
}

func newTrendCommand(a *app) *cobra.Command {
	tc := &TrendCommand{app: a}

	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Render the coverage trend of the recorded builds",
		Args:  cobra.NoArgs,
		RunE:  tc.run,
	}

	cmd.Flags().StringVarP(&tc.output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringSliceVarP(&tc.metrics, "metric", "m", nil, "Metrics to chart (default from config)")
	cmd.Flags().StringVar(&tc.theme, "theme", "", "Chart theme: light, dark")
	cmd.Flags().BoolVar(&tc.asJSON, "json", false, "Write the chart model as JSON instead of HTML")
	cmd.Flags().IntVar(&tc.maxBuilds, "max-builds", -1, "Chart at most this many builds, 0 for all (default from config)")
	cmd.Flags().DurationVar(&tc.maxAge, "max-age", -1, "Skip builds older than this, 0 for all (default from config)")

	return cmd
}

func (tc *TrendCommand) run(cmd *cobra.Command, _ []string) (err error) {
	shutdown, err := tc.app.setup(cmd, observability.ModeCLI)
	if err != nil {
		return err
	}
	defer shutdown()

	metrics := tc.app.cfg.Trend.Metrics
	if len(tc.metrics) > 0 {
		metrics = tc.metrics
	}

	theme := trend.ParseTheme(firstNonEmpty(tc.theme, tc.app.cfg.Trend.Theme))

	window := tc.app.cfg.Trend.Window()
	if tc.maxBuilds >= 0 {
		window.MaxBuilds = tc.maxBuilds
	}

	if tc.maxAge >= 0 {
		window.MaxAge = tc.maxAge
	}

	model, err := chartFromHistory(cmd.Context(), tc.app, metrics, window)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()

	if tc.output != "" {
		f, createErr := os.Create(tc.output)
		if createErr != nil {
			return fmt.Errorf("create trend output: %w", createErr)
		}

		defer func() {
			closeErr := f.Close()
			if err == nil && closeErr != nil {
				err = fmt.Errorf("close trend output: %w", closeErr)
			}
		}()

		w = f
	}

	if tc.asJSON {
		return writeChartJSON(w, model)
	}

	return trend.RenderHTML(w, model, theme)
}

// chartFromHistory builds the trend chart of the builds with coverage inside the window.
func chartFromHistory(ctx context.Context, a *app, tags []string, window trend.Window) (trend.LinesChartModel, error) {
	store, err := history.Open(ctx, a.cfg.History.Driver, a.cfg.History.Path, a.logger)
	if err != nil {
		return trend.LinesChartModel{}, err
	}

	if store == nil {
		return trend.LinesChartModel{}, ErrNoHistory
	}
	defer store.Close()

	return chartFromStore(ctx, store, tags, window, a.now())
}

func chartFromStore(
	ctx context.Context, store history.Store, tags []string, window trend.Window, now time.Time,
) (trend.LinesChartModel, error) {
	metrics := make([]coverage.Metric, 0, len(tags))

	for _, tag := range tags {
		metric, err := coverage.ParseMetric(tag)
		if err != nil {
			return trend.LinesChartModel{}, err
		}

		metrics = append(metrics, metric)
	}

	records, err := store.List(ctx)
	if err != nil {
		return trend.LinesChartModel{}, err
	}

	return trend.Chart(window.Apply(history.Results(records), now), metrics...), nil
}

func writeChartJSON(w io.Writer, model trend.LinesChartModel) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	err := encoder.Encode(model)
	if err != nil {
		return fmt.Errorf("encode trend chart: %w", err)
	}

	return nil
}
