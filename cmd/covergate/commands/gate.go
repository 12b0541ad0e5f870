package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/covergate/pkg/gate"
	"github.com/Sumatoshi-tech/covergate/pkg/history"
	"github.com/Sumatoshi-tech/covergate/pkg/observability"
	"github.com/Sumatoshi-tech/covergate/pkg/report"
	"github.com/Sumatoshi-tech/covergate/pkg/stats"
)

// Gate command errors.
var (
	ErrNoHistory = errors.New("history is disabled; use --artifact")
	ErrNoBuilds  = errors.New("no recorded builds")
)

// GateCommand holds the flags of the gate command.
type GateCommand struct {
	app *app

	build      int
	reference  string
	artifact   string
	format     string
	printRules bool
	noColor    bool
}

func newGateCommand(a *app) *cobra.Command {
	gc := &GateCommand{app: a}

	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Evaluate the quality gates of a recorded build",
		Long: `Evaluate the configured quality gates against a build of the history, or
against the statistics of a result artifact. Exits with an error when a gate
fails.`,
		Args: cobra.NoArgs,
		RunE: gc.run,
	}

	cmd.Flags().IntVar(&gc.build, "build", 0, "Build number (default: latest)")
	cmd.Flags().StringVar(&gc.reference, "reference", "", "Reference build number (default: latest successful build)")
	cmd.Flags().StringVar(&gc.artifact, "artifact", "", "Evaluate the artifact in this directory instead of the history")
	cmd.Flags().StringVar(&gc.format, "artifact-format", "json", "Format of the artifact: json, yaml")
	cmd.Flags().BoolVar(&gc.printRules, "print-rules", false, "Print the effective rules as YAML and exit")
	cmd.Flags().BoolVar(&gc.noColor, "no-color", false, "Disable colored output")

	return cmd
}

func (gc *GateCommand) run(cmd *cobra.Command, _ []string) error {
	shutdown, err := gc.app.setup(cmd, observability.ModeCLI)
	if err != nil {
		return err
	}
	defer shutdown()

	if gc.noColor {
		color.NoColor = true
	}

	rules, err := gc.app.cfg.Gate.GateRules()
	if err != nil {
		return err
	}

	if gc.printRules {
		data, marshalErr := gate.Marshal(rules)
		if marshalErr != nil {
			return marshalErr
		}

		_, err = cmd.OutOrStdout().Write(data)
		if err != nil {
			return fmt.Errorf("print rules: %w", err)
		}

		return nil
	}

	ctx, span := gc.app.tracer.Start(cmd.Context(), "covergate.gate")
	defer span.End()

	current, reference, err := gc.statistics(ctx)
	if err != nil {
		return err
	}

	verdict := gate.Evaluate(rules, current, reference)
	gc.app.metrics.GateEvaluated(ctx, verdict.Status.String())

	if !gc.app.opts.quiet {
		err = report.GateSummary(cmd.OutOrStdout(), verdict)
		if err != nil {
			return err
		}
	}

	if !verdict.IsSuccessful() {
		return ErrQualityGateFailed
	}

	return nil
}

// statistics returns the current and, when available, the reference statistics.
func (gc *GateCommand) statistics(ctx context.Context) (current, reference *stats.Statistics, err error) {
	if gc.artifact != "" {
		artifact, loadErr := report.LoadArtifact(gc.artifact, gc.format)
		if loadErr != nil {
			return nil, nil, loadErr
		}

		current = artifact.Statistics
	}

	store, err := history.Open(ctx, gc.app.cfg.History.Driver, gc.app.cfg.History.Path, gc.app.logger)
	if err != nil {
		return nil, nil, err
	}

	if store == nil {
		if current == nil {
			return nil, nil, ErrNoHistory
		}

		return current, nil, nil
	}
	defer store.Close()

	number := gc.build

	if current == nil {
		rec, recErr := gc.record(ctx, store)
		if recErr != nil {
			return nil, nil, recErr
		}

		current = rec.Statistics
		number = rec.Build.Number
	} else if number == 0 {
		number, err = history.NextBuildNumber(ctx, store)
		if err != nil {
			return nil, nil, err
		}
	}

	ref, err := history.ResolveReference(ctx, store, number, gc.reference)
	if err != nil {
		return nil, nil, err
	}

	gc.app.logger.DebugContext(ctx, "reference build resolved", "build", number, "status", ref.Status.String())

	if ref.OK() {
		reference = ref.Record.Statistics
	}

	return current, reference, nil
}

func (gc *GateCommand) record(ctx context.Context, store history.Store) (history.Record, error) {
	if gc.build > 0 {
		return store.Get(ctx, gc.build)
	}

	rec, err := history.Latest(ctx, store)
	if errors.Is(err, history.ErrNotFound) {
		return history.Record{}, ErrNoBuilds
	}

	return rec, err
}
