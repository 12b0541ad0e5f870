package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Sumatoshi-tech/covergate/pkg/changes"
	"github.com/Sumatoshi-tech/covergate/pkg/convert"
	"github.com/Sumatoshi-tech/covergate/pkg/coverage"
	"github.com/Sumatoshi-tech/covergate/pkg/gate"
	"github.com/Sumatoshi-tech/covergate/pkg/history"
	"github.com/Sumatoshi-tech/covergate/pkg/observability"
	"github.com/Sumatoshi-tech/covergate/pkg/recorder"
	"github.com/Sumatoshi-tech/covergate/pkg/report"
	"github.com/Sumatoshi-tech/covergate/pkg/stats"
	"github.com/Sumatoshi-tech/covergate/pkg/trend"
)

// RecordCommand holds the flags of the record command.
type RecordCommand struct {
	app *app

	pattern      string
	format       string
	workspace    string
	label        string
	reference    string
	referenceDir string
	output       string
	artifacts    []string
	textfile     string
	workers      int
	noColor      bool
	noFail       bool
}

func newRecordCommand(a *app) *cobra.Command {
	rc := &RecordCommand{app: a}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record the coverage of a build",
		Long: `Parse the coverage reports of a build, compute statistics per baseline,
evaluate the quality gates against the reference build and store the build
in the history.

With --reference-dir the sources of the reference build are diffed against the
workspace to find modified lines; coverage reports found there with the same
pattern provide the indirect coverage changes.`,
		Args: cobra.NoArgs,
		RunE: rc.run,
	}

	cmd.Flags().StringVarP(&rc.pattern, "pattern", "p", "", "Report glob pattern, comma separated (default from config)")
	cmd.Flags().StringVarP(&rc.format, "format", "f", "", "Report format: cobertura, jacoco, pit, go-cover, parasoft")
	cmd.Flags().StringVarP(&rc.workspace, "workspace", "w", "", "Workspace the pattern is relative to")
	cmd.Flags().StringVar(&rc.label, "label", "", "Display name of the build (default #<number>)")
	cmd.Flags().StringVar(&rc.reference, "reference", "", "Reference build number (default: latest successful build)")
	cmd.Flags().StringVar(&rc.referenceDir, "reference-dir", "", "Checkout of the reference build for change detection")
	cmd.Flags().StringVarP(&rc.output, "output", "o", "", "Directory of the result artifacts")
	cmd.Flags().StringSliceVar(&rc.artifacts, "artifact", nil, "Artifact formats: json, yaml")
	cmd.Flags().StringVar(&rc.textfile, "textfile", "", "Write coverage gauges to a Prometheus textfile")
	cmd.Flags().IntVar(&rc.workers, "workers", -1, "Parallel report parsers (0 = CPU count)")
	cmd.Flags().BoolVar(&rc.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().BoolVar(&rc.noFail, "no-fail", false, "Exit successfully even when a quality gate fails")

	return cmd
}

func (rc *RecordCommand) applyConfig() {
	cfg := rc.app.cfg.Report

	rc.pattern = firstNonEmpty(rc.pattern, cfg.Pattern)
	rc.format = firstNonEmpty(rc.format, cfg.Format)
	rc.workspace = firstNonEmpty(rc.workspace, cfg.Workspace)
	rc.output = firstNonEmpty(rc.output, cfg.Output)
	rc.textfile = firstNonEmpty(rc.textfile, cfg.Textfile)
	rc.reference = firstNonEmpty(rc.reference, rc.app.cfg.Gate.Reference)

	if len(rc.artifacts) == 0 {
		rc.artifacts = cfg.Artifacts
	}

	if rc.workers < 0 {
		rc.workers = cfg.Workers
	}
}

func (rc *RecordCommand) run(cmd *cobra.Command, _ []string) error {
	shutdown, err := rc.app.setup(cmd, observability.ModeCLI)
	if err != nil {
		return err
	}
	defer shutdown()

	rc.applyConfig()

	ctx, span := rc.app.tracer.Start(cmd.Context(), "covergate.record.build")
	defer span.End()

	rules, err := rc.app.cfg.Gate.GateRules()
	if err != nil {
		return err
	}

	rec, err := rc.newRecorder(rc.workspace)
	if err != nil {
		return err
	}

	result, err := rec.Record(ctx)
	if err != nil {
		return err
	}

	err = rc.attachChanges(ctx, result.Root)
	if err != nil {
		return err
	}

	store, err := history.Open(ctx, rc.app.cfg.History.Driver, rc.app.cfg.History.Path, rc.app.logger)
	if err != nil {
		return err
	}

	if store != nil {
		defer store.Close()
	}

	build, ref, err := rc.resolveBuild(ctx, store)
	if err != nil {
		return err
	}

	statistics := stats.Compute(result.Root)

	var referenceStats *stats.Statistics
	if ref.OK() {
		referenceStats = ref.Record.Statistics
	}

	verdict := gate.Evaluate(rules, statistics, referenceStats)
	rc.app.metrics.GateEvaluated(ctx, verdict.Status.String())

	span.SetAttributes(
		attribute.Int("covergate.build", build.Number),
		attribute.String("covergate.gate.status", verdict.Status.String()),
	)

	err = rc.store(ctx, store, build, statistics, verdict)
	if err != nil {
		return err
	}

	err = rc.publish(cmd, build, ref, result, statistics, &verdict, rec.Events().Events())
	if err != nil {
		return err
	}

	if !verdict.IsSuccessful() && !rc.noFail {
		return ErrQualityGateFailed
	}

	return nil
}

func (rc *RecordCommand) newRecorder(workspace string) (*recorder.Recorder, error) {
	opts := recorder.Options{
		Workspace: workspace,
		Pattern:   rc.pattern,
		Format:    rc.format,
		Workers:   rc.workers,
	}

	if strings.EqualFold(rc.format, recorder.FormatParasoft) {
		opts.Format = recorder.FormatParasoft
		opts.Converter = convert.NewParasoftReport(
			convert.NewXSLTConverter(rc.app.cfg.Convert.Processor),
			rc.app.cfg.Convert.Stylesheet,
			workspace,
		)
	}

	return recorder.New(opts, rc.app.logger, rc.app.metrics)
}

// attachChanges marks modified lines and indirect coverage changes when a
// reference checkout is given.
func (rc *RecordCommand) attachChanges(ctx context.Context, root *coverage.Node) error {
	if rc.referenceDir == "" {
		return nil
	}

	diffs, err := changes.DiffDirs(ctx, changes.Differ{}, rc.referenceDir, rc.workspace, root.Files())
	if err != nil {
		return err
	}

	attached := changes.AttachChangedLines(root, diffs)
	rc.app.logger.InfoContext(ctx, "modified lines attached", "files", attached, "changed", len(diffs))

	refRecorder, err := rc.newRecorder(rc.referenceDir)
	if err != nil {
		return err
	}

	refResult, err := refRecorder.Record(ctx)
	if errors.Is(err, recorder.ErrNoCoverageData) {
		rc.app.logger.WarnContext(ctx, "reference checkout has no coverage", "dir", rc.referenceDir)

		return nil
	}

	if err != nil {
		return fmt.Errorf("record reference: %w", err)
	}

	changes.AttachIndirectChanges(root, refResult.Root, diffs)

	return nil
}

func (rc *RecordCommand) resolveBuild(ctx context.Context, store history.Store) (trend.Build, history.Reference, error) {
	build := trend.Build{Number: 1, Label: rc.label}

	if store == nil {
		return build, history.Reference{Status: history.NoPreviousBuild}, nil
	}

	number, err := history.NextBuildNumber(ctx, store)
	if err != nil {
		return build, history.Reference{}, err
	}

	build.Number = number

	ref, err := history.ResolveReference(ctx, store, number, rc.reference)
	if err != nil {
		return build, history.Reference{}, err
	}

	rc.app.logger.InfoContext(ctx, "reference build resolved", "build", number, "status", ref.Status.String())

	return build, ref, nil
}

func (rc *RecordCommand) store(
	ctx context.Context, store history.Store, build trend.Build, statistics *stats.Statistics, verdict gate.Result,
) error {
	if store == nil {
		return nil
	}

	err := store.Save(ctx, history.Record{
		Build:      build,
		Status:     buildStatus(verdict.Status),
		RecordedAt: rc.app.now().UTC(),
		Statistics: statistics,
	})
	if err != nil {
		return err
	}

	keep := rc.app.cfg.History.Keep
	if keep <= 0 {
		return nil
	}

	pruned, err := store.Prune(ctx, keep)
	if err != nil {
		return err
	}

	if pruned > 0 {
		rc.app.logger.DebugContext(ctx, "history pruned", "removed", pruned, "keep", keep)
	}

	return nil
}

func (rc *RecordCommand) publish(
	cmd *cobra.Command,
	build trend.Build,
	ref history.Reference,
	result *recorder.Result,
	statistics *stats.Statistics,
	verdict *gate.Result,
	events []recorder.Event,
) error {
	if !rc.app.opts.quiet {
		out := cmd.OutOrStdout()

		rc.app.printf(cmd, "Build %s: %d report(s), %d parsed\n", build.DisplayName(), len(result.Files), len(result.Parsed))

		err := report.Table(out, statistics, report.TableOptions{NoColor: rc.noColor})
		if err != nil {
			return err
		}

		err = report.GateSummary(out, *verdict)
		if err != nil {
			return err
		}
	}

	artifact := &report.Artifact{
		Build:      build,
		RecordedAt: rc.app.now().UTC(),
		Files:      result.Parsed,
		Statistics: statistics,
		Gate:       verdict,
		Events:     report.Events(events),
	}

	if ref.OK() {
		artifact.Reference = ref.Record.Build.DisplayName()
	}

	if len(rc.artifacts) > 0 {
		paths, err := report.SaveArtifact(rc.output, artifact, rc.artifacts...)
		if err != nil {
			return err
		}

		rc.app.logger.Info("artifacts written", "paths", paths)
	}

	if rc.textfile != "" {
		exporter := report.NewExporter()
		exporter.Observe(build.Number, statistics, verdict)

		err := exporter.WriteTextfile(rc.textfile)
		if err != nil {
			return err
		}
	}

	return nil
}

func buildStatus(status gate.Status) history.BuildStatus {
	switch status {
	case gate.Failed:
		return history.Failure
	case gate.Warning:
		return history.Unstable
	case gate.Inactive, gate.Passed:
		return history.Success
	default:
		return history.Success
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
