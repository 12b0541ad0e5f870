// Package report renders coverage statistics and gate results for terminals,
// artifact files and Prometheus.
package report

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/covergate/pkg/coverage"
	"github.com/Sumatoshi-tech/covergate/pkg/stats"
)

const missingCell = "-"

// TableOptions controls Table.
type TableOptions struct {
	// Baselines limits the table to these baselines; empty renders all of them.
	Baselines []stats.Baseline
	// NoColor disables the percentage colors.
	NoColor bool
}

// Table writes one row per baseline and metric of the statistics.
func Table(w io.Writer, s *stats.Statistics, opts TableOptions) error {
	var f stats.Formatter

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.AppendHeader(table.Row{"Baseline", "Metric", "Value", "Covered", "Missed", "Total"})
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, AutoMerge: true},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})

	baselines := opts.Baselines
	if len(baselines) == 0 {
		baselines = s.Baselines()
	}

	rows := 0

	for _, baseline := range baselines {
		for _, v := range s.Values(baseline) {
			tbl.AppendRow(row(f, baseline, v, opts.NoColor))

			rows++
		}
	}

	if rows == 0 {
		tbl.AppendRow(table.Row{missingCell, "no coverage data", missingCell, missingCell, missingCell, missingCell})
	}

	_, err := fmt.Fprintln(w, tbl.Render())
	if err != nil {
		return fmt.Errorf("write statistics table: %w", err)
	}

	return nil
}

func row(f stats.Formatter, baseline stats.Baseline, v coverage.Value, noColor bool) table.Row {
	value := f.FormatValue(v)
	if !noColor {
		value = f.DisplayColors(baseline, v).Foreground().Sprint(value)
	}

	covered, missed, total := missingCell, missingCell, missingCell
	if v.Kind() == coverage.KindCoverage {
		covered = humanize.Comma(int64(v.Covered()))
		missed = humanize.Comma(int64(v.Missed()))
		total = humanize.Comma(int64(v.Total()))
	}

	return table.Row{f.BaselineName(baseline), f.DisplayName(v.Metric()), value, covered, missed, total}
}
