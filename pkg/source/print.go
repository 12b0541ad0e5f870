package source

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/covergate/pkg/colors"
)

// PrintOptions controls Print.
type PrintOptions struct {
	// OnlyModified prints modified lines only.
	OnlyModified bool
	// OnlyInstrumented skips lines without coverage counters.
	OnlyInstrumented bool
}

var statusColors = map[Status]colors.ID{
	Full:    colors.Excellent,
	Partial: colors.Average,
	None:    colors.Insufficient,
}

// Print writes the annotated lines as a table. The hits column is colored by
// line status when the terminal supports colors.
func Print(w io.Writer, title string, lines []Line, opts PrintOptions) error {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Format.Footer = text.FormatDefault
	tbl.SetTitle(title)
	tbl.AppendHeader(table.Row{"Line", "Hits", "Code"})
	tbl.SetColumnConfigs([]table.ColumnConfig{{Number: 1, Align: text.AlignRight}})

	printed := 0

	for _, l := range lines {
		if opts.OnlyModified && !l.Modified {
			continue
		}

		if opts.OnlyInstrumented && l.Status == NotInstrumented {
			continue
		}

		number := strconv.Itoa(l.Number)
		if l.Modified {
			number = "*" + number
		}

		tbl.AppendRow(table.Row{number, hits(l), l.Code})

		printed++
	}

	counts := Summary(lines)
	tbl.AppendFooter(table.Row{"", "", fmt.Sprintf("full %d, partial %d, none %d, %d of %d lines shown",
		counts[Full], counts[Partial], counts[None], printed, len(lines))})

	_, err := fmt.Fprintln(w, tbl.Render())
	if err != nil {
		return fmt.Errorf("print source: %w", err)
	}

	return nil
}

func hits(l Line) string {
	id, ok := statusColors[l.Status]
	if !ok {
		return ""
	}

	return id.Colors().Style().Sprint(" " + l.Summary + " ")
}
