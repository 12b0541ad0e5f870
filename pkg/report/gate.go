package report

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/Sumatoshi-tech/covergate/pkg/gate"
)

var statusColors = map[gate.Status]*color.Color{
	gate.Inactive: color.New(color.Faint),
	gate.Passed:   color.New(color.FgGreen),
	gate.Warning:  color.New(color.FgYellow),
	gate.Failed:   color.New(color.FgRed, color.Bold),
}

// GateSummary writes one line per evaluated rule followed by the overall status.
func GateSummary(w io.Writer, result gate.Result) error {
	for _, warning := range result.Warnings {
		_, err := fmt.Fprintf(w, "%s %s\n", statusColors[gate.Warning].Sprint("!"), warning)
		if err != nil {
			return fmt.Errorf("write gate summary: %w", err)
		}
	}

	for _, item := range result.Items {
		_, err := fmt.Fprintf(w, "%s %s\n", marker(item.Status), item.Message)
		if err != nil {
			return fmt.Errorf("write gate summary: %w", err)
		}
	}

	_, err := fmt.Fprintf(w, "Quality gates: %s\n", statusColors[result.Status].Sprint(result.Status))
	if err != nil {
		return fmt.Errorf("write gate summary: %w", err)
	}

	return nil
}

func marker(status gate.Status) string {
	symbol := "-"

	switch status {
	case gate.Passed:
		symbol = "✓"
	case gate.Warning:
		symbol = "!"
	case gate.Failed:
		symbol = "✗"
	case gate.Inactive:
	}

	return statusColors[status].Sprint(symbol)
}
