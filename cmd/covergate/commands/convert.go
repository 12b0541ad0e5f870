package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/covergate/pkg/convert"
	"github.com/Sumatoshi-tech/covergate/pkg/observability"
)

// ErrStylesheetRequired is returned when no conversion stylesheet is configured.
var ErrStylesheetRequired = errors.New("conversion stylesheet required: use --stylesheet or convert.stylesheet")

// ConvertCommand holds the flags of the convert command.
type ConvertCommand struct {
	app *app

	stylesheet string
	processor  string
	workspace  string
}

func newConvertCommand(a *app) *cobra.Command {
	cc := &ConvertCommand{app: a}

	cmd := &cobra.Command{
		Use:   "convert <report.xml>...",
		Short: "Convert Parasoft coverage reports to Cobertura",
		Long: `Convert Parasoft coverage reports with an XSLT stylesheet. The Cobertura
files are written to generatedCoverageFiles/<id>/ next to each report and their
paths are printed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: cc.run,
	}

	cmd.Flags().StringVar(&cc.stylesheet, "stylesheet", "", "XSLT stylesheet (default from config)")
	cmd.Flags().StringVar(&cc.processor, "xsltproc", "", "XSLT processor binary (default from config)")
	cmd.Flags().StringVarP(&cc.workspace, "workspace", "w", "", "Build working directory passed to the stylesheet")

	return cmd
}

func (cc *ConvertCommand) run(cmd *cobra.Command, args []string) error {
	shutdown, err := cc.app.setup(cmd, observability.ModeCLI)
	if err != nil {
		return err
	}
	defer shutdown()

	stylesheet := firstNonEmpty(cc.stylesheet, cc.app.cfg.Convert.Stylesheet)
	if stylesheet == "" {
		return ErrStylesheetRequired
	}

	workspace := cc.workspace
	if workspace == "" {
		workspace, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve workspace: %w", err)
		}
	}

	converter := convert.NewXSLTConverter(firstNonEmpty(cc.processor, cc.app.cfg.Convert.Processor))
	parasoft := convert.NewParasoftReport(converter, stylesheet, workspace)

	ctx, span := cc.app.tracer.Start(cmd.Context(), "covergate.convert")
	defer span.End()

	var errs []error

	for _, path := range args {
		out, convertErr := parasoft.Convert(ctx, path)
		if convertErr != nil {
			cc.app.logger.ErrorContext(ctx, "conversion failed", "path", path, "error", convertErr)
			errs = append(errs, convertErr)

			continue
		}

		cc.app.printf(cmd, "%s\n", out)
	}

	return errors.Join(errs...)
}
