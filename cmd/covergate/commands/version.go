package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/covergate/pkg/version"
)

func newVersionCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Get()

			if asJSON {
				err := json.NewEncoder(cmd.OutOrStdout()).Encode(info)
				if err != nil {
					return fmt.Errorf("encode version: %w", err)
				}

				return nil
			}

			_, err := fmt.Fprintln(cmd.OutOrStdout(), info)
			if err != nil {
				return fmt.Errorf("print version: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	return cmd
}
