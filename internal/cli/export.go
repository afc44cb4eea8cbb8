package cli

import (
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export [class_group]",
		Short: "Download grids as an Excel workbook",
		Long:  "export downloads one grid, or every grid of the term with one sheet each.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix, err := termPath()
			if err != nil {
				return err
			}
			path := prefix + "/export.xlsx"
			name := flagTerm + ".xlsx"
			if len(args) == 1 {
				path = prefix + "/grids/" + url.PathEscape(args[0]) + "/export.xlsx"
				name = args[0] + ".xlsx"
			}
			if output == "" {
				output = name
			}

			data, err := client.Download(path)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", output, len(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default <class_group>.xlsx or <term>.xlsx)")
	return cmd
}
