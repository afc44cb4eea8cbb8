package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/timetable/internal/export"
)

func newImportCmd() *cobra.Command {
	var publish bool
	cmd := &cobra.Command{
		Use:   "import <workbook.xlsx>",
		Short: "Upload an Excel workbook and save its sheets as grids",
		Long: "import sends a workbook in the export layout: one sheet per class group, " +
			"periods down and days across, cells as \"Subject / Instructor\".",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix, err := termPath()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			op := "save"
			path := prefix + "/import.xlsx"
			if publish {
				op = "publish"
				path += "?publish=true"
			}
			resp, err := client.Upload(path, export.ContentType, data)
			return reportBatch(cmd, op, resp, err)
		},
	}
	cmd.Flags().BoolVar(&publish, "publish", false, "Publish the imported grids instead of saving drafts")
	return cmd
}
