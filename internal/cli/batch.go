package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/me/timetable/pkg/model"
)

func newSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save <grid.json>...",
		Short: "Save grids as drafts (published grids are re-checked)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, "save", args)
		},
	}
}

func newPublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish <grid.json>...",
		Short: "Publish grids; grids with instructor conflicts stay drafts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, "publish", args)
		},
	}
}

func runBatch(cmd *cobra.Command, op string, files []string) error {
	prefix, err := termPath()
	if err != nil {
		return err
	}
	grids, err := readGrids(files)
	if err != nil {
		return err
	}

	resp, err := client.Post(prefix+"/batch/"+op, model.BatchRequest{Grids: grids})
	return reportBatch(cmd, op, resp, err)
}

// reportBatch prints the per-grid outcomes of a batch response.
func reportBatch(cmd *cobra.Command, op string, resp *apiResponse, err error) error {
	// A partial failure still carries every outcome.
	if err != nil && !hasData(resp) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var res model.BatchResult
	if jerr := json.Unmarshal(resp.Data, &res); jerr != nil {
		return fmt.Errorf("parse response: %w", jerr)
	}
	printOutcomes(cmd.OutOrStdout(), res)
	if err != nil {
		return fmt.Errorf("%s: %d of %d grids not committed", op, res.Failed, len(res.Outcomes))
	}
	return nil
}

func printOutcomes(w io.Writer, res model.BatchResult) {
	fmt.Fprintf(w, "%-20s  %-10s  %-10s  %s\n", "CLASS GROUP", "OUTCOME", "STATUS", "DETAIL")
	fmt.Fprintf(w, "%-20s  %-10s  %-10s  %s\n", "-----------", "-------", "------", "------")
	for _, o := range res.Outcomes {
		fmt.Fprintf(w, "%-20s  %-10s  %-10s  %s\n", o.ClassGroup, o.State, o.Status, o.Error)
		for _, c := range o.Conflicts {
			fmt.Fprintf(w, "%-20s  %-10s  %-10s  - %s: %s\n", "", "", "", c.Slot, c.Message)
		}
	}
	fmt.Fprintf(w, "\n%d succeeded, %d failed\n", res.Succeeded, res.Failed)
}

func hasData(resp *apiResponse) bool {
	return resp != nil && len(resp.Data) > 0 && string(resp.Data) != "null"
}
