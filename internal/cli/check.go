package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/me/timetable/pkg/model"
)

func newCheckCmd() *cobra.Command {
	var gridFiles []string
	cmd := &cobra.Command{
		Use:   "check <class_group> <day> <period> <instructor_id>",
		Short: "Check whether an instructor is free for a slot",
		Long: "check asks the server whether placing an instructor in a slot of a class group\n" +
			"collides with stored grids and with the unsaved grids given by --grid.",
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix, err := termPath()
			if err != nil {
				return err
			}
			day, err := model.ParseDay(args[1])
			if err != nil {
				return err
			}
			period, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("period must be a number: %w", err)
			}
			grids, err := readGrids(gridFiles)
			if err != nil {
				return err
			}

			resp, err := client.Post(prefix+"/conflicts/check", model.CheckRequest{
				ClassGroup:   args[0],
				Day:          day,
				Period:       period,
				InstructorID: args[3],
				Grids:        grids,
			})
			if err != nil {
				return fmt.Errorf("check: %w", err)
			}
			var res model.ConflictResult
			if err := json.Unmarshal(resp.Data, &res); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			if !res.Conflicting {
				fmt.Fprintf(out, "%s is free on %s period %d\n", args[3], day, period)
				return nil
			}
			fmt.Fprintf(out, "CONFLICT (%s): %s\n", res.Tier, res.Message)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&gridFiles, "grid", nil, "Unsaved grid JSON file to check against (repeatable)")
	return cmd
}
