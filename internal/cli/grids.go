package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/me/timetable/pkg/model"
)

func newGridsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grids",
		Short: "List, show and unpublish class group grids",
	}
	cmd.AddCommand(newGridsListCmd(), newGridsShowCmd(), newGridsUnpublishCmd())
	return cmd
}

func newGridsListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the grids of a term",
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix, err := termPath()
			if err != nil {
				return err
			}
			path := prefix + "/grids/"
			if status != "" {
				path += "?status=" + url.QueryEscape(status)
			}
			resp, err := client.Get(path)
			if err != nil {
				return fmt.Errorf("list grids: %w", err)
			}

			var data []model.GridSummary
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(data) == 0 {
				fmt.Fprintln(out, "No grids found.")
				return nil
			}

			fmt.Fprintf(out, "%-20s  %-10s  %-5s  %s\n", "CLASS GROUP", "STATUS", "SLOTS", "UPDATED")
			fmt.Fprintf(out, "%-20s  %-10s  %-5s  %s\n", "-----------", "------", "-----", "-------")
			for _, g := range data {
				fmt.Fprintf(out, "%-20s  %-10s  %-5d  %s\n", g.ClassGroup, g.Status, g.Slots, g.UpdatedAt.Format("2006-01-02 15:04"))
			}

			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Fprintf(out, "\n(%d of %d shown)\n", len(data), resp.Pagination.Total)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only grids in this status (draft, published)")
	return cmd
}

func newGridsShowCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <class_group>",
		Short: "Show one grid as a period-by-day table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix, err := termPath()
			if err != nil {
				return err
			}
			resp, err := client.Get(prefix + "/grids/" + url.PathEscape(args[0]))
			if err != nil {
				return fmt.Errorf("get grid: %w", err)
			}
			if asJSON {
				return writeIndented(cmd.OutOrStdout(), resp.Data)
			}

			var g model.Grid
			if err := json.Unmarshal(resp.Data, &g); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			calResp, err := client.Get("/api/v1/calendar")
			if err != nil {
				return fmt.Errorf("get calendar: %w", err)
			}
			var cal model.Calendar
			if err := json.Unmarshal(calResp.Data, &cal); err != nil {
				return fmt.Errorf("parse calendar: %w", err)
			}
			printGrid(cmd.OutOrStdout(), &g, cal)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the grid as JSON")
	return cmd
}

func newGridsUnpublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unpublish <class_group>",
		Short: "Return a published grid to draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix, err := termPath()
			if err != nil {
				return err
			}
			if _, err := client.Post(prefix+"/grids/"+url.PathEscape(args[0])+"/unpublish", nil); err != nil {
				return fmt.Errorf("unpublish: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: draft\n", args[0])
			return nil
		},
	}
}

// printGrid renders periods down and days across.
func printGrid(w io.Writer, g *model.Grid, cal model.Calendar) {
	fmt.Fprintf(w, "%s (%s, %s)\n\n", g.ClassGroup, g.Term, g.Status)
	fmt.Fprintf(w, "%-14s", "")
	for _, d := range cal.Days {
		fmt.Fprintf(w, "  %-20s", d)
	}
	fmt.Fprintln(w)
	for _, p := range cal.Periods {
		fmt.Fprintf(w, "%-14s", p.Name)
		for _, d := range cal.Days {
			cell := ""
			switch {
			case p.Break:
				cell = "--"
			default:
				if a, ok := g.Slots[model.SlotKey{Day: d, Period: p.Ordinal}]; ok {
					cell = a.Subject
					if a.HasInstructor() {
						cell += " (" + a.InstructorID + ")"
					}
				}
			}
			fmt.Fprintf(w, "  %-20s", cell)
		}
		fmt.Fprintln(w)
	}
}

func writeIndented(w io.Writer, raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readGrids loads grids from JSON files. Each file holds one grid or an array
// of grids.
func readGrids(paths []string) ([]*model.Grid, error) {
	var out []*model.Grid
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		trimmed := strings.TrimSpace(string(data))
		if strings.HasPrefix(trimmed, "[") {
			var gs []*model.Grid
			if err := json.Unmarshal(data, &gs); err != nil {
				return nil, fmt.Errorf("parse %s: %w", p, err)
			}
			out = append(out, gs...)
			continue
		}
		var g model.Grid
		if err := json.Unmarshal(data, &g); err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		out = append(out, &g)
	}
	return out, nil
}
