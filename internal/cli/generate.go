package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/me/timetable/internal/autofill"
	"github.com/me/timetable/internal/config"
	"github.com/me/timetable/pkg/model"
)

// generateResponse mirrors the server's auto-fill response.
type generateResponse struct {
	Results []*autofill.Result `json:"results"`
	Saved   *model.BatchResult `json:"saved,omitempty"`
}

func newGenerateCmd() *cobra.Command {
	var (
		requestFile string
		subjects    string
		days        string
		periods     int
		scorer      string
		save        bool
		outDir      string
	)
	cmd := &cobra.Command{
		Use:   "generate [class_group...]",
		Short: "Generate draft grids from subjects and the instructor directory",
		Long: "generate fills grids for the named class groups with --subjects, or for the\n" +
			"requests in --request (a JSON array of auto-fill requests).",
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix, err := termPath()
			if err != nil {
				return err
			}

			var reqs []autofill.Request
			if requestFile != "" {
				data, err := os.ReadFile(requestFile)
				if err != nil {
					return fmt.Errorf("read %s: %w", requestFile, err)
				}
				if err := json.Unmarshal(data, &reqs); err != nil {
					return fmt.Errorf("parse %s: %w", requestFile, err)
				}
			}
			if len(args) > 0 {
				subj := config.SplitList(subjects)
				if len(subj) == 0 {
					return fmt.Errorf("--subjects is required with class group arguments")
				}
				var dayList []model.Day
				for _, d := range config.SplitList(days) {
					day, err := model.ParseDay(d)
					if err != nil {
						return err
					}
					dayList = append(dayList, day)
				}
				for _, cg := range args {
					reqs = append(reqs, autofill.Request{ClassGroup: cg, Subjects: subj, Days: dayList, PeriodsPerDay: periods})
				}
			}
			if len(reqs) == 0 {
				return fmt.Errorf("nothing to generate: name class groups or pass --request")
			}

			resp, err := client.Post(prefix+"/autofill", map[string]any{
				"requests": reqs,
				"scorer":   scorer,
				"save":     save,
			})
			if err != nil && !hasData(resp) {
				return fmt.Errorf("generate: %w", err)
			}
			var res generateResponse
			if jerr := json.Unmarshal(resp.Data, &res); jerr != nil {
				return fmt.Errorf("parse response: %w", jerr)
			}

			out := cmd.OutOrStdout()
			for _, r := range res.Results {
				ok := "ok"
				if !r.Validation.HardConstraintsSatisfied {
					ok = "VIOLATED"
				}
				fmt.Fprintf(out, "%s: %d slots, hard constraints %s\n", r.Grid.ClassGroup, len(r.Grid.Slots), ok)
				for _, w := range r.Validation.Warnings {
					fmt.Fprintf(out, "  warning: %s\n", w)
				}
				if outDir != "" {
					path := filepath.Join(outDir, r.Grid.ClassGroup+".json")
					data, err := json.MarshalIndent(r.Grid, "", "  ")
					if err != nil {
						return err
					}
					if err := os.WriteFile(path, data, 0o644); err != nil {
						return fmt.Errorf("write %s: %w", path, err)
					}
					fmt.Fprintf(out, "  written to %s\n", path)
				}
			}
			if res.Saved != nil {
				printOutcomes(out, *res.Saved)
			}
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&requestFile, "request", "", "JSON file with an array of auto-fill requests")
	cmd.Flags().StringVar(&subjects, "subjects", "", "Comma-separated subjects, rotated across the week")
	cmd.Flags().StringVar(&days, "days", "", "Comma-separated teaching days (default: every calendar day)")
	cmd.Flags().IntVar(&periods, "periods", 0, "Teaching periods per day (default: all)")
	cmd.Flags().StringVar(&scorer, "scorer", "", "Candidate scoring expression, e.g. 'specialist ? 100 - load : -load'")
	cmd.Flags().BoolVar(&save, "save", false, "Save the generated grids as drafts")
	cmd.Flags().StringVarP(&outDir, "output", "o", "", "Directory to write generated grids as JSON")
	return cmd
}
