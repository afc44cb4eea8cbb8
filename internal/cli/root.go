package cli

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/timetable/internal/logging"
)

var (
	flagServer    string
	flagTenant    string
	flagTerm      string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// envOr returns the environment variable name, or def when it is unset.
func envOr(name, def string) string {
	if s := os.Getenv(name); s != "" {
		return s
	}
	return def
}

// NewRootCmd creates the root cobra command for the timetable CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "timetable",
		Short: "timetable: weekly class schedules with conflict-checked publishing",
		Long:  "timetable lists, checks, generates, saves, publishes and exports class group grids on a timetable server.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(flagLogLevel), flagLogFormat)
			client = NewClient(flagServer, flagTenant, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", envOr("TIMETABLE_SERVER", "http://localhost:8080"), "Timetable server URL (or TIMETABLE_SERVER env)")
	root.PersistentFlags().StringVar(&flagTenant, "tenant", os.Getenv("TIMETABLE_TENANT"), "Tenant ID sent as X-Tenant-ID (or TIMETABLE_TENANT env)")
	root.PersistentFlags().StringVar(&flagTerm, "term", os.Getenv("TIMETABLE_TERM"), "Academic term (or TIMETABLE_TERM env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newGridsCmd(),
		newCheckCmd(),
		newSaveCmd(),
		newPublishCmd(),
		newGenerateCmd(),
		newExportCmd(),
		newImportCmd(),
	)

	return root
}

// termPath returns the API prefix of the selected term.
func termPath() (string, error) {
	if flagTerm == "" {
		return "", fmt.Errorf("no term selected: pass --term or set TIMETABLE_TERM")
	}
	return "/api/v1/terms/" + url.PathEscape(flagTerm), nil
}
