package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/mricases/internal/config"
	"github.com/roach88/mricases/internal/history"
)

var errNoHistoryDatabase = errors.New("pass --db or set history.database")

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded export runs",
		Long: `List export runs recorded with --history-db, newest first.

The ledger holds run metadata only (time, REDCap URL, events, output file and
row counts), never session records.

Examples:
  baseline-1yr-cases history --db runs.db
  baseline-1yr-cases history --db runs.db --limit 5 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the history database (defaults to history.database from config)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to list (0 for all)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}

	path := opts.Database
	if path == "" {
		cfg, err := config.Load(opts.ConfigPath)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
		}
		path = cfg.History.Database
	}
	if path == "" {
		return formatter.fail(ExitCommandError, ErrCodeConfig, "no history database", errNoHistoryDatabase)
	}

	st, err := history.Open(path)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeHistory, "failed to open history database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runs, err := st.ListRuns(ctx, opts.Limit)
	if err != nil {
		return formatter.fail(ExitFailure, ErrCodeHistory, "failed to list runs", err)
	}

	if opts.Format == "json" {
		return formatter.Success(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintln(cmd.OutOrStdout(), describeRun(r))
	}
	return nil
}

// describeRun renders one ledger line for text output.
func describeRun(r history.Run) string {
	return fmt.Sprintf("%s  %s  kept %d/%d  %s (%s)",
		r.StartedAt.UTC().Format("2006-01-02 15:04:05Z"), r.ID, r.Kept, r.Fetched, r.OutputPath, r.OutputFormat)
}
