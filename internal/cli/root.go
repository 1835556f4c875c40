package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/mricases/internal/config"
	"github.com/roach88/mricases/internal/redcap"
	"github.com/roach88/mricases/internal/report"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// NewFetcher builds the REDCap client (overridable for testing).
	// If nil, defaults to redcap.NewClient.
	NewFetcher func(cfg config.REDCap, token string) report.Fetcher
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the baseline-1yr-cases command. Run without a
// subcommand it performs the export.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	exportOpts := &ExportOptions{RootOptions: opts}

	cmd := &cobra.Command{
		Use:   "baseline-1yr-cases",
		Short: "Baseline and Year 1 cases with scans",
		Long: `Creates a CSV file listing every MRI session from the baseline and
one-year follow-up visits where the subject is included in the study, the visit
is not marked to be ignored and the scanning session was not marked missing.

The API token is read from ~/.server_config/redcap-dataentry-token unless
--token-file, the config file or MRICASES_TOKEN_FILE says otherwise.

Exit codes:
  0 - Export written
  1 - Export failed (REDCap, decoding or writing the output)
  2 - Command error (bad flags, invalid config, unreadable token file)

Examples:
  baseline-1yr-cases -v
  baseline-1yr-cases -o reports/baseline_1yr_cases.csv
  baseline-1yr-cases --config cases.yaml --history-db runs.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			configureLogging(opts.Verbose)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(exportOpts, cmd)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid arguments", err)
	})

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Turn on verbose")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "YAML config file")

	exportOpts.addFlags(cmd)

	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// configureLogging installs the slog handler: debug on stderr with
// --verbose, warnings and errors only otherwise.
func configureLogging(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func (o *RootOptions) fetcher(cfg config.REDCap, token string) report.Fetcher {
	if o.NewFetcher != nil {
		return o.NewFetcher(cfg, token)
	}
	return redcap.NewClient(cfg, token)
}
