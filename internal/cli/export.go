package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/mricases/internal/config"
	"github.com/roach88/mricases/internal/history"
	"github.com/roach88/mricases/internal/report"
)

// ExportOptions holds flags for the export run.
type ExportOptions struct {
	*RootOptions
	Outfile            string
	TokenFile          string
	URL                string
	InsecureSkipVerify bool
	OutputFormat       string
	HistoryDB          string

	// IDs overrides the run id generator (for testing).
	IDs history.IDGenerator
	// Clock overrides the run clock (for testing).
	Clock report.Clock
}

func (o *ExportOptions) addFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.Outfile, "outfile", "o", config.DefaultOutputPath, "File to write out.")
	f.StringVar(&o.TokenFile, "token-file", config.DefaultTokenFile, "file holding the REDCap API token")
	f.StringVar(&o.URL, "url", config.DefaultURL, "REDCap API URL")
	f.BoolVar(&o.InsecureSkipVerify, "insecure-skip-verify", false, "do not verify the server's TLS certificate")
	f.StringVar(&o.OutputFormat, "output-format", config.DefaultFormat, "output file format (csv|xlsx)")
	f.StringVar(&o.HistoryDB, "history-db", "", "SQLite file to record run metadata in")
}

// apply overlays flags the user actually set onto cfg.
func (o *ExportOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("outfile") {
		cfg.Output.Path = o.Outfile
	}
	if flags.Changed("token-file") {
		cfg.REDCap.TokenFile = o.TokenFile
	}
	if flags.Changed("url") {
		cfg.REDCap.URL = o.URL
	}
	if flags.Changed("insecure-skip-verify") {
		cfg.REDCap.InsecureSkipVerify = o.InsecureSkipVerify
	}
	if flags.Changed("output-format") {
		cfg.Output.Format = o.OutputFormat
	}
	if flags.Changed("history-db") {
		cfg.History.Database = o.HistoryDB
	}
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}
	if opts.Format == "json" {
		formatter.ErrWriter = cmd.ErrOrStderr()
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	opts.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return formatter.fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}

	token, err := config.ReadToken(cfg.REDCap.TokenFile)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeToken, "failed to read API token", err)
	}

	runner := &report.Runner{
		Fetcher:  opts.fetcher(cfg.REDCap, token),
		Clock:    opts.Clock,
		IDs:      opts.IDs,
		Progress: formatter.VerboseLog,
	}

	if cfg.History.Database != "" {
		st, err := history.Open(cfg.History.Database)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeHistory, "failed to open history database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing history database", "error", closeErr)
			}
		}()
		runner.History = st
	}

	// Use command's context if available (for testing), otherwise create one
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := runner.Run(ctx, cfg)
	if err != nil {
		return formatter.fail(ExitFailure, runErrorCode(err), "export failed", err)
	}

	if opts.Format == "json" {
		return formatter.Success(res)
	}
	formatter.VerboseLog("Wrote %d of %d sessions to %s", res.Summary.Kept, res.Summary.Fetched, res.OutputPath)
	return nil
}

