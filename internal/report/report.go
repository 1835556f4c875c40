// Package report runs the baseline/1-year case export end to end:
// fetch from REDCap, filter, write, and optionally log the run.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/mricases/internal/cases"
	"github.com/roach88/mricases/internal/config"
	"github.com/roach88/mricases/internal/export"
	"github.com/roach88/mricases/internal/history"
	"github.com/roach88/mricases/internal/redcap"
)

// Stage errors. Run wraps every failure in exactly one of these so callers can
// tell which step failed with errors.Is.
var (
	ErrFetch  = errors.New("fetch records")
	ErrDecode = errors.New("decode records")
	ErrWrite  = errors.New("write results")
	ErrRecord = errors.New("record run")
)

// Fetcher runs the record export. *redcap.Client implements it.
type Fetcher interface {
	ExportRecords(ctx context.Context, req redcap.ExportRequest) ([]redcap.Record, error)
}

// Recorder stores run metadata. *history.Store implements it.
type Recorder interface {
	RecordRun(ctx context.Context, run history.Run) error
}

// Clock supplies run timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Runner holds the collaborators of an export run. Only Fetcher is required.
type Runner struct {
	Fetcher Fetcher

	// History, when set, receives one Run per successful export.
	History Recorder

	// Clock defaults to the system clock.
	Clock Clock

	// IDs defaults to history.UUIDv7Generator.
	IDs history.IDGenerator

	// Progress receives the user-facing step messages. May be nil.
	Progress func(format string, args ...any)
}

// Result describes a finished run.
type Result struct {
	RunID      string        `json:"run_id"`
	OutputPath string        `json:"output_path"`
	Format     string        `json:"format"`
	Summary    cases.Summary `json:"summary"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Run performs one export with cfg. Steps run strictly in order and the
// first error ends the run; nothing is retried.
func (r *Runner) Run(ctx context.Context, cfg *config.Config) (*Result, error) {
	if r.Fetcher == nil {
		return nil, fmt.Errorf("report: no fetcher configured")
	}
	clock := r.Clock
	if clock == nil {
		clock = systemClock{}
	}
	ids := r.IDs
	if ids == nil {
		ids = history.UUIDv7Generator{}
	}

	res := &Result{
		RunID:      ids.Generate(),
		OutputPath: cfg.Output.Path,
		Format:     cfg.Output.Format,
		StartedAt:  clock.Now(),
	}
	log := slog.With(slog.String("run_id", res.RunID))

	r.progress("Connecting to REDCap...")
	rows, err := r.Fetcher.ExportRecords(ctx, redcap.ExportRequest{
		Fields: cfg.Query.Fields,
		Forms:  cfg.Query.Forms,
		Events: cfg.Query.Events,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	log.Debug("records fetched", slog.Int("count", len(rows)))

	r.progress("Filtering records...")
	records, err := cases.Decode(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	kept := cases.Filter(records)
	res.Summary = cases.Summarize(records)
	log.Debug("records filtered",
		slog.Int("fetched", res.Summary.Fetched),
		slog.Int("kept", res.Summary.Kept),
		slog.Int("excluded", res.Summary.Excluded),
		slog.Int("visit_ignored", res.Summary.VisitIgnored),
		slog.Int("mri_missing", res.Summary.MRIMissing))

	r.progress("Writing results to %s...", cfg.Output.Path)
	if err := export.WriteFile(cfg.Output.Path, cfg.Output.Format, kept); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	res.FinishedAt = clock.Now()

	if r.History != nil {
		run := history.Run{
			ID:           res.RunID,
			StartedAt:    res.StartedAt,
			FinishedAt:   res.FinishedAt,
			REDCapURL:    cfg.REDCap.URL,
			Events:       cfg.Query.Events,
			OutputPath:   cfg.Output.Path,
			OutputFormat: cfg.Output.Format,
			Fetched:      res.Summary.Fetched,
			Kept:         res.Summary.Kept,
		}
		if err := r.History.RecordRun(ctx, run); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRecord, err)
		}
	}

	log.Info("export complete",
		slog.String("path", res.OutputPath),
		slog.Int("kept", res.Summary.Kept))
	return res, nil
}

func (r *Runner) progress(format string, args ...any) {
	if r.Progress != nil {
		r.Progress(format, args...)
	}
}
