package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// timeLayout keeps timestamps sortable as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one export run.
type Run struct {
	ID           string    `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	REDCapURL    string    `json:"redcap_url"`
	Events       []string  `json:"events"`
	OutputPath   string    `json:"output_path"`
	OutputFormat string    `json:"output_format"`
	Fetched      int       `json:"fetched"`
	Kept         int       `json:"kept"`
}

// RecordRun appends a run. Writing the same ID twice is a no-op.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("record run: empty id")
	}
	events := run.Events
	if events == nil {
		events = []string{}
	}
	eventsJSON, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, started_at, finished_at, redcap_url, events, output_path, output_format, fetched, kept)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.StartedAt.UTC().Format(timeLayout),
		run.FinishedAt.UTC().Format(timeLayout),
		run.REDCapURL,
		string(eventsJSON),
		run.OutputPath,
		run.OutputFormat,
		run.Fetched,
		run.Kept,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// ListRuns returns up to limit runs, newest first. A limit of zero or less
// returns every run.
//
// Returns an empty slice (not nil) when the ledger is empty.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, redcap_url, events, output_path, output_format, fetched, kept
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			run               Run
			started, finished string
			eventsJSON        string
		)
		if err := rows.Scan(&run.ID, &started, &finished, &run.REDCapURL, &eventsJSON,
			&run.OutputPath, &run.OutputFormat, &run.Fetched, &run.Kept); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("run %s: started_at: %w", run.ID, err)
		}
		if run.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
			return nil, fmt.Errorf("run %s: finished_at: %w", run.ID, err)
		}
		if err := json.Unmarshal([]byte(eventsJSON), &run.Events); err != nil {
			return nil, fmt.Errorf("run %s: events: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
