package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/mricases/internal/cases"
	"github.com/roach88/mricases/internal/config"
)

// Columns is the header of every export.
var Columns = []string{cases.ColXNATSubject, cases.ColXNATExperiments}

// SheetName is the worksheet used for xlsx output.
const SheetName = "cases"

// row returns the output cells for r. Identifiers are NFC-normalised so the
// same id typed on different systems compares equal downstream.
func row(r cases.SessionRecord) []string {
	return []string{
		norm.NFC.String(r.XNATSubjectID),
		norm.NFC.String(r.XNATExperimentIDs),
	}
}

// WriteCSV writes the header and one line per record to w.
func WriteCSV(w io.Writer, records []cases.SessionRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range records {
		if err := cw.Write(row(r)); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteXLSX writes the same table as WriteCSV as a single-sheet workbook.
func WriteXLSX(w io.Writer, records []cases.SessionRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		cells := row(r)
		values := []any{cells[0], cells[1]}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// WriteFile writes records to path in the given format ("csv" or "xlsx"),
// creating missing parent directories and replacing any existing file.
func WriteFile(path, format string, records []cases.SessionRecord) error {
	var write func(io.Writer, []cases.SessionRecord) error
	switch format {
	case config.FormatCSV, "":
		write = WriteCSV
	case config.FormatXLSX:
		write = WriteXLSX
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}

	slog.Debug("writing cases",
		slog.String("path", path),
		slog.String("format", format),
		slog.Int("record_count", len(records)))

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to open output: %w", err)
	}
	if err := write(file, records); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close output: %w", err)
	}
	return nil
}
