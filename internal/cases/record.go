package cases

import (
	"fmt"
	"strconv"
	"strings"
)

// Column names in the REDCap flat export.
const (
	ColStudyID         = "study_id"
	ColEventName       = "redcap_event_name"
	ColExclude         = "exclude"
	ColVisitIgnore     = "visit_ignore___yes"
	ColMRIMissing      = "mri_missing"
	ColXNATSubject     = "mri_xnat_sid"
	ColXNATExperiments = "mri_xnat_eids"
)

// RequiredColumns must be present in every row passed to Decode.
var RequiredColumns = []string{
	ColStudyID,
	ColExclude,
	ColVisitIgnore,
	ColMRIMissing,
	ColXNATSubject,
	ColXNATExperiments,
}

// Flag is a REDCap yes/no or checkbox value.
type Flag int

const (
	// FlagMissing is a blank cell.
	FlagMissing Flag = iota
	// FlagOff is any value that is not numerically 1.
	FlagOff
	// FlagOn is a value numerically equal to 1.
	FlagOn
)

// ParseFlag interprets a raw cell. "1", "1.0" and " 1 " are FlagOn, a blank
// cell is FlagMissing and everything else, including text that is not a
// number, is FlagOff.
func ParseFlag(raw string) Flag {
	s := strings.TrimSpace(raw)
	if s == "" {
		return FlagMissing
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil && v == 1 {
		return FlagOn
	}
	return FlagOff
}

// Set reports whether the flag equals 1.
func (f Flag) Set() bool {
	return f == FlagOn
}

func (f Flag) String() string {
	switch f {
	case FlagOn:
		return "1"
	case FlagOff:
		return "0"
	default:
		return ""
	}
}

// SessionRecord is one (subject, event) row of the export.
type SessionRecord struct {
	StudyID           string
	EventName         string
	Exclude           Flag
	VisitIgnore       Flag
	MRIMissing        Flag
	XNATSubjectID     string
	XNATExperimentIDs string
}

// MissingColumnError is returned when an exported row lacks a column the
// filter or the export needs.
type MissingColumnError struct {
	Column string
	Row    int
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("row %d: missing column %q", e.Row, e.Column)
}

// Decode converts exported rows into session records, keeping their order.
func Decode[R ~map[string]string](rows []R) ([]SessionRecord, error) {
	records := make([]SessionRecord, 0, len(rows))
	for i, row := range rows {
		for _, col := range RequiredColumns {
			if _, ok := row[col]; !ok {
				return nil, &MissingColumnError{Column: col, Row: i}
			}
		}
		records = append(records, SessionRecord{
			StudyID:           row[ColStudyID],
			EventName:         row[ColEventName],
			Exclude:           ParseFlag(row[ColExclude]),
			VisitIgnore:       ParseFlag(row[ColVisitIgnore]),
			MRIMissing:        ParseFlag(row[ColMRIMissing]),
			XNATSubjectID:     row[ColXNATSubject],
			XNATExperimentIDs: row[ColXNATExperiments],
		})
	}
	return records, nil
}
