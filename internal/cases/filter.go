package cases

// Included reports whether the subject is part of the study.
func Included(r SessionRecord) bool {
	return !r.Exclude.Set()
}

// VisitIncluded reports whether this visit counts.
func VisitIncluded(r SessionRecord) bool {
	return !r.VisitIgnore.Set()
}

// ScanPresent reports whether an MRI session was collected for the visit.
func ScanPresent(r SessionRecord) bool {
	return !r.MRIMissing.Set()
}

// Filter returns the qualifying sessions in their original order. Subject
// exclusion is applied first, then the visit and scan checks together. The
// input slice is not modified.
func Filter(records []SessionRecord) []SessionRecord {
	included := make([]SessionRecord, 0, len(records))
	for _, r := range records {
		if Included(r) {
			included = append(included, r)
		}
	}

	results := included[:0]
	for _, r := range included {
		if VisitIncluded(r) && ScanPresent(r) {
			results = append(results, r)
		}
	}
	return results
}

// Summary counts what happened to the fetched rows. A row that trips several
// flags is counted under each of them, so the drop counts can add up to more
// than Fetched-Kept.
type Summary struct {
	Fetched      int `json:"fetched"`
	Kept         int `json:"kept"`
	Excluded     int `json:"excluded"`
	VisitIgnored int `json:"visit_ignored"`
	MRIMissing   int `json:"mri_missing"`
}

// Summarize tallies records against each predicate.
func Summarize(records []SessionRecord) Summary {
	s := Summary{Fetched: len(records)}
	for _, r := range records {
		inc, visit, scan := Included(r), VisitIncluded(r), ScanPresent(r)
		if !inc {
			s.Excluded++
		}
		if !visit {
			s.VisitIgnored++
		}
		if !scan {
			s.MRIMissing++
		}
		if inc && visit && scan {
			s.Kept++
		}
	}
	return s
}
