package testutil

// SessionRow builds one flat-export row for the MRI session fields. Flag
// arguments are passed through unchanged, so callers can use "", "0", "1" or
// a JSON number.
func SessionRow(studyID, event string, exclude, visitIgnore, mriMissing any, sid, eids string) map[string]any {
	return map[string]any{
		"study_id":           studyID,
		"redcap_event_name":  event,
		"exclude":            exclude,
		"visit_ignore___yes": visitIgnore,
		"mri_missing":        mriMissing,
		"mri_xnat_sid":       sid,
		"mri_xnat_eids":      eids,
	}
}

// ExampleRows are the four sessions from the filter walkthrough: A is
// excluded, B has its visit ignored, C has no scan and only D qualifies.
func ExampleRows() []map[string]any {
	return []map[string]any{
		SessionRow("A", "baseline_visit_arm_1", "1", "0", "0", "NCANDA_S00001", "NCANDA_E00001"),
		SessionRow("B", "baseline_visit_arm_1", "0", "1", "0", "NCANDA_S00002", "NCANDA_E00002"),
		SessionRow("C", "1y_visit_arm_1", "0", "0", "1", "NCANDA_S00003", "NCANDA_E00003"),
		SessionRow("D", "1y_visit_arm_1", "0", "0", "0", "NCANDA_S00004", "NCANDA_E00004"),
	}
}
