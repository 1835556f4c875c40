// Package export writes the selected sessions' imaging-archive identifiers.
//
// The output always has exactly two columns, mri_xnat_sid and mri_xnat_eids,
// with a header row and one row per session in the order given. Files are
// overwritten in place: there is no temporary file, so a failed write can
// leave a partial file behind.
package export
