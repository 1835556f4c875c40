// Package cases turns exported REDCap rows into typed MRI session records and
// selects the sessions that belong in the baseline/1-year case list.
//
// A session qualifies when the subject is not excluded, the visit is not
// marked to be ignored and the scan was not reported missing. Each of those
// flags only disqualifies a row when it is numerically 1; blank cells count
// as "not set", which is what REDCap sends for fields that live on forms not
// collected at that event (exclude is only on the baseline demographics form).
package cases
