// Package report builds catalog and circulation summaries.
//
// Summarize counts records, users and titles in a loaded dataset. Monthly
// aggregates circulation activity for one calendar month; activity comes
// either from an imported file (ParseActivity) or from stored loans
// (ActivityFromLoans). The Write functions render reports and search results
// as aligned plain text.
package report
