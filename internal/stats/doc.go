// Package stats derives the statistics report from the history ledger.
//
// Compute is a pure function of the history, the seen state and the current time.
// The report is saved as JSON for machines and rendered as a static HTML dashboard.
package stats
