// Package cli implements the command-line interface for course-watcher.
//
// The cli package provides the Cobra-based CLI. The default command runs one watch
// cycle and reports new registrations as text or JSON, exiting with status 2 when
// something new was found. Subcommands rebuild the history ledger from the feed,
// print the statistics report and export open deadlines as an iCalendar file.
package cli
