// Package event provides the Event record extracted from the watched registrations page.
//
// The event package handles event representation, identification, deadline parsing and
// detection of newly-discovered events. Each event is identified by its normalized
// registration link (absolute URL without query or fragment), which keeps the ID stable
// across runs even when tracking parameters or surrounding text change.
package event
