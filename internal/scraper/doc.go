// Package scraper provides HTTP fetching and HTML extraction of registration events.
//
// The scraper package fetches the configured listing page and turns every registration
// link matched by the link selector into an event. Title, deadline and description are
// resolved through ordered chains of heuristics (selector search in ancestors, nearby
// headings, preceding time/date elements) so that loosely structured markup still yields
// usable records. A failing heuristic only degrades its own field.
package scraper
