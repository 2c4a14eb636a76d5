package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/chrisilt/course-watcher/internal/pipeline"
	"github.com/chrisilt/course-watcher/internal/stats"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// maxTitleWidth caps the title column of text tables
const maxTitleWidth = 50

func parseFormat(s string) (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	if format != FormatText && format != FormatJSON {
		return "", fmt.Errorf("invalid format: %s (must be 'text' or 'json')", s)
	}
	return format, nil
}

// WriteOutput writes the run result in the specified format
func WriteOutput(w io.Writer, result *pipeline.Result, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeText(w, result, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs v as indented JSON
func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// writeText outputs results as human-readable text
func writeText(w io.Writer, result *pipeline.Result, verbose bool) error {
	if len(result.Events) == 0 {
		fmt.Fprintf(w, "No new events found (%d on the page).\n", result.Observed)
		return nil
	}

	for _, evt := range result.Events {
		fmt.Fprintf(w, "NEW: %s\n", evt.Title)
		if evt.Date != "" {
			fmt.Fprintf(w, "     Deadline: %s\n", evt.Date)
		}
		fmt.Fprintf(w, "     Link: %s\n", evt.Link)
		if verbose && evt.ID != evt.Link {
			fmt.Fprintf(w, "     ID: %s\n", evt.ID)
		}
	}

	fmt.Fprintf(w, "\nTotal: %d new of %d on the page\n", len(result.Events), result.Observed)
	if verbose {
		fmt.Fprintf(w, "Run: %s at %s\n", result.RunID, result.CheckedAt.UTC().Format(time.RFC3339))
		if result.Failed > 0 {
			fmt.Fprintf(w, "Notifications: %d sent, %d failed\n", result.Notified, result.Failed)
		}
	}
	return nil
}

// WriteReport writes the statistics report in the specified format
func WriteReport(w io.Writer, r *stats.Report, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, r)
	case FormatText:
		return writeReportText(w, r)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func writeReportText(w io.Writer, r *stats.Report) error {
	writeTable(w, nil, [][]string{
		{"Total tracked", fmt.Sprint(r.TotalEventsTracked)},
		{"Currently active", fmt.Sprint(r.CurrentlyActive)},
		{"Expired", fmt.Sprint(r.TotalExpired)},
		{"New this week / month", fmt.Sprintf("%d / %d", r.NewThisWeek, r.NewThisMonth)},
		{"Expired this week / month", fmt.Sprintf("%d / %d", r.ExpiredThisWeek, r.ExpiredThisMonth)},
		{"Seen IDs", fmt.Sprint(r.SeenIDsCount)},
		{"Last checked", formatUnix(r.LastChecked)},
		{"Avg registration window", formatDays(r.AverageRegistrationDurationDays)},
	})

	if v := r.EventVelocity; v != nil {
		if v.InsufficientData {
			fmt.Fprintf(w, "\nVelocity: insufficient data (%.1f days tracked)\n", v.TrackingDays)
		} else {
			fmt.Fprintf(w, "\nVelocity: %.2f per week, %.2f per month\n", deref(v.EventsPerWeek), deref(v.EventsPerMonth))
		}
	}

	if len(r.UpcomingDeadlines) > 0 {
		fmt.Fprintln(w, "\nUpcoming deadlines")
		rows := make([][]string, len(r.UpcomingDeadlines))
		for i, u := range r.UpcomingDeadlines {
			rows[i] = []string{truncate(u.Title), u.Deadline, fmt.Sprintf("%.1f", u.DaysRemaining)}
		}
		writeTable(w, []string{"Title", "Deadline", "Days left"}, rows)
	}

	if len(r.RecentlyExpired) > 0 {
		fmt.Fprintln(w, "\nRecently expired")
		rows := make([][]string, len(r.RecentlyExpired))
		for i, e := range r.RecentlyExpired {
			rows[i] = []string{truncate(e.Title), e.Deadline, formatDays(e.RegistrationDurationDays)}
		}
		writeTable(w, []string{"Title", "Deadline", "Open for"}, rows)
	}

	if len(r.LongRunningEvents) > 0 {
		fmt.Fprintln(w, "\nLong-running events")
		rows := make([][]string, len(r.LongRunningEvents))
		for i, l := range r.LongRunningEvents {
			rows[i] = []string{truncate(l.Title), l.Deadline, fmt.Sprintf("%.1f", l.DaysActive)}
		}
		writeTable(w, []string{"Title", "Deadline", "Days active"}, rows)
	}

	return nil
}

// writeTable prints rows in columns padded to their display width, so titles with
// wide characters stay aligned
func writeTable(w io.Writer, header []string, rows [][]string) {
	all := rows
	if header != nil {
		all = append([][]string{header}, rows...)
	}

	var widths []int
	for _, row := range all {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			if cw := runewidth.StringWidth(cell); cw > widths[i] {
				widths[i] = cw
			}
		}
	}

	for n, row := range all {
		var sb strings.Builder
		for i, cell := range row {
			if i > 0 {
				sb.WriteString("  ")
			}
			if i == len(row)-1 {
				sb.WriteString(cell)
				break
			}
			sb.WriteString(runewidth.FillRight(cell, widths[i]))
		}
		fmt.Fprintln(w, sb.String())

		if n == 0 && header != nil {
			sep := make([]string, len(header))
			for i := range header {
				sep[i] = strings.Repeat("-", widths[i])
			}
			fmt.Fprintln(w, strings.Join(sep, "  "))
		}
	}
}

func truncate(s string) string {
	return runewidth.Truncate(s, maxTitleWidth, "...")
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func formatDays(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f days", *v)
}

func formatUnix(ts *int64) string {
	if ts == nil {
		return "never"
	}
	return time.Unix(*ts, 0).UTC().Format("2006-01-02 15:04:05 UTC")
}
