// Package calendar renders iCalendar reminders for registration deadlines.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chrisilt/course-watcher/internal/event"
)

// reminderLength is how long the deadline block lasts in a calendar
const reminderLength = 30 * time.Minute

// Entry pairs an event with its parsed deadline
type Entry struct {
	Event    *event.Event
	Deadline time.Time
}

// GenerateICS renders a single-event calendar that ends at deadline, with an alarm
// one day before. The UID is derived from the event ID so re-imports update the entry.
func GenerateICS(evt *event.Event, deadline, now time.Time) string {
	var ics strings.Builder
	writeHeader(&ics, "")
	writeEvent(&ics, evt, deadline, now)
	ics.WriteString("END:VCALENDAR\r\n")
	return ics.String()
}

// GenerateBulkICS renders one calendar holding every entry. It returns "" when
// entries is empty.
func GenerateBulkICS(entries []Entry, calendarName string, now time.Time) string {
	if len(entries) == 0 {
		return ""
	}

	var ics strings.Builder
	writeHeader(&ics, calendarName)
	for _, e := range entries {
		writeEvent(&ics, e.Event, e.Deadline, now)
	}
	ics.WriteString("END:VCALENDAR\r\n")
	return ics.String()
}

// ForEvent returns the reminder for evt when its deadline parses
func ForEvent(evt *event.Event, now time.Time) (string, bool) {
	deadline, ok := event.ParseDeadline(evt.Date)
	if !ok {
		return "", false
	}
	return GenerateICS(evt, deadline, now), true
}

func writeHeader(ics *strings.Builder, calendarName string) {
	ics.WriteString("BEGIN:VCALENDAR\r\n")
	ics.WriteString("VERSION:2.0\r\n")
	ics.WriteString("PRODID:-//Course Watcher//course-watcher//EN\r\n")
	ics.WriteString("CALSCALE:GREGORIAN\r\n")
	ics.WriteString("METHOD:PUBLISH\r\n")
	if calendarName != "" {
		ics.WriteString(fmt.Sprintf("X-WR-CALNAME:%s\r\n", escapeICS(calendarName)))
	}
}

func writeEvent(ics *strings.Builder, evt *event.Event, deadline, now time.Time) {
	ics.WriteString("BEGIN:VEVENT\r\n")

	ics.WriteString(fmt.Sprintf("UID:%s\r\n", UID(evt.ID)))
	ics.WriteString(fmt.Sprintf("DTSTAMP:%s\r\n", formatICSTime(now)))
	ics.WriteString(fmt.Sprintf("DTSTART:%s\r\n", formatICSTime(deadline.Add(-reminderLength))))
	ics.WriteString(fmt.Sprintf("DTEND:%s\r\n", formatICSTime(deadline)))

	ics.WriteString(fmt.Sprintf("SUMMARY:%s\r\n", escapeICS("Registration deadline: "+evt.Title)))

	description := evt.Description
	if evt.Link != "" {
		description = fmt.Sprintf("%s\n\nRegister at: %s", description, evt.Link)
	}
	ics.WriteString(fmt.Sprintf("DESCRIPTION:%s\r\n", escapeICS(strings.TrimSpace(description))))

	if evt.Link != "" {
		ics.WriteString(fmt.Sprintf("URL:%s\r\n", evt.Link))
	}

	ics.WriteString("STATUS:CONFIRMED\r\n")
	ics.WriteString("SEQUENCE:0\r\n")
	// Reminder only, do not block time
	ics.WriteString("TRANSP:TRANSPARENT\r\n")

	ics.WriteString("BEGIN:VALARM\r\n")
	ics.WriteString("ACTION:DISPLAY\r\n")
	ics.WriteString(fmt.Sprintf("DESCRIPTION:%s\r\n", escapeICS("Registration closes tomorrow: "+evt.Title)))
	ics.WriteString("TRIGGER:-P1D\r\n")
	ics.WriteString("END:VALARM\r\n")

	ics.WriteString("END:VEVENT\r\n")
}

// UID returns the stable calendar UID for an event ID
func UID(id string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(id)).String() + "@course-watcher"
}

// formatICSTime formats a time.Time as an iCalendar datetime string
func formatICSTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// escapeICS escapes special characters for iCalendar format
func escapeICS(s string) string {
	// RFC 5545 text escaping
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
