package notifier

import (
	"fmt"
	"html"
	"strings"

	"github.com/chrisilt/course-watcher/internal/event"
)

const footer = "This is an automated notification from the Course Watcher."

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

// subject is the email subject and chat summary line
func subject(evt *event.Event) string {
	return "New Event: " + orDefault(evt.Title, "Untitled")
}

// formatText renders the plain-text notification body
func formatText(evt *event.Event) string {
	var b strings.Builder
	b.WriteString("New Event Detected!\n\n")
	fmt.Fprintf(&b, "Title: %s\n", orDefault(evt.Title, "N/A"))
	fmt.Fprintf(&b, "Date: %s\n", orDefault(evt.Date, "N/A"))
	fmt.Fprintf(&b, "Link: %s\n\n", orDefault(evt.Link, "N/A"))
	fmt.Fprintf(&b, "Description: %s\n\n", orDefault(evt.Description, "N/A"))
	b.WriteString("---\n")
	b.WriteString(footer)
	b.WriteString("\n")
	return b.String()
}

// formatHTML renders the HTML notification body; every event field is escaped
func formatHTML(evt *event.Event) string {
	title := html.EscapeString(orDefault(evt.Title, "N/A"))
	date := html.EscapeString(orDefault(evt.Date, "N/A"))
	link := html.EscapeString(orDefault(evt.Link, "N/A"))
	desc := html.EscapeString(orDefault(evt.Description, "N/A"))

	var b strings.Builder
	b.WriteString("<html>\n  <body>\n")
	b.WriteString("    <h2>New Event Detected!</h2>\n")
	fmt.Fprintf(&b, "    <p><strong>Title:</strong> %s</p>\n", title)
	fmt.Fprintf(&b, "    <p><strong>Date:</strong> %s</p>\n", date)
	fmt.Fprintf(&b, "    <p><strong>Link:</strong> <a href=\"%s\">%s</a></p>\n", link, link)
	fmt.Fprintf(&b, "    <p><strong>Description:</strong> %s</p>\n", desc)
	b.WriteString("    <hr>\n")
	fmt.Fprintf(&b, "    <p><em>%s</em></p>\n", footer)
	b.WriteString("  </body>\n</html>\n")
	return b.String()
}
