package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chrisilt/course-watcher/internal/event"
)

// SortOrder represents the available sorting options
type SortOrder string

const (
	SortByPage     SortOrder = "page"
	SortByDeadline SortOrder = "deadline"
	SortByTitle    SortOrder = "title"
)

func parseSortOrder(s string) (SortOrder, error) {
	order := SortOrder(strings.ToLower(strings.TrimSpace(s)))
	switch order {
	case "":
		return SortByPage, nil
	case SortByPage, SortByDeadline, SortByTitle:
		return order, nil
	default:
		return "", fmt.Errorf("invalid sort order: %s (must be 'page', 'deadline' or 'title')", s)
	}
}

// sortEvents sorts a slice of events based on the specified sort order.
// SortByPage keeps the order the events were found in.
func sortEvents(events []*event.Event, sortOrder SortOrder) {
	switch sortOrder {
	case SortByDeadline:
		sort.SliceStable(events, func(i, j int) bool {
			return compareByDeadline(events[i], events[j])
		})
	case SortByTitle:
		sort.SliceStable(events, func(i, j int) bool {
			ti, tj := strings.ToLower(events[i].Title), strings.ToLower(events[j].Title)
			if ti != tj {
				return ti < tj
			}
			// If titles are equal, sort by deadline
			return compareByDeadline(events[i], events[j])
		})
	}
}

// compareByDeadline compares two events by their deadline
// Returns true if event i should come before event j
func compareByDeadline(i, j *event.Event) bool {
	deadlineI, okI := event.ParseDeadline(i.Date)
	deadlineJ, okJ := event.ParseDeadline(j.Date)

	// If both deadlines are valid, compare them
	if okI && okJ {
		return deadlineI.Before(deadlineJ)
	}

	// If only one deadline is valid, put the valid one first
	if okI {
		return true
	}
	if okJ {
		return false
	}

	// If neither has a valid deadline, sort by title
	return strings.ToLower(i.Title) < strings.ToLower(j.Title)
}
