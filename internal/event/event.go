package event

import (
	"fmt"
	"net/url"
	"strings"
)

// Event represents one discovered registration opportunity
type Event struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Date        string `json:"date,omitempty"` // Raw deadline text as found on the page
	Link        string `json:"link"`
	Description string `json:"description"`
}

// NormalizeURL resolves href against base and strips the query string and fragment.
// Links that only differ by tracking parameters or anchors normalize identically.
func NormalizeURL(href, base string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parsing href %q: %w", href, err)
	}

	if base != "" {
		baseURL, err := url.Parse(base)
		if err != nil {
			return "", fmt.Errorf("parsing base url %q: %w", base, err)
		}
		ref = baseURL.ResolveReference(ref)
	}

	ref.RawQuery = ""
	ref.ForceQuery = false
	ref.Fragment = ""
	ref.RawFragment = ""

	return ref.String(), nil
}

// NewEvent creates an Event whose ID and Link are the normalized href
func NewEvent(href, base, title, date, description string) (*Event, error) {
	link, err := NormalizeURL(href, base)
	if err != nil {
		return nil, err
	}

	if title == "" {
		title = link
	}

	return &Event{
		ID:          link,
		Title:       title,
		Date:        date,
		Link:        link,
		Description: description,
	}, nil
}
