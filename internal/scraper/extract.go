package scraper

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/chrisilt/course-watcher/internal/event"
	"github.com/chrisilt/course-watcher/internal/logger"
)

const (
	DefaultLinkSelector  = "div.buttons-wrap a.button, p.formUrl a, div.buttons-wrap a[href*='register'], a[href*='register'], a[href*='intranet.eugloh.eu']"
	DefaultTitleSelector = "h5.headline"
	DefaultDateSelector  = "time, .date"

	// boilerplatePhrase is the call to action repeated on every card
	boilerplatePhrase = "Find out more and register now"
)

// Extractor turns registration anchors into events
type Extractor struct {
	LinkSelector  string
	TitleSelector string
	DateSelector  string
	BaseURL       string

	log *logger.Logger
}

// NewExtractor creates an Extractor. Empty selectors fall back to the defaults.
func NewExtractor(linkSel, titleSel, dateSel, baseURL string, log *logger.Logger) *Extractor {
	if linkSel == "" {
		linkSel = DefaultLinkSelector
	}
	if titleSel == "" {
		titleSel = DefaultTitleSelector
	}
	if dateSel == "" {
		dateSel = DefaultDateSelector
	}
	if log == nil {
		log = logger.Default()
	}

	return &Extractor{
		LinkSelector:  linkSel,
		TitleSelector: titleSel,
		DateSelector:  dateSel,
		BaseURL:       baseURL,
		log:           log,
	}
}

// ExtractHTML parses r and extracts events from it
func (e *Extractor) ExtractHTML(r io.Reader) ([]*event.Event, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return e.Extract(doc)
}

// Extract returns one event per matched anchor with an href, in document order.
// Only an invalid link selector is an error; field resolution always degrades to a fallback.
func (e *Extractor) Extract(doc *goquery.Document) ([]*event.Event, error) {
	linkMatcher, err := cascadia.Compile(e.LinkSelector)
	if err != nil {
		return nil, fmt.Errorf("invalid link selector %q: %w", e.LinkSelector, err)
	}

	p := newPage(doc, e)
	events := make([]*event.Event, 0)

	doc.FindMatcher(linkMatcher).Each(func(i int, a *goquery.Selection) {
		evt := e.extractAnchor(p, a)
		if evt != nil {
			events = append(events, evt)
		}
	})

	return events, nil
}

// extractAnchor builds an event from a single anchor, or nil if it has no usable href
func (e *Extractor) extractAnchor(p *page, a *goquery.Selection) *event.Event {
	href, ok := a.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return nil
	}

	link, err := event.NormalizeURL(href, e.BaseURL)
	if err != nil {
		e.log.Warn("Skipping anchor with unresolvable href", logger.Fields{"href": href, "error": err.Error()})
		return nil
	}

	title := firstOf(p, a, p.titleChain)
	if title == "" {
		title = link
	}

	date := firstOf(p, a, p.dateChain)
	description := buildDescription(firstOf(p, a, p.descriptionChain), title, date)

	return &event.Event{
		ID:          link,
		Title:       title,
		Date:        date,
		Link:        link,
		Description: description,
	}
}

// buildDescription cleans the raw description and makes sure the deadline is present
func buildDescription(raw, title, date string) string {
	description := strings.TrimSpace(strings.ReplaceAll(raw, boilerplatePhrase, ""))

	if description != "" && strings.TrimSpace(date) != "" && !strings.Contains(description, "Deadline:") {
		description = description + "\n\nDeadline: " + date
	}
	if raw != "" && description == "" && strings.TrimSpace(date) != "" {
		description = "Deadline: " + date
	}

	if description == "" {
		if date != "" {
			return "Event: " + title
		}
		return title
	}
	return description
}

// nodeText returns the element text with whitespace runs collapsed
func nodeText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

// isDocumentRoot reports whether n is where ancestor walks stop
func isDocumentRoot(n *html.Node) bool {
	if n == nil || n.Type == html.DocumentNode {
		return true
	}
	return n.Type == html.ElementNode && (n.Data == "html" || n.Data == "body")
}
