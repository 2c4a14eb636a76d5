package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"net/mail"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/chrisilt/course-watcher/internal/event"
	"github.com/chrisilt/course-watcher/internal/logger"
	"github.com/chrisilt/course-watcher/internal/storage"
)

const (
	CategoryEvent   = "Event"
	CategoryNew     = "new"
	CategoryExpired = "expired"

	// newFor is how long an item keeps the "new" category
	newFor = 7 * 24 * time.Hour

	sourceName = "Course Watcher"
	generator  = "course-watcher"
)

var deadlineLine = regexp.MustCompile(`(?im)deadline:[ \t]*(.+?)[ \t]*$`)

// Publisher writes new events into the feed file
type Publisher struct {
	Path        string
	Title       string
	Description string
	SiteURL     string // the watched page, used as channel link and item source
	SelfURL     string // public URL of the feed itself, optional
	Buffer      time.Duration
	Clock       func() time.Time

	log *logger.Logger
}

// NewPublisher creates a publisher for the feed at path
func NewPublisher(path, siteURL, selfURL string, buffer time.Duration, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.Default()
	}
	return &Publisher{
		Path:        path,
		Title:       "Open Course Registrations",
		Description: "Automated feed of newly discovered courses and events with open registrations.",
		SiteURL:     siteURL,
		SelfURL:     selfURL,
		Buffer:      buffer,
		Clock:       time.Now,
		log:         log,
	}
}

func (p *Publisher) now() time.Time {
	if p.Clock != nil {
		return p.Clock()
	}
	return time.Now()
}

// Publish prepends events to the feed in reverse batch order, so the last
// event of the batch ends up on top. Existing items are aged and the channel
// dates refreshed. With no events and no existing feed nothing is written.
func (p *Publisher) Publish(events []*event.Event) error {
	doc, existed := p.load()
	if !existed && len(events) == 0 {
		return nil
	}

	now := p.now()
	stamp := now.UTC().Format(time.RFC1123Z)

	for i := range doc.Channel.Items {
		p.age(&doc.Channel.Items[i], now)
	}

	items := make([]Item, 0, len(events)+len(doc.Channel.Items))
	for i := len(events) - 1; i >= 0; i-- {
		items = append(items, p.item(events[i], stamp))
	}
	doc.Channel.Items = append(items, doc.Channel.Items...)

	doc.Channel.LastBuildDate = stamp
	doc.Channel.PubDate = stamp
	if p.SelfURL != "" {
		doc.Channel.AtomLink = &AtomLink{Href: p.SelfURL, Rel: "self", Type: "application/rss+xml"}
	}

	if err := p.write(doc); err != nil {
		return err
	}

	p.log.Info("Feed written", logger.Fields{
		"path":  p.Path,
		"added": len(events),
		"items": len(doc.Channel.Items),
	})
	return nil
}

// age drops "new" from week-old items and marks items past their deadline
func (p *Publisher) age(it *Item, now time.Time) {
	if published, err := parsePubDate(it.PubDate); err == nil {
		if published.Before(now.Add(-newFor)) {
			it.RemoveCategory(CategoryNew)
		}
	} else if it.PubDate != "" {
		p.log.Debug("Unparseable item pubDate", logger.Fields{"guid": it.GUID.Value, "pubDate": it.PubDate})
	}

	if !it.HasCategory(CategoryExpired) && event.IsExpired(it.Description.Text, p.Buffer, now) {
		it.Categories = append(it.Categories, CategoryExpired)
	}
}

func (p *Publisher) item(evt *event.Event, stamp string) Item {
	title := evt.Title
	if title == "" {
		title = evt.ID
	}
	it := Item{
		Title:       title,
		Link:        evt.Link,
		Description: CDATA{Text: evt.Description},
		PubDate:     stamp,
		GUID:        GUID{IsPermaLink: "false", Value: evt.ID},
		Categories:  []string{CategoryEvent, CategoryNew},
	}
	if p.SiteURL != "" {
		it.Source = &Source{URL: p.SiteURL, Name: sourceName}
	}
	return it
}

// load reads the existing feed, or starts a fresh channel when it is missing or unparseable
func (p *Publisher) load() (*RSS, bool) {
	doc, err := read(p.Path)
	if err == nil {
		return doc, true
	}
	if !errors.Is(err, fs.ErrNotExist) {
		p.log.Warn("Failed to parse existing feed, starting fresh", logger.Fields{"path": p.Path, "error": err.Error()})
	}

	return &RSS{
		Version: "2.0",
		Channel: Channel{
			Title:       p.Title,
			Link:        p.SiteURL,
			Description: p.Description,
			Language:    "en",
			TTL:         1440,
			Generator:   generator,
		},
	}, false
}

func (p *Publisher) write(doc *RSS) error {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding feed: %w", err)
	}
	buf.WriteByte('\n')

	return storage.WriteFileAtomic(p.Path, buf.Bytes())
}

func read(path string) (*RSS, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc RSS
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}
	if doc.Version == "" {
		doc.Version = "2.0"
	}
	return &doc, nil
}

// ReadItems returns the items of the feed at path, newest first
func ReadItems(path string) ([]Item, error) {
	doc, err := read(path)
	if err != nil {
		return nil, err
	}
	return doc.Channel.Items, nil
}

// DeadlineFromDescription returns the text of the first "Deadline:" line, or ""
func DeadlineFromDescription(desc string) string {
	m := deadlineLine.FindStringSubmatch(desc)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// PubTime parses the item's pubDate
func (it *Item) PubTime() (time.Time, bool) {
	t, err := parsePubDate(it.PubDate)
	return t, err == nil
}

func parsePubDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty pubDate")
	}
	if t, err := time.Parse(time.RFC1123Z, s); err == nil {
		return t, nil
	}
	return mail.ParseDate(s)
}
