package feed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chrisilt/course-watcher/internal/event"
	"github.com/chrisilt/course-watcher/internal/logger"
)

var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestPublisher(t *testing.T, now time.Time) *Publisher {
	t.Helper()
	p := NewPublisher(filepath.Join(t.TempDir(), "feed.xml"), "https://example.com/courses", "https://example.github.io/feed.xml", 0, logger.Discard())
	p.Clock = func() time.Time { return now }
	return p
}

func testEvents() []*event.Event {
	return []*event.Event{
		{
			ID:          "https://example.com/a",
			Title:       "Course A & Friends",
			Link:        "https://example.com/a",
			Date:        "31 Dec 2099",
			Description: "About A.\n\nDeadline: 31 Dec 2099",
		},
		{
			ID:          "https://example.com/b",
			Title:       "",
			Link:        "https://example.com/b",
			Date:        "1 Jan 2000",
			Description: "Deadline: 1 Jan 2000",
		},
	}
}

func TestPublish_NewFeed(t *testing.T) {
	p := newTestPublisher(t, testNow)

	if err := p.Publish(testEvents()); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}

	items, err := ReadItems(p.Path)
	if err != nil {
		t.Fatalf("ReadItems() error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	// Last event of the batch is on top
	if items[0].GUID.Value != "https://example.com/b" || items[1].GUID.Value != "https://example.com/a" {
		t.Errorf("batch order = %s, %s; want b, a", items[0].GUID.Value, items[1].GUID.Value)
	}

	a := items[1]
	if a.Title != "Course A & Friends" {
		t.Errorf("Title = %q", a.Title)
	}
	if a.GUID.Value != "https://example.com/a" || a.GUID.IsPermaLink != "false" {
		t.Errorf("GUID = %+v", a.GUID)
	}
	if a.PubDate != testNow.Format(time.RFC1123Z) {
		t.Errorf("PubDate = %q, want run time", a.PubDate)
	}
	if !a.HasCategory(CategoryEvent) || !a.HasCategory(CategoryNew) {
		t.Errorf("Categories = %v", a.Categories)
	}
	if a.Description.Text != "About A.\n\nDeadline: 31 Dec 2099" {
		t.Errorf("Description = %q", a.Description.Text)
	}
	if a.Source == nil || a.Source.URL != "https://example.com/courses" {
		t.Errorf("Source = %+v", a.Source)
	}

	// Empty title falls back to the ID
	if items[0].Title != "https://example.com/b" {
		t.Errorf("fallback Title = %q", items[0].Title)
	}

	data, err := os.ReadFile(p.Path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<rss version="2.0">`,
		`<![CDATA[About A.`,
		`xmlns="http://www.w3.org/2005/Atom"`,
		`href="https://example.github.io/feed.xml"`,
		`<lastBuildDate>` + testNow.Format(time.RFC1123Z) + `</lastBuildDate>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("feed missing %q", want)
		}
	}
}

func TestPublish_PrependsNewestFirst(t *testing.T) {
	p := newTestPublisher(t, testNow)
	events := testEvents()

	if err := p.Publish(events[:1]); err != nil {
		t.Fatal(err)
	}

	p.Clock = func() time.Time { return testNow.Add(time.Hour) }
	if err := p.Publish(events[1:]); err != nil {
		t.Fatal(err)
	}

	items, err := ReadItems(p.Path)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].GUID.Value != "https://example.com/b" || items[1].GUID.Value != "https://example.com/a" {
		t.Errorf("unexpected order: %s, %s", items[0].GUID.Value, items[1].GUID.Value)
	}
}

func TestPublish_AgesItems(t *testing.T) {
	p := newTestPublisher(t, testNow)
	if err := p.Publish(testEvents()); err != nil {
		t.Fatal(err)
	}

	// Within a week: "new" stays, the expired item gets marked once
	p.Clock = func() time.Time { return testNow.Add(24 * time.Hour) }
	if err := p.Publish(nil); err != nil {
		t.Fatal(err)
	}
	if err := p.Publish(nil); err != nil {
		t.Fatal(err)
	}

	items, err := ReadItems(p.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !items[1].HasCategory(CategoryNew) {
		t.Error("item younger than a week lost its new category")
	}
	if items[1].HasCategory(CategoryExpired) {
		t.Error("future deadline marked expired")
	}
	expiredCount := 0
	for _, c := range items[0].Categories {
		if c == CategoryExpired {
			expiredCount++
		}
	}
	if expiredCount != 1 {
		t.Errorf("expired category count = %d, want 1 (%v)", expiredCount, items[0].Categories)
	}

	// After a week the new category is dropped
	p.Clock = func() time.Time { return testNow.Add(8 * 24 * time.Hour) }
	if err := p.Publish(nil); err != nil {
		t.Fatal(err)
	}
	items, err = ReadItems(p.Path)
	if err != nil {
		t.Fatal(err)
	}
	for _, it := range items {
		if it.HasCategory(CategoryNew) {
			t.Errorf("item %s still new after 8 days", it.GUID.Value)
		}
		if !it.HasCategory(CategoryEvent) {
			t.Errorf("item %s lost the Event category", it.GUID.Value)
		}
	}
}

func TestPublish_NoEventsNoFeed(t *testing.T) {
	p := newTestPublisher(t, testNow)

	if err := p.Publish(nil); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}
	if _, err := os.Stat(p.Path); !os.IsNotExist(err) {
		t.Error("feed should not be created without events")
	}
}

func TestPublish_RefreshesTimestamps(t *testing.T) {
	p := newTestPublisher(t, testNow)
	if err := p.Publish(testEvents()[:1]); err != nil {
		t.Fatal(err)
	}

	later := testNow.Add(3 * time.Hour)
	p.Clock = func() time.Time { return later }
	if err := p.Publish(nil); err != nil {
		t.Fatal(err)
	}

	doc, err := read(p.Path)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Channel.LastBuildDate != later.Format(time.RFC1123Z) {
		t.Errorf("LastBuildDate = %q", doc.Channel.LastBuildDate)
	}
	if len(doc.Channel.Items) != 1 {
		t.Errorf("expected 1 item, got %d", len(doc.Channel.Items))
	}
	if doc.Channel.Items[0].PubDate != testNow.Format(time.RFC1123Z) {
		t.Error("refresh must not touch item pubDate")
	}
}

func TestPublish_CorruptFeedStartsFresh(t *testing.T) {
	p := newTestPublisher(t, testNow)
	if err := os.WriteFile(p.Path, []byte("<rss><channel><item>"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := p.Publish(testEvents()[:1]); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}

	items, err := ReadItems(p.Path)
	if err != nil {
		t.Fatalf("ReadItems() error: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("expected 1 item, got %d", len(items))
	}
}

func TestReadItems_PrefixedAtomLink(t *testing.T) {
	feedXML := `<?xml version="1.0" encoding="utf-8"?>
<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">
<channel>
  <title>Registrations</title>
  <link>https://example.com/courses</link>
  <description>d</description>
  <atom:link href="https://example.github.io/feed.xml" rel="self" type="application/rss+xml" />
  <item>
    <title>Old Course</title>
    <link>https://example.com/old</link>
    <description><![CDATA[Intro
Deadline: 1 Jan 2000]]></description>
    <pubDate>Mon, 02 Jan 2006 15:04:05 +0000</pubDate>
    <guid isPermaLink="false">https://example.com/old</guid>
    <category>Event</category>
  </item>
</channel>
</rss>`
	path := filepath.Join(t.TempDir(), "feed.xml")
	if err := os.WriteFile(path, []byte(feedXML), 0644); err != nil {
		t.Fatal(err)
	}

	doc, err := read(path)
	if err != nil {
		t.Fatalf("read() error: %v", err)
	}
	if doc.Channel.Link != "https://example.com/courses" {
		t.Errorf("Link = %q", doc.Channel.Link)
	}
	if doc.Channel.AtomLink == nil || doc.Channel.AtomLink.Rel != "self" {
		t.Errorf("AtomLink = %+v", doc.Channel.AtomLink)
	}

	it := doc.Channel.Items[0]
	if DeadlineFromDescription(it.Description.Text) != "1 Jan 2000" {
		t.Errorf("deadline = %q", DeadlineFromDescription(it.Description.Text))
	}
	pub, ok := it.PubTime()
	if !ok || pub.Unix() != time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC).Unix() {
		t.Errorf("PubTime() = %v, %v", pub, ok)
	}
}

func TestDeadlineFromDescription(t *testing.T) {
	tests := []struct {
		desc string
		want string
	}{
		{"Deadline: 31 Dec 2099", "31 Dec 2099"},
		{"About.\n\nDeadline: 1 Mar 2027 12:00\nMore text", "1 Mar 2027 12:00"},
		{"deadline:   2026-10-01  ", "2026-10-01"},
		{"No date here", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := DeadlineFromDescription(tt.desc); got != tt.want {
			t.Errorf("DeadlineFromDescription(%q) = %q, want %q", tt.desc, got, tt.want)
		}
	}
}

func TestItemCategories(t *testing.T) {
	it := Item{Categories: []string{"Event", "new", "new"}}
	it.RemoveCategory("new")

	if it.HasCategory("new") {
		t.Error("new category not removed")
	}
	if !it.HasCategory("Event") || len(it.Categories) != 1 {
		t.Errorf("Categories = %v", it.Categories)
	}
}
