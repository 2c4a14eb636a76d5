package feed

import "encoding/xml"

const atomNS = "http://www.w3.org/2005/Atom"

// RSS is the document root
type RSS struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	Channel Channel  `xml:"channel"`
}

// Channel holds feed metadata and items, newest first
type Channel struct {
	AtomLink      *AtomLink `xml:"http://www.w3.org/2005/Atom link,omitempty"`
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language,omitempty"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	PubDate       string    `xml:"pubDate,omitempty"`
	TTL           int       `xml:"ttl,omitempty"`
	Generator     string    `xml:"generator,omitempty"`
	Items         []Item    `xml:"item"`
}

// AtomLink is the self reference feed readers use for discovery
type AtomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

// Item is one event in the feed
type Item struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description CDATA    `xml:"description"`
	PubDate     string   `xml:"pubDate,omitempty"`
	GUID        GUID     `xml:"guid"`
	Categories  []string `xml:"category"`
	Source      *Source  `xml:"source,omitempty"`
}

// CDATA wraps text that is written as a CDATA section
type CDATA struct {
	Text string `xml:",cdata"`
}

// GUID identifies an item; for events it is the normalized link
type GUID struct {
	IsPermaLink string `xml:"isPermaLink,attr,omitempty"`
	Value       string `xml:",chardata"`
}

// Source names the page an item was scraped from
type Source struct {
	URL  string `xml:"url,attr"`
	Name string `xml:",chardata"`
}

// HasCategory reports whether the item carries category c
func (it *Item) HasCategory(c string) bool {
	for _, cat := range it.Categories {
		if cat == c {
			return true
		}
	}
	return false
}

// RemoveCategory drops every occurrence of category c
func (it *Item) RemoveCategory(c string) {
	kept := it.Categories[:0]
	for _, cat := range it.Categories {
		if cat != c {
			kept = append(kept, cat)
		}
	}
	it.Categories = kept
}
