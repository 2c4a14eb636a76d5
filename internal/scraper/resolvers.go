package scraper

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/chrisilt/course-watcher/internal/logger"
)

const (
	// maxAncestorLevels bounds the upward search starting at the anchor itself
	maxAncestorLevels = 6

	headingSelector   = "h1, h2, h3, h4, h5"
	timeSelector      = "time"
	dateClassSelector = ".date"
	paragraphSelector = "p"
)

// resolver returns a field value for the anchor, or "" when it has nothing
type resolver func(p *page, a *goquery.Selection) string

// page holds per-document state shared by the resolvers
type page struct {
	doc   *goquery.Document
	order map[*html.Node]int
	log   *logger.Logger

	titleChain       []resolver
	dateChain        []resolver
	descriptionChain []resolver
}

func newPage(doc *goquery.Document, e *Extractor) *page {
	p := &page{
		doc:   doc,
		order: make(map[*html.Node]int),
		log:   e.log,
	}

	// Document order of every element, used for "nearest preceding" lookups
	doc.Find("*").Each(func(i int, s *goquery.Selection) {
		p.order[s.Get(0)] = i
	})

	p.titleChain = []resolver{
		inAncestors(e.TitleSelector),
		childOfAncestors(headingSelector),
		preceding(headingSelector),
	}
	p.dateChain = []resolver{
		inAncestors(e.DateSelector),
		preceding(timeSelector),
		preceding(dateClassSelector),
	}
	p.descriptionChain = []resolver{
		childOfParent(paragraphSelector),
		preceding(paragraphSelector),
	}

	return p
}

// firstOf runs the chain in order and returns the first non-empty result
func firstOf(p *page, a *goquery.Selection, chain []resolver) string {
	for _, r := range chain {
		if v := p.run(r, a); v != "" {
			return v
		}
	}
	return ""
}

// run invokes a resolver, treating a panic as "no result"
func (p *page) run(r resolver, a *goquery.Selection) (v string) {
	defer func() {
		if rec := recover(); rec != nil {
			p.log.Warn("Resolver failed", logger.Fields{"panic": fmt.Sprint(rec)})
			v = ""
		}
	}()
	return r(p, a)
}

// inAncestors searches the subtree of the anchor and each ancestor for selector,
// walking up to maxAncestorLevels and stopping at html/body.
func inAncestors(selector string) resolver {
	return func(p *page, a *goquery.Selection) string {
		current := a
		for level := 0; level < maxAncestorLevels; level++ {
			if current.Length() == 0 || isDocumentRoot(current.Get(0)) {
				break
			}
			if found, ok := p.selectFirst(current, selector); ok {
				// The first match ends the walk, even when it has no text
				return nodeText(found)
			}
			current = current.Parent()
		}
		return ""
	}
}

// selectFirst compiles selector and returns its first match below s.
// Malformed selectors are logged and reported as no match.
func (p *page) selectFirst(s *goquery.Selection, selector string) (found *goquery.Selection, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			found, ok = nil, false
		}
	}()

	matcher, err := cascadia.Compile(selector)
	if err != nil {
		p.log.Debug("Skipping invalid selector", logger.Fields{"selector": selector, "error": err.Error()})
		return nil, false
	}

	match := s.FindMatcher(matcher).First()
	if match.Length() == 0 {
		return nil, false
	}
	return match, true
}

// childOfAncestors looks for direct children matching selector on each ancestor
// of the anchor, nearest ancestor first.
func childOfAncestors(selector string) resolver {
	return func(p *page, a *goquery.Selection) string {
		matcher, err := cascadia.Compile(selector)
		if err != nil {
			return ""
		}

		current := a.Parent()
		for level := 0; level < maxAncestorLevels; level++ {
			if current.Length() == 0 || isDocumentRoot(current.Get(0)) {
				break
			}
			if text := firstNonEmpty(current.ChildrenMatcher(matcher)); text != "" {
				return text
			}
			current = current.Parent()
		}
		return ""
	}
}

// childOfParent returns the first non-empty direct child of the anchor's parent matching selector
func childOfParent(selector string) resolver {
	return func(p *page, a *goquery.Selection) string {
		matcher, err := cascadia.Compile(selector)
		if err != nil {
			return ""
		}
		return firstNonEmpty(a.Parent().ChildrenMatcher(matcher))
	}
}

// preceding returns the text of the nearest element matching selector that comes
// before the anchor in document order. Empty text counts as no result.
func preceding(selector string) resolver {
	return func(p *page, a *goquery.Selection) string {
		matcher, err := cascadia.Compile(selector)
		if err != nil {
			return ""
		}

		anchorPos, ok := p.order[a.Get(0)]
		if !ok {
			return ""
		}

		var nearest *goquery.Selection
		p.doc.FindMatcher(matcher).EachWithBreak(func(i int, s *goquery.Selection) bool {
			if p.order[s.Get(0)] >= anchorPos {
				return false
			}
			nearest = s
			return true
		})

		if nearest == nil {
			return ""
		}
		return nodeText(nearest)
	}
}

func firstNonEmpty(s *goquery.Selection) string {
	var text string
	s.EachWithBreak(func(i int, el *goquery.Selection) bool {
		text = nodeText(el)
		return text == ""
	})
	return text
}
