package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/chrisilt/course-watcher/internal/event"
	"github.com/chrisilt/course-watcher/internal/feed"
	"github.com/chrisilt/course-watcher/internal/logger"
	"github.com/chrisilt/course-watcher/internal/stats"
	"github.com/chrisilt/course-watcher/internal/storage"
)

// ErrFeedNotFound is returned by Rebuild when there is no feed to rebuild from
var ErrFeedNotFound = errors.New("feed file not found")

// RebuildResult summarizes a history rebuild
type RebuildResult struct {
	Items   int           `json:"items"`
	Events  int           `json:"events"`
	Expired int           `json:"expired"`
	Report  *stats.Report `json:"-"`
}

// Rebuild replaces the history ledger with one reconstructed from the feed.
//
// Each item with a GUID becomes a record whose first and last sighting is its pubDate
// (now when unparseable). Items whose Deadline line is already past are recorded as
// expired at that same time, without a registration duration.
func (w *Watcher) Rebuild(ctx context.Context) (*RebuildResult, error) {
	now := w.clock()
	path := w.paths.Feed
	if path == "" && w.publisher != nil {
		path = w.publisher.Path
	}
	log := w.log.With(logger.Fields{"feed": path})

	items, err := feed.ReadItems(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFeedNotFound, path)
		}
		return nil, fmt.Errorf("reading feed: %w", err)
	}
	log.Info("Rebuilding history from feed", logger.Fields{"items": len(items)})

	res := &RebuildResult{Items: len(items)}
	hist := storage.NewHistory()

	for i := range items {
		it := &items[i]
		id := strings.TrimSpace(it.GUID.Value)
		if id == "" {
			continue
		}

		link := strings.TrimSpace(it.Link)
		if link == "" {
			link = id
		}

		ts := now.Unix()
		if pub, ok := it.PubTime(); ok {
			ts = pub.Unix()
		}

		rec := &storage.Record{
			ID:        id,
			Title:     strings.TrimSpace(it.Title),
			Link:      link,
			Deadline:  feed.DeadlineFromDescription(it.Description.Text),
			FirstSeen: ts,
			LastSeen:  ts,
		}
		if rec.Deadline != "" && event.IsExpired(rec.Deadline, w.buffer, now) {
			expiredAt := ts
			rec.ExpiredAt = &expiredAt
			res.Expired++
		}
		hist.Events[id] = rec

		log.Debug("Rebuilt event", logger.Fields{"id": id, "expired": rec.ExpiredAt != nil})
	}
	res.Events = hist.Len()

	if !w.dryRun {
		if err := storage.SaveHistory(w.paths.History, hist); err != nil {
			return nil, fmt.Errorf("saving history: %w", err)
		}
	}

	st, err := w.seen.Load(ctx)
	if err != nil {
		log.Warn("Failed to load seen state for statistics", logger.Fields{"error": err.Error()})
		st = storage.NewSeenState()
	}
	res.Report = w.saveStats(hist, st, now, log)
	w.metrics.SetHistoryCounts(res.Report.TotalEventsTracked, res.Report.CurrentlyActive, res.Report.TotalExpired)

	log.Info("History rebuilt", logger.Fields{"events": res.Events, "expired": res.Expired, "path": w.paths.History})
	return res, nil
}
