// Package pipeline runs one watch cycle: fetch the page, find registration events,
// record their lifecycle, notify on new ones and publish the feed and statistics.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/chrisilt/course-watcher/internal/event"
	"github.com/chrisilt/course-watcher/internal/feed"
	"github.com/chrisilt/course-watcher/internal/logger"
	"github.com/chrisilt/course-watcher/internal/metrics"
	"github.com/chrisilt/course-watcher/internal/notifier"
	"github.com/chrisilt/course-watcher/internal/stats"
	"github.com/chrisilt/course-watcher/internal/storage"
)

// ErrFetch marks a run that stopped because the page could not be fetched
var ErrFetch = errors.New("fetch failed")

// Fetcher retrieves the watched page
type Fetcher interface {
	Fetch(ctx context.Context) (string, error)
	URL() string
}

// Extractor turns page HTML into events
type Extractor interface {
	ExtractHTML(r io.Reader) ([]*event.Event, error)
}

// Paths locates the files a run reads and writes. Empty stats paths disable that output.
type Paths struct {
	History   string
	Feed      string
	Stats     string
	StatsHTML string
}

// Options configures a Watcher
type Options struct {
	Fetcher   Fetcher
	Extractor Extractor
	Seen      storage.SeenStore
	Sinks     []notifier.Notifier
	Publisher *feed.Publisher
	Metrics   metrics.Recorder
	Logger    *logger.Logger
	Paths     Paths
	Buffer    time.Duration
	Clock     func() time.Time

	// DryRun keeps every file and the seen store untouched
	DryRun bool
}

// Watcher executes runs
type Watcher struct {
	fetcher   Fetcher
	extractor Extractor
	seen      storage.SeenStore
	sinks     []notifier.Notifier
	publisher *feed.Publisher
	metrics   metrics.Recorder
	log       *logger.Logger
	paths     Paths
	buffer    time.Duration
	clock     func() time.Time
	dryRun    bool
}

// Result summarizes one run
type Result struct {
	RunID     string         `json:"run_id"`
	CheckedAt time.Time      `json:"checked_at"`
	Observed  int            `json:"observed"`
	New       int            `json:"new"`
	Notified  int            `json:"notified"`
	Failed    int            `json:"failed"`
	Events    []*event.Event `json:"new_events"`
	Report    *stats.Report  `json:"-"`
}

// New creates a Watcher
func New(opts Options) *Watcher {
	w := &Watcher{
		fetcher:   opts.Fetcher,
		extractor: opts.Extractor,
		seen:      opts.Seen,
		sinks:     opts.Sinks,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		log:       opts.Logger,
		paths:     opts.Paths,
		buffer:    opts.Buffer,
		clock:     opts.Clock,
		dryRun:    opts.DryRun,
	}
	if w.metrics == nil {
		w.metrics = metrics.NewNoop()
	}
	if w.log == nil {
		w.log = logger.Default()
	}
	if w.clock == nil {
		w.clock = time.Now
	}
	if w.publisher != nil && opts.Clock != nil {
		w.publisher.Clock = opts.Clock
	}
	return w
}

// Run performs one watch cycle.
//
// Only loading the seen state, fetching and extracting are fatal; nothing is written
// when they fail. Every later failure is logged and the run continues.
func (w *Watcher) Run(ctx context.Context) (res *Result, err error) {
	started := time.Now()
	now := w.clock()
	res = &Result{
		RunID:     ulid.Make().String(),
		CheckedAt: now,
		Events:    make([]*event.Event, 0),
	}
	log := w.log.With(logger.Fields{"run_id": res.RunID})

	defer func() {
		w.metrics.ObserveRun(time.Since(started), err == nil)
	}()

	st, err := w.seen.Load(ctx)
	if err != nil {
		log.Error("Failed to load seen state", nil, err)
		return nil, fmt.Errorf("loading seen state: %w", err)
	}
	hist := storage.LoadHistory(w.paths.History, log)

	log.Info("Fetching page", logger.Fields{"url": w.fetcher.URL()})
	page, err := w.fetcher.Fetch(ctx)
	if err != nil {
		log.Error("Failed to fetch page", logger.Fields{"url": w.fetcher.URL()}, err)
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	events, err := w.extractor.ExtractHTML(strings.NewReader(page))
	if err != nil {
		log.Error("Failed to extract events", nil, err)
		return nil, fmt.Errorf("extracting events: %w", err)
	}
	events = event.Dedupe(events)
	res.Observed = len(events)
	w.metrics.SetEventsObserved(len(events))
	log.Info("Found candidate events", logger.Fields{"count": len(events)})

	for _, evt := range events {
		status := storage.StatusActive
		if event.IsExpired(evt.Date, w.buffer, now) {
			status = storage.StatusExpired
		}
		hist.Update(evt, status, now)
	}

	newEvents := event.Diff(st, events)
	res.New = len(newEvents)
	w.metrics.AddNewEvents(len(newEvents))

	w.saveHistory(hist, log)
	res.Report = w.saveStats(hist, st, now, log)

	for _, evt := range newEvents {
		log.Info("New event", logger.Fields{"id": evt.ID, "title": evt.Title, "date": evt.Date})

		for _, r := range notifier.Dispatch(ctx, w.sinks, evt, log) {
			w.metrics.IncNotification(r.Sink, r.OK())
			if r.OK() {
				res.Notified++
			} else {
				res.Failed++
			}
		}

		st.Add(evt.ID)
		hist.Update(evt, storage.StatusNew, now)
		res.Events = append(res.Events, evt)
	}

	w.publish(newEvents, log)

	st.Touch(now)
	if !w.dryRun {
		if err := w.seen.Save(ctx, st); err != nil {
			log.Error("Failed to save seen state", nil, err)
		}
	}

	if len(newEvents) > 0 {
		w.saveHistory(hist, log)
		res.Report = w.saveStats(hist, st, now, log)
	}

	w.metrics.SetHistoryCounts(res.Report.TotalEventsTracked, res.Report.CurrentlyActive, res.Report.TotalExpired)
	log.Info("Run complete", logger.Fields{
		"observed": res.Observed,
		"new":      res.New,
		"notified": res.Notified,
		"failed":   res.Failed,
		"seen_ids": st.Len(),
	})

	return res, nil
}

func (w *Watcher) publish(events []*event.Event, log *logger.Logger) {
	if w.dryRun || w.publisher == nil {
		return
	}
	if err := w.publisher.Publish(events); err != nil {
		log.Error("Failed to update feed", logger.Fields{"path": w.publisher.Path}, err)
	}
}

func (w *Watcher) saveHistory(h *storage.History, log *logger.Logger) {
	if w.dryRun || w.paths.History == "" {
		return
	}
	if err := storage.SaveHistory(w.paths.History, h); err != nil {
		log.Error("Failed to save history", logger.Fields{"path": w.paths.History}, err)
	}
}

// saveStats computes the report and writes whichever outputs are configured
func (w *Watcher) saveStats(h *storage.History, st *storage.SeenState, now time.Time, log *logger.Logger) *stats.Report {
	report := stats.Compute(h, st, now, w.buffer)
	if w.dryRun {
		return report
	}

	if w.paths.Stats != "" {
		if err := stats.SaveReport(w.paths.Stats, report); err != nil {
			log.Error("Failed to save statistics", logger.Fields{"path": w.paths.Stats}, err)
		}
	}
	if w.paths.StatsHTML != "" {
		if err := stats.SaveHTML(w.paths.StatsHTML, report); err != nil {
			log.Error("Failed to save statistics page", logger.Fields{"path": w.paths.StatsHTML}, err)
		}
	}
	return report
}
