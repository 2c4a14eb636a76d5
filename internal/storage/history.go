package storage

import (
	"errors"
	"io/fs"
	"math"
	"sort"
	"time"

	"github.com/chrisilt/course-watcher/internal/event"
	"github.com/chrisilt/course-watcher/internal/logger"
)

// Status classifies an observation of an event during a run
type Status string

const (
	StatusNew     Status = "new"
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
)

const secondsPerDay = 24 * 60 * 60

// Record is the lifecycle entry of one event
type Record struct {
	ID                       string   `json:"id"`
	Title                    string   `json:"title"`
	Link                     string   `json:"link"`
	Deadline                 string   `json:"deadline"`
	FirstSeen                int64    `json:"first_seen"`
	LastSeen                 int64    `json:"last_seen"`
	ExpiredAt                *int64   `json:"expired_at"`
	RegistrationDurationDays *float64 `json:"registration_duration_days"`
}

// History maps event IDs to lifecycle records
type History struct {
	Events map[string]*Record `json:"events"`
}

// NewHistory creates an empty history
func NewHistory() *History {
	return &History{Events: make(map[string]*Record)}
}

// Update records an observation of evt at now.
//
// The first observation creates the record with first_seen and last_seen set to now.
// Later observations only move last_seen. The first time status is StatusExpired the
// record gets expired_at and the registration duration in days; neither is changed again.
func (h *History) Update(evt *event.Event, status Status, now time.Time) *Record {
	if h.Events == nil {
		h.Events = make(map[string]*Record)
	}

	ts := now.Unix()
	rec, ok := h.Events[evt.ID]
	if !ok {
		rec = &Record{
			ID:        evt.ID,
			Title:     evt.Title,
			Link:      evt.Link,
			Deadline:  evt.Date,
			FirstSeen: ts,
			LastSeen:  ts,
		}
		h.Events[evt.ID] = rec
	} else {
		rec.LastSeen = ts
	}

	if status == StatusExpired && rec.ExpiredAt == nil {
		expiredAt := ts
		rec.ExpiredAt = &expiredAt
		days := roundTenth(float64(ts-rec.FirstSeen) / secondsPerDay)
		rec.RegistrationDurationDays = &days
	}

	return rec
}

// Get returns the record for id, or nil
func (h *History) Get(id string) *Record {
	if h.Events == nil {
		return nil
	}
	return h.Events[id]
}

// Len returns the number of tracked events
func (h *History) Len() int {
	return len(h.Events)
}

// Records returns all records sorted by ID
func (h *History) Records() []*Record {
	records := make([]*Record, 0, len(h.Events))
	for _, rec := range h.Events {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})
	return records
}

// LoadHistory reads the history ledger from path. A missing or corrupt file yields an
// empty history and a warning.
func LoadHistory(path string, log *logger.Logger) *History {
	var h History
	if err := readJSON(path, &h); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn("Failed to load history, starting empty", logger.Fields{"path": path, "error": err.Error()})
		}
		return NewHistory()
	}

	if h.Events == nil {
		h.Events = make(map[string]*Record)
	}
	for id, rec := range h.Events {
		if rec == nil {
			delete(h.Events, id)
		}
	}
	return &h
}

// SaveHistory writes the history ledger atomically
func SaveHistory(path string, h *History) error {
	return WriteJSONAtomic(path, h)
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
