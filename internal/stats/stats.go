package stats

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/chrisilt/course-watcher/internal/event"
	"github.com/chrisilt/course-watcher/internal/storage"
)

const (
	day   = 24 * time.Hour
	week  = 7 * day
	month = 30 * day

	topN             = 10
	upcomingWindow   = 30.0 // days
	longRunningAfter = 60.0 // days
	minTrackingDays  = 7.0
	trendMonths      = 12
)

// Report is the statistics snapshot written after every run
type Report struct {
	GeneratedAt        int64  `json:"generated_at"`
	TotalEventsTracked int    `json:"total_events_tracked"`
	CurrentlyActive    int    `json:"currently_active"`
	TotalExpired       int    `json:"total_expired"`
	NewThisWeek        int    `json:"new_this_week"`
	NewThisMonth       int    `json:"new_this_month"`
	ExpiredThisWeek    int    `json:"expired_this_week"`
	ExpiredThisMonth   int    `json:"expired_this_month"`
	SeenIDsCount       int    `json:"seen_ids_count"`
	LastChecked        *int64 `json:"last_checked"`

	UpcomingDeadlines               []Upcoming        `json:"upcoming_deadlines"`
	AverageRegistrationDurationDays *float64          `json:"average_registration_duration_days"`
	RegistrationDurationStats       *DurationStats    `json:"registration_duration_stats"`
	ActiveEventAges                 *Summary          `json:"active_event_ages"`
	RecentlyExpired                 []RecentlyExpired `json:"recently_expired"`
	LongRunningEvents               []LongRunning     `json:"long_running_events"`
	MonthlyTrends                   []MonthlyTrend    `json:"monthly_trends"`
	EventVelocity                   *Velocity         `json:"event_velocity"`
}

// Summary holds min/max/median/average of a set of day counts
type Summary struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Median  float64 `json:"median"`
	Average float64 `json:"average"`
}

// DurationStats summarizes completed registration windows
type DurationStats struct {
	Summary
	TotalCompleted int `json:"total_completed"`
}

// Upcoming is an active event whose deadline falls within 30 days
type Upcoming struct {
	Title         string  `json:"title"`
	Deadline      string  `json:"deadline"`
	DaysRemaining float64 `json:"days_remaining"`
	Link          string  `json:"link"`
}

// RecentlyExpired is an event that expired within the last week
type RecentlyExpired struct {
	Title                    string   `json:"title"`
	Deadline                 string   `json:"deadline"`
	ExpiredAt                int64    `json:"expired_at"`
	Link                     string   `json:"link"`
	RegistrationDurationDays *float64 `json:"registration_duration_days"`
}

// LongRunning is an active event open for more than 60 days
type LongRunning struct {
	Title      string  `json:"title"`
	Deadline   string  `json:"deadline"`
	DaysActive float64 `json:"days_active"`
	Link       string  `json:"link"`
}

// MonthlyTrend counts events first seen in a YYYY-MM month
type MonthlyTrend struct {
	Month       string `json:"month"`
	EventsAdded int    `json:"events_added"`
}

// Velocity is the discovery rate. Rates stay nil until a week of data exists.
type Velocity struct {
	EventsPerWeek    *float64 `json:"events_per_week"`
	EventsPerMonth   *float64 `json:"events_per_month"`
	TrackingDays     float64  `json:"tracking_days"`
	InsufficientData bool     `json:"insufficient_data,omitempty"`
}

// Compute builds the report for now. An event counts as expired when its deadline
// plus buffer lies before now. Records without a deadline are in neither the
// active nor the expired count; unparseable deadlines count as active.
func Compute(h *storage.History, st *storage.SeenState, now time.Time, buffer time.Duration) *Report {
	r := &Report{
		GeneratedAt:       now.Unix(),
		UpcomingDeadlines: make([]Upcoming, 0),
		RecentlyExpired:   make([]RecentlyExpired, 0),
		LongRunningEvents: make([]LongRunning, 0),
		MonthlyTrends:     make([]MonthlyTrend, 0),
	}
	if st != nil {
		r.SeenIDsCount = st.Len()
		r.LastChecked = st.LastChecked
	}
	if h == nil {
		return r
	}

	nowTS := now.Unix()
	weekAgo := now.Add(-week).Unix()
	monthAgo := now.Add(-month).Unix()

	var (
		durations []float64
		ages      []float64
		oldest    int64
	)
	monthly := make(map[string]int)

	for _, rec := range h.Records() {
		r.TotalEventsTracked++

		if rec.FirstSeen > 0 {
			monthly[time.Unix(rec.FirstSeen, 0).In(now.Location()).Format("2006-01")]++
			if oldest == 0 || rec.FirstSeen < oldest {
				oldest = rec.FirstSeen
			}
		}
		if rec.FirstSeen >= weekAgo {
			r.NewThisWeek++
		}
		if rec.FirstSeen >= monthAgo {
			r.NewThisMonth++
		}
		if rec.ExpiredAt != nil {
			if *rec.ExpiredAt >= weekAgo {
				r.ExpiredThisWeek++
			}
			if *rec.ExpiredAt >= monthAgo {
				r.ExpiredThisMonth++
			}
		}

		switch {
		case strings.TrimSpace(rec.Deadline) == "":
			// no deadline: neither active nor expired
		case event.IsExpired(rec.Deadline, buffer, now):
			r.TotalExpired++
			if rec.ExpiredAt != nil && *rec.ExpiredAt >= weekAgo {
				r.RecentlyExpired = append(r.RecentlyExpired, RecentlyExpired{
					Title:                    titleOf(rec),
					Deadline:                 rec.Deadline,
					ExpiredAt:                *rec.ExpiredAt,
					Link:                     rec.Link,
					RegistrationDurationDays: rec.RegistrationDurationDays,
				})
			}
		default:
			r.CurrentlyActive++

			if rec.FirstSeen > 0 {
				if age := daysBetween(rec.FirstSeen, nowTS); age > longRunningAfter {
					r.LongRunningEvents = append(r.LongRunningEvents, LongRunning{
						Title:      titleOf(rec),
						Deadline:   rec.Deadline,
						DaysActive: round(age, 1),
						Link:       rec.Link,
					})
				}
			}

			if deadline, ok := event.ParseDeadline(rec.Deadline); ok {
				if rec.FirstSeen > 0 {
					ages = append(ages, daysBetween(rec.FirstSeen, nowTS))
				}

				remaining := daysBetween(nowTS, deadline.Unix())
				if remaining > 0 && remaining <= upcomingWindow {
					r.UpcomingDeadlines = append(r.UpcomingDeadlines, Upcoming{
						Title:         titleOf(rec),
						Deadline:      rec.Deadline,
						DaysRemaining: round(remaining, 1),
						Link:          rec.Link,
					})
				}
			}
		}

		if d := rec.RegistrationDurationDays; d != nil && *d > 0 {
			durations = append(durations, *d)
		}
	}

	if s := summarize(durations); s != nil {
		avg := s.Average
		r.AverageRegistrationDurationDays = &avg
		r.RegistrationDurationStats = &DurationStats{Summary: *s, TotalCompleted: len(durations)}
	}
	r.ActiveEventAges = summarize(ages)
	r.EventVelocity = velocity(r.TotalEventsTracked, oldest, nowTS)
	r.MonthlyTrends = trends(monthly)

	sort.SliceStable(r.UpcomingDeadlines, func(i, j int) bool {
		return r.UpcomingDeadlines[i].DaysRemaining < r.UpcomingDeadlines[j].DaysRemaining
	})
	sort.SliceStable(r.RecentlyExpired, func(i, j int) bool {
		return r.RecentlyExpired[i].ExpiredAt > r.RecentlyExpired[j].ExpiredAt
	})
	sort.SliceStable(r.LongRunningEvents, func(i, j int) bool {
		return r.LongRunningEvents[i].DaysActive > r.LongRunningEvents[j].DaysActive
	})
	r.UpcomingDeadlines = limit(r.UpcomingDeadlines)
	r.RecentlyExpired = limit(r.RecentlyExpired)
	r.LongRunningEvents = limit(r.LongRunningEvents)

	return r
}

func summarize(values []float64) *Summary {
	if len(values) == 0 {
		return nil
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	return &Summary{
		Min:     round(sorted[0], 1),
		Max:     round(sorted[len(sorted)-1], 1),
		Median:  round(sorted[len(sorted)/2], 1),
		Average: round(sum/float64(len(sorted)), 1),
	}
}

func velocity(total int, oldest, now int64) *Velocity {
	if total == 0 || oldest == 0 {
		return nil
	}

	days := daysBetween(oldest, now)
	v := &Velocity{TrackingDays: round(days, 1)}
	if days < minTrackingDays {
		v.InsufficientData = true
		return v
	}

	perWeek := round(float64(total)/(days/7), 2)
	perMonth := round(float64(total)/(days/30), 2)
	v.EventsPerWeek = &perWeek
	v.EventsPerMonth = &perMonth
	return v
}

// trends keeps the most recent months, returned oldest first
func trends(monthly map[string]int) []MonthlyTrend {
	months := make([]string, 0, len(monthly))
	for m := range monthly {
		months = append(months, m)
	}
	sort.Strings(months)
	if len(months) > trendMonths {
		months = months[len(months)-trendMonths:]
	}

	out := make([]MonthlyTrend, 0, len(months))
	for _, m := range months {
		out = append(out, MonthlyTrend{Month: m, EventsAdded: monthly[m]})
	}
	return out
}

func limit[T any](items []T) []T {
	if len(items) > topN {
		return items[:topN]
	}
	return items
}

func titleOf(rec *storage.Record) string {
	if rec.Title == "" {
		return "Unknown"
	}
	return rec.Title
}

func daysBetween(from, to int64) float64 {
	return float64(to-from) / float64(day/time.Second)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
