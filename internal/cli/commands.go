package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chrisilt/course-watcher/internal/calendar"
	"github.com/chrisilt/course-watcher/internal/event"
	"github.com/chrisilt/course-watcher/internal/metrics"
	"github.com/chrisilt/course-watcher/internal/pipeline"
	"github.com/chrisilt/course-watcher/internal/stats"
	"github.com/chrisilt/course-watcher/internal/storage"
)

func newRebuildCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild-history",
		Short: "Reconstruct the history ledger from the RSS feed",
		Long: `Replaces the history file with one rebuilt from the feed's items and
regenerates the statistics. Useful when the history was lost or fell out of
sync with the feed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseFormat(opts.format)
			if err != nil {
				return err
			}
			e, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			seen, closeSeen, err := pipeline.OpenSeenStore(ctx, e.cfg, e.log)
			if err != nil {
				return fmt.Errorf("opening seen state: %w", err)
			}
			defer closeSeen()

			w := pipeline.NewFromConfig(e.cfg, seen, nil, metrics.NewNoop(), e.log, false)
			res, err := w.Rebuild(ctx)
			if err != nil {
				return err
			}

			if format == FormatJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rebuilt %d events from %d feed items (%d expired)\n", res.Events, res.Items, res.Expired)
			fmt.Fprintf(cmd.OutOrStdout(), "Saved history to %s\n", e.cfg.HistoryFile)
			return nil
		},
	}
}

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print statistics computed from the history ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseFormat(opts.format)
			if err != nil {
				return err
			}
			e, err := setup(cmd, opts)
			if err != nil {
				return err
			}

			seen, closeSeen, err := pipeline.OpenSeenStore(cmd.Context(), e.cfg, e.log)
			if err != nil {
				return fmt.Errorf("opening seen state: %w", err)
			}
			defer closeSeen()

			st, err := seen.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("loading seen state: %w", err)
			}
			hist := storage.LoadHistory(e.cfg.HistoryFile, e.log)

			report := stats.Compute(hist, st, time.Now(), e.cfg.Buffer())
			return WriteReport(cmd.OutOrStdout(), report, format)
		},
	}
}

func newCalendarCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Export the deadlines of active events as an iCalendar file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, opts)
			if err != nil {
				return err
			}

			now := time.Now()
			hist := storage.LoadHistory(e.cfg.HistoryFile, e.log)
			entries := activeDeadlines(hist, e.cfg.Buffer(), now)

			ics := calendar.GenerateBulkICS(entries, "Course registration deadlines", now)
			if ics == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "No active events with a deadline.")
				return nil
			}

			if opts.output == "" || opts.output == "-" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), ics)
				return err
			}
			if err := storage.WriteFileAtomic(opts.output, []byte(ics)); err != nil {
				return fmt.Errorf("writing calendar: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d deadlines to %s\n", len(entries), opts.output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the calendar to this file instead of stdout")
	return cmd
}

// activeDeadlines returns calendar entries for unexpired records whose deadline parses,
// soonest first
func activeDeadlines(h *storage.History, buffer time.Duration, now time.Time) []calendar.Entry {
	events := make([]*event.Event, 0, h.Len())
	deadlines := make(map[string]time.Time)

	for _, rec := range h.Records() {
		if rec.ExpiredAt != nil || event.IsExpired(rec.Deadline, buffer, now) {
			continue
		}
		deadline, ok := event.ParseDeadline(rec.Deadline)
		if !ok {
			continue
		}
		events = append(events, &event.Event{
			ID:    rec.ID,
			Title: rec.Title,
			Date:  rec.Deadline,
			Link:  rec.Link,
		})
		deadlines[rec.ID] = deadline
	}

	sortEvents(events, SortByDeadline)

	entries := make([]calendar.Entry, len(events))
	for i, evt := range events {
		entries[i] = calendar.Entry{Event: evt, Deadline: deadlines[evt.ID]}
	}
	return entries
}
