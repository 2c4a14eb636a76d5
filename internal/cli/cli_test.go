package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chrisilt/course-watcher/internal/storage"
)

const listingPage = `<html><body>
  <article><h5 class="headline">Course A</h5><time>31 Dec 2099</time>
    <div class="buttons-wrap"><a class="button" href="/courses/a/">Register</a></div></article>
  <article><h5 class="headline">Course B</h5><time>1 Jan 2000</time>
    <div class="buttons-wrap"><a class="button" href="/courses/b/">Register</a></div></article>
</body></html>`

// withWatcherEnv points every file setting into a temp dir and TARGET_URL at a test server
func withWatcherEnv(t *testing.T, status int, page string) string {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(page))
	}))
	t.Cleanup(server.Close)

	dir := t.TempDir()
	t.Setenv("TARGET_URL", server.URL+"/")
	t.Setenv("STATE_FILE", filepath.Join(dir, "seen.json"))
	t.Setenv("HISTORY_FILE", filepath.Join(dir, "history.json"))
	t.Setenv("FEED_FILE", filepath.Join(dir, "feed.xml"))
	t.Setenv("STATS_FILE", filepath.Join(dir, "docs", "stats.json"))
	t.Setenv("STATS_HTML_FILE", filepath.Join(dir, "docs", "stats.html"))
	t.Setenv("METRICS_FILE", filepath.Join(dir, "metrics", "course_watcher.prom"))
	t.Setenv("LOG_LEVEL", "error")
	for _, key := range []string{"WEBHOOK_URL", "TEAMS_WEBHOOK_URL", "EMAIL_ENABLED", "REDIS_URL"} {
		t.Setenv(key, "")
	}
	return dir
}

func execute(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_ExitCodes(t *testing.T) {
	dir := withWatcherEnv(t, http.StatusOK, listingPage)

	code, out, stderr := execute()
	if code != ExitNewEvents {
		t.Fatalf("first run exit = %d, want %d\nstderr: %s", code, ExitNewEvents, stderr)
	}
	if !strings.Contains(out, "NEW: Course A") || !strings.Contains(out, "NEW: Course B") {
		t.Errorf("output should list both courses:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "metrics", "course_watcher.prom")); err != nil {
		t.Errorf("metrics textfile not written: %v", err)
	}

	code, out, _ = execute("run")
	if code != ExitSuccess {
		t.Fatalf("second run exit = %d, want %d", code, ExitSuccess)
	}
	if !strings.Contains(out, "No new events found") {
		t.Errorf("second run output = %q", out)
	}
}

func TestRun_FetchErrorExit(t *testing.T) {
	withWatcherEnv(t, http.StatusInternalServerError, "")

	code, _, stderr := execute("run")
	if code != ExitError {
		t.Fatalf("exit = %d, want %d", code, ExitError)
	}
	if !strings.Contains(stderr, "Error:") {
		t.Errorf("stderr should report the error: %q", stderr)
	}
}

func TestRun_JSONSortedByDeadline(t *testing.T) {
	withWatcherEnv(t, http.StatusOK, listingPage)

	code, out, _ := execute("run", "--format", "json", "--sort", "deadline", "--dry-run")
	if code != ExitNewEvents {
		t.Fatalf("exit = %d, want %d", code, ExitNewEvents)
	}

	var result struct {
		New       int `json:"new"`
		NewEvents []struct {
			Title string `json:"title"`
		} `json:"new_events"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if result.New != 2 || len(result.NewEvents) != 2 {
		t.Fatalf("result = %+v", result)
	}
	if result.NewEvents[0].Title != "Course B" {
		t.Errorf("first event = %q, want the earliest deadline", result.NewEvents[0].Title)
	}
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	dir := withWatcherEnv(t, http.StatusOK, listingPage)

	code, _, stderr := execute("--dry-run")
	if code != ExitNewEvents {
		t.Fatalf("exit = %d, want %d", code, ExitNewEvents)
	}
	if !strings.Contains(stderr, "Would notify") {
		t.Errorf("dry run should print the notifications: %q", stderr)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("dry run created %d entries", len(entries))
	}
}

func TestRun_InvalidFlags(t *testing.T) {
	withWatcherEnv(t, http.StatusOK, listingPage)

	tests := [][]string{
		{"--format", "xml"},
		{"run", "--sort", "random"},
		{"run", "extra-arg"},
	}
	for _, args := range tests {
		if code, _, _ := execute(args...); code != ExitError {
			t.Errorf("%v: exit = %d, want %d", args, code, ExitError)
		}
	}
}

func TestStatsCommand(t *testing.T) {
	withWatcherEnv(t, http.StatusOK, listingPage)
	execute("run")

	code, out, _ := execute("stats")
	if code != ExitSuccess {
		t.Fatalf("exit = %d", code)
	}
	for _, want := range []string{"Total tracked", "Currently active", "Seen IDs"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats output missing %q:\n%s", want, out)
		}
	}

	code, out, _ = execute("stats", "--format", "json")
	if code != ExitSuccess {
		t.Fatalf("exit = %d", code)
	}
	var report struct {
		Total   int `json:"total_events_tracked"`
		Active  int `json:"currently_active"`
		Expired int `json:"total_expired"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("stats JSON: %v", err)
	}
	if report.Total != 2 || report.Active != 1 || report.Expired != 1 {
		t.Errorf("report = %+v, want 2 tracked, 1 active, 1 expired", report)
	}
}

func TestRebuildHistoryCommand(t *testing.T) {
	dir := withWatcherEnv(t, http.StatusOK, listingPage)
	execute("run")

	historyPath := filepath.Join(dir, "history.json")
	if err := os.Remove(historyPath); err != nil {
		t.Fatal(err)
	}

	code, out, stderr := execute("rebuild-history")
	if code != ExitSuccess {
		t.Fatalf("exit = %d\nstderr: %s", code, stderr)
	}
	if !strings.Contains(out, "Rebuilt 2 events") {
		t.Errorf("output = %q", out)
	}
	if _, err := os.Stat(historyPath); err != nil {
		t.Errorf("history not rebuilt: %v", err)
	}
}

func TestRebuildHistoryCommand_NoFeed(t *testing.T) {
	withWatcherEnv(t, http.StatusOK, listingPage)

	if code, _, _ := execute("rebuild-history"); code != ExitError {
		t.Errorf("exit = %d, want %d", code, ExitError)
	}
}

func TestCalendarCommand(t *testing.T) {
	dir := withWatcherEnv(t, http.StatusOK, listingPage)
	execute("run")

	code, out, _ := execute("calendar")
	if code != ExitSuccess {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(out, "BEGIN:VCALENDAR") || strings.Count(out, "BEGIN:VEVENT") != 1 {
		t.Errorf("calendar should hold only the active course:\n%s", out)
	}
	if !strings.Contains(out, "Course A") {
		t.Error("calendar should contain Course A")
	}

	path := filepath.Join(dir, "deadlines.ics")
	if code, _, _ := execute("calendar", "-o", path); code != ExitSuccess {
		t.Fatalf("exit = %d", code)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte("END:VCALENDAR")) {
		t.Error("calendar file incomplete")
	}
}

func TestActiveDeadlines(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	expiredAt := now.Add(-time.Hour).Unix()

	h := storage.NewHistory()
	h.Events["late"] = &storage.Record{ID: "late", Title: "Late", Deadline: "1 Mar 2027"}
	h.Events["soon"] = &storage.Record{ID: "soon", Title: "Soon", Deadline: "20 Oct 2026"}
	h.Events["none"] = &storage.Record{ID: "none", Title: "No deadline"}
	h.Events["past"] = &storage.Record{ID: "past", Title: "Past", Deadline: "1 Jan 2020"}
	h.Events["closed"] = &storage.Record{ID: "closed", Title: "Closed", Deadline: "1 Jan 2030", ExpiredAt: &expiredAt}

	entries := activeDeadlines(h, 0, now)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Event.ID != "soon" || entries[1].Event.ID != "late" {
		t.Errorf("entries = %s, %s; want soonest first", entries[0].Event.ID, entries[1].Event.ID)
	}
	if entries[0].Deadline.Day() != 20 {
		t.Errorf("deadline = %v", entries[0].Deadline)
	}
}
