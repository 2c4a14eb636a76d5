package stats

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/chrisilt/course-watcher/internal/storage"
)

//go:embed dashboard.html.tmpl
var dashboardSource string

var dashboard = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"unixTime": func(ts int64) string {
		return time.Unix(ts, 0).UTC().Format("2006-01-02 15:04:05 UTC")
	},
	"deref": func(v *float64) float64 {
		if v == nil {
			return 0
		}
		return *v
	},
	"days": func(v *float64) string {
		if v == nil || *v == 0 {
			return "N/A"
		}
		return fmt.Sprintf("%.1f days", *v)
	},
	"chartData": func(trends []MonthlyTrend) (template.JS, error) {
		labels := make([]string, len(trends))
		data := make([]int, len(trends))
		for i, t := range trends {
			labels[i] = t.Month
			data[i] = t.EventsAdded
		}
		b, err := json.Marshal(map[string]interface{}{"labels": labels, "data": data})
		return template.JS(b), err
	},
}).Parse(dashboardSource))

// SaveReport writes the report as indented JSON, atomically
func SaveReport(path string, r *Report) error {
	return storage.WriteJSONAtomic(path, r)
}

// RenderHTML renders the dashboard for r
func RenderHTML(w io.Writer, r *Report) error {
	if err := dashboard.Execute(w, r); err != nil {
		return fmt.Errorf("rendering dashboard: %w", err)
	}
	return nil
}

// SaveHTML renders the dashboard into path, atomically
func SaveHTML(path string, r *Report) error {
	var buf bytes.Buffer
	if err := RenderHTML(&buf, r); err != nil {
		return err
	}
	return storage.WriteFileAtomic(path, buf.Bytes())
}
