// Package metrics provides run instrumentation.
//
// A run reports to a Recorder. The Prometheus recorder keeps its own registry and
// writes it in the node-exporter textfile format at the end of a run, which suits
// a process that exits instead of serving /metrics.
package metrics

import "time"

// Recorder captures metric events for a run
type Recorder interface {
	ObserveRun(duration time.Duration, success bool)
	SetEventsObserved(n int)
	AddNewEvents(n int)
	IncNotification(sink string, success bool)
	SetHistoryCounts(tracked, active, expired int)
}

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) ObserveRun(duration time.Duration, success bool) {}
func (n *NoopRecorder) SetEventsObserved(count int) {}
func (n *NoopRecorder) AddNewEvents(count int) {}
func (n *NoopRecorder) IncNotification(sink string, success bool) {}
func (n *NoopRecorder) SetHistoryCounts(tracked, active, expired int) {}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
