package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/chrisilt/course-watcher/internal/event"
	"github.com/chrisilt/course-watcher/internal/logger"
)

// Notifier defines the interface for delivering an event notification
type Notifier interface {
	// Name identifies the sink in logs and metrics
	Name() string
	// Notify delivers a notification for a single event
	Notify(ctx context.Context, evt *event.Event) error
}

// Result is the outcome of one sink for one event
type Result struct {
	Sink     string
	Err      error
	Duration time.Duration
}

// OK reports whether the delivery succeeded
func (r Result) OK() bool {
	return r.Err == nil
}

// Dispatch sends evt to every sink in order. Failures are logged and do not stop
// later sinks.
func Dispatch(ctx context.Context, sinks []Notifier, evt *event.Event, log *logger.Logger) []Result {
	if log == nil {
		log = logger.Default()
	}

	results := make([]Result, 0, len(sinks))
	for _, sink := range sinks {
		start := time.Now()
		err := safeNotify(ctx, sink, evt)
		res := Result{Sink: sink.Name(), Err: err, Duration: time.Since(start)}
		results = append(results, res)

		fields := logger.Fields{"sink": res.Sink, "id": evt.ID}
		if err != nil {
			log.Error("Notification failed", fields, err)
			continue
		}
		log.Info("Notification sent", fields)
	}
	return results
}

func safeNotify(ctx context.Context, sink Notifier, evt *event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return sink.Notify(ctx, evt)
}

type panicError struct {
	value interface{}
}

func (e *panicError) Error() string {
	return fmt.Sprintf("notifier panicked: %v", e.value)
}
