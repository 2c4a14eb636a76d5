package notifier

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/chrisilt/course-watcher/internal/event"
)

// DryRunNotifier prints what would be sent without delivering anything
type DryRunNotifier struct {
	out   io.Writer
	sinks []string
}

// NewDryRunNotifier creates a dry-run notifier that names the sinks it stands in for
func NewDryRunNotifier(out io.Writer, sinks ...string) *DryRunNotifier {
	if out == nil {
		out = os.Stdout
	}
	return &DryRunNotifier{out: out, sinks: sinks}
}

func (n *DryRunNotifier) Name() string {
	return "dry-run"
}

// Notify prints the notification that would be sent
func (n *DryRunNotifier) Notify(ctx context.Context, evt *event.Event) error {
	fmt.Fprintf(n.out, "--- Would notify %v ---\n", n.sinks)
	fmt.Fprintln(n.out, formatText(evt))
	return nil
}
