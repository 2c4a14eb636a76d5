package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/chrisilt/course-watcher/internal/event"
)

// TeamsNotifier posts a MessageCard to a chat incoming webhook
type TeamsNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewTeamsNotifier creates a chat sink for webhookURL
func NewTeamsNotifier(webhookURL string, timeout time.Duration) (*TeamsNotifier, error) {
	if webhookURL == "" {
		return nil, fmt.Errorf("teams webhook URL is required")
	}
	return &TeamsNotifier{
		webhookURL: webhookURL,
		client:     newHTTPClient(timeout),
	}, nil
}

func (t *TeamsNotifier) Name() string {
	return "teams"
}

type messageCard struct {
	Type            string          `json:"@type"`
	Context         string          `json:"@context"`
	Summary         string          `json:"summary"`
	ThemeColor      string          `json:"themeColor"`
	Title           string          `json:"title"`
	Sections        []cardSection   `json:"sections"`
	PotentialAction []openURIAction `json:"potentialAction"`
}

type cardSection struct {
	ActivityTitle    string     `json:"activityTitle"`
	ActivitySubtitle string     `json:"activitySubtitle"`
	Facts            []cardFact `json:"facts"`
	Markdown         bool       `json:"markdown"`
}

type cardFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type openURIAction struct {
	Type    string      `json:"@type"`
	Name    string      `json:"name"`
	Targets []uriTarget `json:"targets"`
}

type uriTarget struct {
	OS  string `json:"os"`
	URI string `json:"uri"`
}

func buildCard(evt *event.Event) messageCard {
	return messageCard{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		Summary:    subject(evt),
		ThemeColor: "0078D7",
		Title:      "New Event Detected!",
		Sections: []cardSection{{
			ActivityTitle:    orDefault(evt.Title, "Untitled"),
			ActivitySubtitle: orDefault(evt.Date, "Date not available"),
			Facts: []cardFact{{
				Name:  "Description:",
				Value: orDefault(evt.Description, "No description available"),
			}},
			Markdown: true,
		}},
		PotentialAction: []openURIAction{{
			Type:    "OpenUri",
			Name:    "View Event",
			Targets: []uriTarget{{OS: "default", URI: orDefault(evt.Link, "#")}},
		}},
	}
}

// Notify posts the card for evt
func (t *TeamsNotifier) Notify(ctx context.Context, evt *event.Event) error {
	payload, err := json.Marshal(buildCard(evt))
	if err != nil {
		return fmt.Errorf("marshaling card: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return doRequest(t.client, req, "teams")
}
