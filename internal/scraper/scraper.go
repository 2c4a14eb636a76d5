package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultUserAgent = "course-watcher/1.0 (github.com/chrisilt/course-watcher)"
	DefaultTimeout   = 15 * time.Second

	// maxBodyBytes caps the listing page we are willing to read
	maxBodyBytes = 10 << 20
)

// Scraper fetches the registrations page
type Scraper struct {
	client    *http.Client
	url       string
	userAgent string
}

// New creates a new Scraper for url. A zero timeout or empty user agent uses the defaults.
func New(url, userAgent string, timeout time.Duration) *Scraper {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &Scraper{
		client: &http.Client{
			Timeout: timeout,
		},
		url:       url,
		userAgent: userAgent,
	}
}

// URL returns the page being scraped
func (s *Scraper) URL() string {
	return s.url
}

// Fetch performs a single GET of the page and returns its body.
// There is no retry; callers abort the run on error.
func (s *Scraper) Fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}

	return string(body), nil
}
