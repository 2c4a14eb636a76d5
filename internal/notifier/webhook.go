package notifier

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/chrisilt/course-watcher/internal/event"
)

// Header names for signed webhook requests
const (
	HeaderSignature  = "X-Watcher-Signature"
	HeaderTimestamp  = "X-Watcher-Timestamp"
	HeaderDeliveryID = "X-Watcher-Delivery-Id"
)

const maxErrorBody = 1024

// WebhookNotifier posts the event as JSON to a URL
type WebhookNotifier struct {
	url       string
	secret    string
	userAgent string
	client    *http.Client
	now       func() time.Time
}

// NewWebhookNotifier creates a webhook sink. With a non-empty secret every request
// is signed with HMAC-SHA256.
func NewWebhookNotifier(url, secret, userAgent string, timeout time.Duration) (*WebhookNotifier, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	return &WebhookNotifier{
		url:       url,
		secret:    secret,
		userAgent: userAgent,
		client:    newHTTPClient(timeout),
		now:       time.Now,
	}, nil
}

func (w *WebhookNotifier) Name() string {
	return "webhook"
}

// Notify posts evt. Any non-2xx response is an error.
func (w *WebhookNotifier) Notify(ctx context.Context, evt *event.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.userAgent != "" {
		req.Header.Set("User-Agent", w.userAgent)
	}
	req.Header.Set(HeaderDeliveryID, uuid.NewString())

	if w.secret != "" {
		ts := w.now().Unix()
		req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
		req.Header.Set(HeaderSignature, GenerateSignature(w.secret, ts, payload))
	}

	return doRequest(w.client, req, "webhook")
}

// GenerateSignature returns the hex HMAC-SHA256 of "{timestamp}.{payload}"
func GenerateSignature(secret string, timestamp int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a signature produced by GenerateSignature
func VerifySignature(secret, signature string, timestamp int64, payload []byte) bool {
	expected := GenerateSignature(secret, timestamp, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: timeout,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}

// doRequest sends req and turns a non-2xx status into an error carrying the body
func doRequest(client *http.Client, req *http.Request, sink string) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%s error (status %d): %s", sink, resp.StatusCode, string(body))
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
