package notifier

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chrisilt/course-watcher/internal/calendar"
	"github.com/chrisilt/course-watcher/internal/event"
)

// ErrEmailIncomplete is returned when an email setting is missing
var ErrEmailIncomplete = errors.New("email settings incomplete")

// EmailConfig holds the SMTP settings
type EmailConfig struct {
	From     string
	To       []string
	Host     string
	Port     int
	User     string
	Password string
}

// Complete reports whether every required setting is present
func (c EmailConfig) Complete() bool {
	return c.From != "" && len(c.To) > 0 && c.Host != "" && c.User != "" && c.Password != ""
}

// ParseRecipients splits a comma separated address list
func ParseRecipients(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

type sendFunc func(ctx context.Context, cfg EmailConfig, msg []byte) error

// EmailNotifier sends a multipart message over SMTP with STARTTLS and PLAIN auth
type EmailNotifier struct {
	cfg  EmailConfig
	send sendFunc
	now  func() time.Time
}

// NewEmailNotifier creates an email sink; every setting is required
func NewEmailNotifier(cfg EmailConfig) (*EmailNotifier, error) {
	if !cfg.Complete() {
		return nil, ErrEmailIncomplete
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &EmailNotifier{cfg: cfg, send: sendSMTP, now: time.Now}, nil
}

func (e *EmailNotifier) Name() string {
	return "email"
}

// Notify builds and sends the message for evt
func (e *EmailNotifier) Notify(ctx context.Context, evt *event.Event) error {
	msg, err := e.buildMessage(evt)
	if err != nil {
		return fmt.Errorf("building message: %w", err)
	}
	return e.send(ctx, e.cfg, msg)
}

// buildMessage renders a multipart/alternative body. When the deadline parses the
// message becomes multipart/mixed with an ICS reminder attached.
func (e *EmailNotifier) buildMessage(evt *event.Event) ([]byte, error) {
	now := e.now()

	var msg bytes.Buffer
	header := func(k, v string) {
		fmt.Fprintf(&msg, "%s: %s\r\n", k, v)
	}

	header("From", e.cfg.From)
	header("To", strings.Join(e.cfg.To, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", subject(evt)))
	header("Date", now.Format(time.RFC1123Z))
	header("Message-ID", fmt.Sprintf("<%s@course-watcher>", uuid.NewString()))
	header("MIME-Version", "1.0")

	ics, hasICS := calendar.ForEvent(evt, now)

	var body bytes.Buffer
	alt := multipart.NewWriter(&body)
	if err := writeTextPart(alt, "text/plain; charset=utf-8", formatText(evt)); err != nil {
		return nil, err
	}
	if err := writeTextPart(alt, "text/html; charset=utf-8", formatHTML(evt)); err != nil {
		return nil, err
	}
	if err := alt.Close(); err != nil {
		return nil, err
	}

	if !hasICS {
		header("Content-Type", "multipart/alternative; boundary="+alt.Boundary())
		msg.WriteString("\r\n")
		msg.Write(body.Bytes())
		return msg.Bytes(), nil
	}

	mixed := multipart.NewWriter(&msg)
	header("Content-Type", "multipart/mixed; boundary="+mixed.Boundary())
	msg.WriteString("\r\n")

	altPart, err := mixed.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"multipart/alternative; boundary=" + alt.Boundary()},
	})
	if err != nil {
		return nil, err
	}
	if _, err := altPart.Write(body.Bytes()); err != nil {
		return nil, err
	}

	icsPart, err := mixed.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {`text/calendar; charset=utf-8; method=PUBLISH; name="deadline.ics"`},
		"Content-Disposition":       {`attachment; filename="deadline.ics"`},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return nil, err
	}
	if err := writeBase64(icsPart, []byte(ics)); err != nil {
		return nil, err
	}

	if err := mixed.Close(); err != nil {
		return nil, err
	}
	return msg.Bytes(), nil
}

func writeTextPart(w *multipart.Writer, contentType, text string) error {
	part, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {contentType},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return err
	}
	return writeBase64(part, []byte(text))
}

// writeBase64 writes data base64 encoded in 76 character lines
func writeBase64(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 76 {
		if _, err := fmt.Fprintf(w, "%s\r\n", encoded[:76]); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	_, err := fmt.Fprintf(w, "%s\r\n", encoded)
	return err
}

// sendSMTP delivers msg, upgrading the connection with STARTTLS before authenticating
func sendSMTP(ctx context.Context, cfg EmailConfig, msg []byte) error {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	dialer := &net.Dialer{Timeout: 15 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if err := c.StartTLS(&tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
		return fmt.Errorf("starttls: %w", err)
	}
	if err := c.Auth(smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}

	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return fmt.Errorf("parsing from address: %w", err)
	}
	if err := c.Mail(from.Address); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range cfg.To {
		to, err := mail.ParseAddress(rcpt)
		if err != nil {
			return fmt.Errorf("parsing recipient %q: %w", rcpt, err)
		}
		if err := c.Rcpt(to.Address); err != nil {
			return fmt.Errorf("rcpt to %s: %w", to.Address, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finishing message: %w", err)
	}

	return c.Quit()
}
