package mailer

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"github.com/yuin/goldmark"
)

// Mailer delivers notification email. Bodies are composed as markdown
// and rendered to HTML at send time.
type Mailer interface {
	Send(ctx context.Context, to, subject, markdownBody string) error
	IsConfigured() bool
}

var md = goldmark.New()

// SMTPMailer sends mail through a plain SMTP relay.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewSMTP creates an SMTP-backed mailer.
func NewSMTP(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{host: host, port: port, username: username, password: password, from: from}
}

// IsConfigured reports whether enough SMTP settings exist to send.
func (m *SMTPMailer) IsConfigured() bool {
	return m.host != "" && m.from != ""
}

// Send renders the markdown body to HTML and delivers one message.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, markdownBody string) error {
	if !m.IsConfigured() {
		return fmt.Errorf("smtp not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var html bytes.Buffer
	if err := md.Convert([]byte(markdownBody), &html); err != nil {
		return fmt.Errorf("rendering body: %w", err)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.Write(html.Bytes())

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	if err := smtp.SendMail(addr, auth, m.from, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("sending to %s: %w", to, err)
	}
	return nil
}

// LogMailer is the fallback when SMTP is unconfigured: it logs instead
// of sending, so notification cycles stay observable in development.
type LogMailer struct{}

func (LogMailer) IsConfigured() bool { return false }

func (LogMailer) Send(_ context.Context, to, subject, _ string) error {
	log.Printf("mailer: smtp unconfigured, dropping mail to %s (%q)", to, subject)
	return nil
}
