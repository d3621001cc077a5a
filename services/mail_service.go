package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/rs/zerolog"
)

// InviteMail is the content of an invitation email.
type InviteMail struct {
	To          string
	InviterName string
	GroupName   string
	Link        string
}

// Mailer delivers invitation emails.
type Mailer interface {
	SendInvite(ctx context.Context, mail InviteMail) error
}

type SMTPSettings struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NewMailer returns an SMTP mailer, or a mailer that only logs the
// activation link when no SMTP host is configured.
func NewMailer(cfg SMTPSettings) Mailer {
	if cfg.Host == "" {
		return LogMailer{}
	}
	return &SMTPMailer{cfg: cfg, timeout: 30 * time.Second}
}

var inviteBody = template.Must(template.New("invite").Parse(
	`Hi!

{{.InviterName}} has invited you to join the group "{{.GroupName}}" on Friend Finder.

Follow the link below to choose a password and activate your account:

{{.Link}}

If you were not expecting this invitation you can ignore this email.
`))

// headerValue drops line breaks so a value cannot start a new header.
func headerValue(v string) string {
	return strings.NewReplacer("\r", "", "\n", " ").Replace(v)
}

func renderInvite(from string, mail InviteMail) ([]byte, error) {
	mail.InviterName = headerValue(mail.InviterName)
	var body bytes.Buffer
	if err := inviteBody.Execute(&body, mail); err != nil {
		return nil, err
	}
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: Friend Finder <%s>\r\n", headerValue(from))
	fmt.Fprintf(&msg, "To: %s\r\n", headerValue(mail.To))
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", headerValue(mail.InviterName+" invited you to Friend Finder")))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

// SMTPMailer sends mail over SMTP, upgrading the connection with STARTTLS.
type SMTPMailer struct {
	cfg     SMTPSettings
	timeout time.Duration
}

func (m *SMTPMailer) SendInvite(ctx context.Context, mail InviteMail) error {
	msg, err := renderInvite(m.cfg.From, mail)
	if err != nil {
		return fmt.Errorf("failed to render invite: %w", err)
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	dialer := &net.Dialer{Timeout: m.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}
	if m.cfg.Username != "" {
		if err := client.Auth(smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}
	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(mail.To); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start message: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close message: %w", err)
	}
	// message is accepted at this point
	_ = client.Quit()
	return nil
}

// LogMailer writes the activation link to the log instead of sending mail.
type LogMailer struct{}

func (LogMailer) SendInvite(ctx context.Context, mail InviteMail) error {
	zerolog.Ctx(ctx).Info().Str("to", mail.To).Str("link", mail.Link).Msg("SMTP not configured, invitation not emailed")
	return nil
}
