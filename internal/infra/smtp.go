package infra

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"

	"cashledger/internal/config"

	"github.com/jordan-wright/email"
)

// Mailer wraps SMTP configuration for sending closing reports.
type Mailer struct {
	host     string
	user     string
	password string
	from     string
	addr     string
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		host:     cfg.SMTPHost,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     cfg.SMTPFrom,
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
	}
}

// Configured is false when no SMTP host is set; report mails are skipped.
func (m *Mailer) Configured() bool { return m.host != "" }

// Attachment is an in-memory file attached to a mail.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Send delivers a plain-text mail. ctx only gates the start of delivery;
// net/smtp has no cancellation once connected.
func (m *Mailer) Send(ctx context.Context, to []string, subject, body string, attachments ...Attachment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := email.NewEmail()
	e.From = m.from
	if e.From == "" {
		e.From = m.user
	}
	e.To = to
	e.Subject = subject
	e.Text = []byte(body)

	for _, a := range attachments {
		if _, err := e.Attach(bytes.NewReader(a.Data), a.Name, a.ContentType); err != nil {
			return fmt.Errorf("mailer: attach %s: %w", a.Name, err)
		}
	}

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.password, m.host)
	}
	return e.Send(m.addr, auth)
}
