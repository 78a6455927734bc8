package worker

// email_worker.go
// Processes email jobs from QueueEmail: mails a stored closing report as a
// PDF attachment. SMTP calls go through the "smtp" circuit breaker.

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"cashledger/internal/infra"

	"github.com/rs/zerolog/log"
)

// EmailJobPayload is the job envelope sent to QueueEmail.
type EmailJobPayload struct {
	To         []string `json:"to"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	ReportName string   `json:"report_name,omitempty"`
}

// MailSender is satisfied by *infra.Mailer.
type MailSender interface {
	Configured() bool
	Send(ctx context.Context, to []string, subject, body string, attachments ...infra.Attachment) error
}

type EmailWorker struct {
	mailer MailSender
	store  infra.ReportStore
	cb     *infra.CircuitBreaker
}

func NewEmailWorker(mailer MailSender, store infra.ReportStore, cb *infra.CircuitBreaker) *EmailWorker {
	return &EmailWorker{mailer: mailer, store: store, cb: cb}
}

func (w *EmailWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload EmailJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("%w: email payload: %v", ErrPermanent, err)
	}
	if len(payload.To) == 0 {
		log.Warn().Msg("email_worker: no recipients, skipping")
		return nil
	}
	if !w.mailer.Configured() {
		log.Warn().Strs("to", payload.To).Msg("email_worker: SMTP not configured, skipping")
		return nil
	}

	var attachments []infra.Attachment
	if payload.ReportName != "" {
		rc, err := w.store.Open(ctx, payload.ReportName)
		if err != nil {
			return fmt.Errorf("email_worker: open report: %w", err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return fmt.Errorf("email_worker: read report: %w", err)
		}
		attachments = append(attachments, infra.Attachment{Name: payload.ReportName, ContentType: "application/pdf", Data: data})
	}

	err := w.cb.Execute(ctx, func(ctx context.Context) error {
		return w.mailer.Send(ctx, payload.To, payload.Subject, payload.Body, attachments...)
	})
	if err != nil {
		return fmt.Errorf("email_worker: send: %w", err)
	}
	log.Info().Strs("to", payload.To).Str("report", payload.ReportName).Msg("email_worker: report sent")
	return nil
}
