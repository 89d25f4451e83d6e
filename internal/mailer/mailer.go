// Package mailer sends transactional email through Mailgun.
package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/mailgun/mailgun-go/v3"
	log "github.com/sirupsen/logrus"
)

type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// sender is the subset of mailgun.Mailgun used here.
type sender interface {
	NewMessage(from, subject, text string, to ...string) *mailgun.Message
	Send(ctx context.Context, m *mailgun.Message) (string, string, error)
}

type MailgunMailer struct {
	mg   sender
	from string
}

func NewMailgunMailer(domain, apiKey, from string) *MailgunMailer {
	return &MailgunMailer{mg: mailgun.NewMailgun(domain, apiKey), from: from}
}

func (m *MailgunMailer) Send(ctx context.Context, email Email) error {
	if email.To == "" {
		return fmt.Errorf("email recipient is required")
	}

	message := m.mg.NewMessage(m.from, email.Subject, email.Text, email.To)
	if email.HTML != "" {
		message.SetHtml(email.HTML)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, id, err := m.mg.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	log.WithFields(log.Fields{"to": email.To, "id": id}).Info("mailer: email sent")
	return nil
}

// NoopMailer logs instead of sending. Used when Mailgun is not configured.
type NoopMailer struct{}

func (NoopMailer) Send(_ context.Context, email Email) error {
	log.WithFields(log.Fields{"to": email.To, "subject": email.Subject}).Debug("mailer: delivery disabled")
	return nil
}

func SponsorReceipt(sponsorEmail, sponsorName, builderUsername, amount, currency, plan string) Email {
	name := sponsorName
	if name == "" {
		name = "there"
	}
	target := "the platform"
	if builderUsername != "" {
		target = "@" + builderUsername
	}
	return Email{
		To:      sponsorEmail,
		Subject: "Thanks for sponsoring " + target,
		Text: fmt.Sprintf(
			"Hi %s,\n\nYour %s sponsorship of %s %s for %s is confirmed.\n\nThank you for supporting people who build in public.\n",
			name, plan, amount, currency, target,
		),
	}
}
