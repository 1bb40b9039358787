package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/collections-notifier/internal/config"
)

// Sender delivers messages over SMTP via gomail. gomail has no context
// support, so Send runs the dial in a goroutine and honors cancellation
// by abandoning the wait; the SMTP connection times out on its own.
type Sender struct {
	cfg    config.SMTPConfig
	dialer *gomail.Dialer
}

func NewSender(cfg config.SMTPConfig) *Sender {
	return &Sender{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (s *Sender) Send(ctx context.Context, to, displayName, subject, htmlBody, textBody string) error {
	if to == "" {
		return fmt.Errorf("destination email is required")
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.cfg.From, s.cfg.FromName)
	m.SetAddressHeader("To", to, displayName)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", textBody)
	if htmlBody != "" {
		m.AddAlternative("text/html", htmlBody)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("email send canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp delivery failed: %w", err)
		}
		return nil
	}
}
