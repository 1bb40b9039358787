package notifier

import "context"

// WhatsAppSender delivers a text message through the chat gateway.
type WhatsAppSender interface {
	Send(ctx context.Context, phone, text string) error
}

// EmailSender delivers a rendered message over SMTP.
type EmailSender interface {
	Send(ctx context.Context, to, displayName, subject, htmlBody, textBody string) error
}
