package transport

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"MacroBrief/internal/config"
	"MacroBrief/internal/domain"
	"MacroBrief/internal/ports"
)

// EmailTransport delivers briefings as multipart plain+HTML email over
// SMTP.
type EmailTransport struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       string
}

var _ ports.Transport = (*EmailTransport)(nil)

// NewEmailTransport wires the SMTP transport from config.
func NewEmailTransport(cfg config.EmailConfig) *EmailTransport {
	return &EmailTransport{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		to:       cfg.To,
	}
}

// Name identifies the channel in the ledger and the notification log.
func (t *EmailTransport) Name() string { return "email" }

// Send delivers the message, honoring ctx cancellation: net/smtp has no
// context support, so the send runs in a goroutine and a ctx timeout
// reports failure while the connection is abandoned to its own TCP
// timeout.
func (t *EmailTransport) Send(ctx context.Context, msg domain.Message) error {
	if t.from == "" || t.to == "" {
		return fmt.Errorf("email transport misconfigured")
	}

	payload := t.buildMIME(msg)
	addr := fmt.Sprintf("%s:%d", t.host, t.port)
	auth := smtp.PlainAuth("", t.username, t.password, t.host)

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, t.from, []string{t.to}, payload)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send mail: %w", ctx.Err())
	}
}

func (t *EmailTransport) buildMIME(msg domain.Message) []byte {
	const boundary = "macrobrief-boundary"

	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", t.from)
	fmt.Fprintf(&sb, "To: %s\r\n", t.to)
	fmt.Fprintf(&sb, "Subject: %s\r\n", msg.Subject)
	sb.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&sb, "Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	sb.WriteString("\r\n")

	fmt.Fprintf(&sb, "--%s\r\n", boundary)
	sb.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	sb.WriteString(msg.PlainBody)
	sb.WriteString("\r\n")

	fmt.Fprintf(&sb, "--%s\r\n", boundary)
	sb.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n\r\n")
	sb.WriteString(msg.HTMLBody)
	sb.WriteString("\r\n")

	fmt.Fprintf(&sb, "--%s--\r\n", boundary)
	return []byte(sb.String())
}
