// Package email delivers notifications over SMTP.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"

	"statswatch/internal/domain"
	"statswatch/internal/ports"
)

// Notifier sends plain-text notification mail through an SMTP server.
type Notifier struct {
	host      string
	port      int
	sender    string
	password  string
	recipient string
	logger    *slog.Logger
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier wires SMTP credentials and the single recipient address.
func NewNotifier(host string, port int, sender, password, recipient string, logger *slog.Logger) *Notifier {
	return &Notifier{
		host:      host,
		port:      port,
		sender:    sender,
		password:  password,
		recipient: recipient,
		logger:    logger,
	}
}

// Configured reports whether the notifier has enough settings to send mail.
func (n *Notifier) Configured() bool {
	return n.sender != "" && n.password != "" && n.recipient != ""
}

// Deliver sends the notification and reports success. Failures are logged
// and reported as false; they never propagate to the calling cycle.
func (n *Notifier) Deliver(_ context.Context, note domain.Notification) bool {
	if !n.Configured() {
		n.logger.Warn("email notifier not configured, skipping delivery")
		return false
	}

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Statswatch <%s>", n.sender)
	mail.To = []string{n.recipient}
	mail.Subject = subjectFor(note)
	mail.Text = []byte(bodyFor(note))

	addr := fmt.Sprintf("%s:%d", n.host, n.port)
	err := mail.Send(addr, smtp.PlainAuth("", n.sender, n.password, n.host))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		n.logger.Error("email delivery failed", "subject", mail.Subject, "error", err)
		return false
	}

	n.logger.Info("email sent", "subject", mail.Subject)
	return true
}

func subjectFor(note domain.Notification) string {
	switch note.Kind {
	case domain.NotificationBaseline:
		return fmt.Sprintf("%s - Monitoring Started", note.ItemName)
	case domain.NotificationDigest:
		return fmt.Sprintf("Batch Update - %d changes detected", note.Count)
	default:
		return fmt.Sprintf("%s - Changes Detected", note.ItemName)
	}
}

func bodyFor(note domain.Notification) string {
	var b strings.Builder

	switch note.Kind {
	case domain.NotificationBaseline:
		fmt.Fprintf(&b, "Now monitoring %s\n%s\n\nInitial state:\n", note.ItemName, note.ItemURL)
	case domain.NotificationDigest:
		fmt.Fprintf(&b, "The following changes were detected in your monitored items:\n\n")
	default:
		fmt.Fprintf(&b, "Changes detected for %s\n%s\n\n", note.ItemName, note.ItemURL)
	}

	for _, line := range note.Lines {
		fmt.Fprintf(&b, "  • %s\n", line)
	}

	return b.String()
}
