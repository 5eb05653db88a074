// Package notify builds notification emails from configuration and hands
// them to the mail utility service.
package notify

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/Project-Sylos/Archivist/internal/types"
)

// ArgumentError means the notification configuration is missing a field
// or has one of the wrong shape
type ArgumentError struct {
	Field  string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid notification %s: %s", e.Field, e.Reason)
}

// Builder assembles emails from the notification config
type Builder struct {
	cfg types.NotificationConfig
}

// NewBuilder creates a builder over cfg
func NewBuilder(cfg types.NotificationConfig) *Builder {
	return &Builder{cfg: cfg}
}

// Build returns the configured email
func (b *Builder) Build() (types.Email, error) {
	return b.BuildWith("", "")
}

// BuildWith returns the configured email with subject and body replaced
// when they are non-empty
func (b *Builder) BuildWith(subject, body string) (types.Email, error) {
	recipients, err := splitRecipients(b.cfg.Recipient)
	if err != nil {
		return types.Email{}, err
	}

	from := strings.TrimSpace(b.cfg.Sender)
	if from == "" {
		return types.Email{}, &ArgumentError{Field: "sender", Reason: "is required"}
	}
	if _, err := mail.ParseAddress(from); err != nil {
		return types.Email{}, &ArgumentError{Field: "sender", Reason: err.Error()}
	}

	if subject == "" {
		subject = b.cfg.Subject
	}
	if body == "" {
		body = b.cfg.Message
	}
	if strings.TrimSpace(subject) == "" {
		return types.Email{}, &ArgumentError{Field: "subject", Reason: "is required"}
	}
	if strings.TrimSpace(body) == "" {
		return types.Email{}, &ArgumentError{Field: "message", Reason: "is required"}
	}

	return types.NewEmail(recipients, from, subject, body), nil
}

// splitRecipients turns "a@x.com, b@x.com" into a validated list
func splitRecipients(raw string) ([]string, error) {
	var recipients []string
	for _, part := range strings.Split(raw, ",") {
		addr := strings.TrimSpace(part)
		if addr == "" {
			continue
		}
		if _, err := mail.ParseAddress(addr); err != nil {
			return nil, &ArgumentError{Field: "recipient", Reason: fmt.Sprintf("%q: %v", addr, err)}
		}
		recipients = append(recipients, addr)
	}
	if len(recipients) == 0 {
		return nil, &ArgumentError{Field: "recipient", Reason: "at least one address is required"}
	}
	return recipients, nil
}
