package notify

import (
	"context"
	"errors"

	"github.com/Project-Sylos/Archivist/internal/types"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned when no mail utility URL is set
var ErrNotConfigured = errors.New("mail utility url is not configured")

// Notifier builds and sends in one call
type Notifier struct {
	builder *Builder
	sender  *Sender
}

// NewNotifier wires a builder and sender from cfg
func NewNotifier(cfg types.NotificationConfig, logger *zap.Logger) *Notifier {
	n := &Notifier{builder: NewBuilder(cfg)}
	if cfg.MailUtilityURL != "" {
		n.sender = NewSender(cfg.MailUtilityURL, cfg.Timeout(), logger)
	}
	return n
}

// Notify sends the configured email
func (n *Notifier) Notify(ctx context.Context) (types.Email, error) {
	return n.NotifyWith(ctx, "", "")
}

// NotifyWith sends the configured email with subject and body replaced
// when they are non-empty
func (n *Notifier) NotifyWith(ctx context.Context, subject, body string) (types.Email, error) {
	email, err := n.builder.BuildWith(subject, body)
	if err != nil {
		return types.Email{}, err
	}
	if n.sender == nil {
		return email, ErrNotConfigured
	}
	return email, n.sender.Send(ctx, email)
}
