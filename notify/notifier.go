package notify

import (
	"context"
	"log/slog"

	"github.com/ciotto/telegram-bot-deploy/errors"
)

// Sender delivers a text message to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Notifier renders templates and hands them to a Sender.
type Notifier struct {
	sender    Sender
	chatID    int64
	templates Templates
	logger    *slog.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithLogger sets the logger used for skipped and sent messages.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

// New creates a Notifier. A nil sender or a zero chatID turns every send
// into a no-op.
func New(sender Sender, chatID int64, templates Templates, opts ...Option) *Notifier {
	n := &Notifier{
		sender:    sender,
		chatID:    chatID,
		templates: templates,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Enabled reports whether messages are actually delivered.
func (n *Notifier) Enabled() bool {
	return n.sender != nil && n.chatID != 0
}

// Send delivers text once. Transport failures are returned, not retried.
func (n *Notifier) Send(ctx context.Context, text string) error {
	if !n.Enabled() {
		n.logger.InfoContext(ctx, "chat not configured, message not sent", "text", text)
		return nil
	}

	if err := n.sender.Send(ctx, n.chatID, text); err != nil {
		return errors.WrapWithContext(err, errors.CodeNetwork, "failed to send chat message",
			map[string]any{"chat_id": n.chatID})
	}

	n.logger.DebugContext(ctx, "chat message sent", "chat_id", n.chatID)
	return nil
}

// Notify renders the template for kind with values and sends it. An empty
// template sends nothing.
func (n *Notifier) Notify(ctx context.Context, kind Kind, values map[string]any) error {
	template := n.templates[kind]
	if template == "" {
		n.logger.DebugContext(ctx, "no template, message skipped", "kind", kind.String())
		return nil
	}
	return n.Send(ctx, Render(template, values))
}
