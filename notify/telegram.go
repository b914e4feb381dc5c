package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	// DefaultParseMode formats messages as Telegram Markdown.
	DefaultParseMode = tgbotapi.ModeMarkdown

	// DefaultTimeout bounds each Bot API request.
	DefaultTimeout = 30 * time.Second
)

// TelegramSender sends messages through the Telegram Bot API. The bot
// client is created on first use, since creating it calls getMe.
type TelegramSender struct {
	token     string
	endpoint  string
	parseMode string
	client    *http.Client
	bot       *tgbotapi.BotAPI
}

// TelegramOption configures a TelegramSender.
type TelegramOption func(*TelegramSender)

// WithAPIEndpoint overrides the Bot API URL template, for example
// "https://api.telegram.org/bot%s/%s".
func WithAPIEndpoint(endpoint string) TelegramOption {
	return func(s *TelegramSender) {
		if endpoint != "" {
			s.endpoint = endpoint
		}
	}
}

// WithParseMode sets the message markup mode. An empty mode sends plain text.
func WithParseMode(mode string) TelegramOption {
	return func(s *TelegramSender) {
		s.parseMode = mode
	}
}

// NewTelegramSender creates a sender authenticated with token.
func NewTelegramSender(token string, opts ...TelegramOption) *TelegramSender {
	s := &TelegramSender{
		token:     token,
		endpoint:  tgbotapi.APIEndpoint,
		parseMode: DefaultParseMode,
		client:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send implements Sender.
func (s *TelegramSender) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.bot == nil {
		bot, err := tgbotapi.NewBotAPIWithClient(s.token, s.endpoint, s.client)
		if err != nil {
			return fmt.Errorf("telegram: connect: %w", err)
		}
		s.bot = bot
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = s.parseMode

	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram: send to %d: %w", chatID, err)
	}
	return nil
}
