package notify

import (
	"context"
	"fmt"

	"gopkg.in/telebot.v3"
)

// Notifier delivers a short run report.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Telegram sends run reports to one chat.
type Telegram struct {
	bot  *telebot.Bot
	chat *telebot.Chat
}

// NewTelegram creates an offline bot: it only sends and never polls, so no
// request is made before the first report.
func NewTelegram(token string, chatID int64, apiURL string) (*Telegram, error) {
	bot, err := telebot.NewBot(telebot.Settings{
		URL:     apiURL,
		Token:   token,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create Telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chat: &telebot.Chat{ID: chatID}}, nil
}

func (t *Telegram) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.bot.Send(t.chat, text, &telebot.SendOptions{DisableWebPagePreview: true}); err != nil {
		return fmt.Errorf("telegram send to chat %d: %w", t.chat.ID, err)
	}
	return nil
}
