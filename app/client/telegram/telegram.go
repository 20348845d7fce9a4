package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"medremind/app/config"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/do"
)

type Message struct {
	ChatID string
	Text   string
}

type Client struct {
	bot         *tgbotapi.BotAPI
	pollTimeout int
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	bot, err := tgbotapi.NewBotAPI(cfg.Messenger.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	slog.Info("Authorized on telegram", "username", bot.Self.UserName)

	return &Client{
		bot:         bot,
		pollTimeout: cfg.Messenger.Telegram.PollTimeout,
	}, nil
}

func (c *Client) Send(_ context.Context, to, body string) error {
	chatID, err := strconv.ParseInt(strings.TrimSpace(to), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", to, err)
	}

	msg := tgbotapi.NewMessage(chatID, body)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err = c.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}

	return nil
}

// Listen long-polls for text messages until ctx is done.
func (c *Client) Listen(ctx context.Context, handle func(Message)) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = c.pollTimeout

	updates := c.bot.GetUpdatesChan(u)
	defer c.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.Text == "" {
				continue
			}

			handle(Message{
				ChatID: strconv.FormatInt(update.Message.Chat.ID, 10),
				Text:   strings.TrimSpace(update.Message.Text),
			})
		}
	}
}
