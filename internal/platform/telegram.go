// Package platform holds the chat-platform adapters a frontend process can
// run. Each adapter reports inbound platform events through a sink and
// executes commands the backend pushes down the stream.
package platform

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"relayhub/internal/domain"
)

// Telegram bridges a Telegram bot via long polling.
type Telegram struct {
	token  string
	bot    *tgbotapi.BotAPI
	logger *slog.Logger
}

type TelegramOptions struct {
	Token  string
	Logger *slog.Logger
}

func NewTelegram(opts TelegramOptions) *Telegram {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Telegram{token: opts.Token, logger: opts.Logger}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Platform() domain.Platform { return domain.PlatformTelegram }

// Start connects to Telegram and polls for updates until ctx is cancelled.
func (t *Telegram) Start(ctx context.Context, sink domain.ReportSink) error {
	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram adapter stopping")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			sink(domain.BotMessage{
				EventID:  strconv.Itoa(update.UpdateID),
				Platform: domain.PlatformTelegram,
				ChatID:   strconv.FormatInt(update.Message.Chat.ID, 10),
				SenderID: strconv.FormatInt(update.Message.From.ID, 10),
				Content:  update.Message.Text,
				Metadata: map[string]string{
					"username": update.Message.From.UserName,
				},
				Timestamp: int64(update.Message.Date),
			})
		}
	}
}

// Execute runs one backend command against Telegram.
func (t *Telegram) Execute(ctx context.Context, cmd domain.BotCommand) error {
	switch cmd.CommandType {
	case domain.CommandSendMessage:
		chatID, err := strconv.ParseInt(cmd.Parameters["chat_id"], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid chat_id %q: %w", cmd.Parameters["chat_id"], err)
		}
		msg := tgbotapi.NewMessage(chatID, cmd.Parameters["content"])
		if _, err := t.bot.Send(msg); err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
		return nil
	default:
		t.logger.Warn("unsupported command type", "command_type", cmd.CommandType, "command_id", cmd.CommandID)
		return nil
	}
}
