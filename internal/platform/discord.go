package platform

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"relayhub/internal/domain"
)

// Discord bridges a Discord bot session.
type Discord struct {
	token   string
	guildID string
	session *discordgo.Session
	logger  *slog.Logger
}

type DiscordOptions struct {
	Token   string
	GuildID string // optional: restrict to one guild
	Logger  *slog.Logger
}

func NewDiscord(opts DiscordOptions) *Discord {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Discord{token: opts.Token, guildID: opts.GuildID, logger: opts.Logger}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Platform() domain.Platform { return domain.PlatformDiscord }

// Start connects to Discord and reports messages until ctx is cancelled.
func (d *Discord) Start(ctx context.Context, sink domain.ReportSink) error {
	session, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
	d.session = session

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		// Ignore the bot's own messages.
		if m.Author.ID == s.State.User.ID {
			return
		}
		if d.guildID != "" && m.GuildID != d.guildID {
			return
		}
		sink(domain.BotMessage{
			EventID:  m.ID,
			Platform: domain.PlatformDiscord,
			ChatID:   m.ChannelID,
			SenderID: m.Author.ID,
			Content:  m.Content,
			Metadata: map[string]string{
				"username": m.Author.Username,
				"guild_id": m.GuildID,
			},
		})
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}
	d.logger.Info("discord session open")

	<-ctx.Done()
	d.logger.Info("discord adapter stopping")
	return session.Close()
}

// Execute runs one backend command against Discord.
func (d *Discord) Execute(ctx context.Context, cmd domain.BotCommand) error {
	switch cmd.CommandType {
	case domain.CommandSendMessage:
		chatID := cmd.Parameters["chat_id"]
		if chatID == "" {
			return fmt.Errorf("missing chat_id parameter")
		}
		if _, err := d.session.ChannelMessageSend(chatID, cmd.Parameters["content"]); err != nil {
			return fmt.Errorf("discord send: %w", err)
		}
		return nil
	default:
		d.logger.Warn("unsupported command type", "command_type", cmd.CommandType, "command_id", cmd.CommandID)
		return nil
	}
}
