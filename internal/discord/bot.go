package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/NgigiN/fintrack/internal/budget"
	"github.com/NgigiN/fintrack/internal/config"
	"github.com/NgigiN/fintrack/internal/ledger"
)

// handlerTimeout bounds the store work done for one chat message.
const handlerTimeout = 30 * time.Second

// Sender is the part of a Discord session used to post messages.
type Sender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type Bot struct {
	session   *discordgo.Session
	channelID string
	ownerID   string
	ledger    *ledger.Service
	budgets   *budget.Service
	log       zerolog.Logger
	now       func() time.Time
}

func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentGuildMessages | discordgo.IntentMessageContent
	return session, nil
}

// NewBot wires chat commands for one channel acting as the configured ledger owner.
func NewBot(session *discordgo.Session, cfg *config.Config, ledgerSvc *ledger.Service, budgets *budget.Service, log zerolog.Logger) *Bot {
	bot := &Bot{
		session:   session,
		channelID: cfg.DiscordChannelId,
		ownerID:   cfg.DiscordOwnerId,
		ledger:    ledgerSvc,
		budgets:   budgets,
		log:       log.With().Str("component", "discord").Logger(),
		now:       time.Now,
	}
	if session != nil {
		session.AddHandler(bot.handleMessage)
	}
	return bot
}

func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	b.log.Info().Str("channel_id", b.channelID).Msg("discord bot connected")
	return nil
}

func (b *Bot) Stop() {
	if err := b.session.Close(); err != nil {
		b.log.Warn().Err(err).Msg("failed to close discord session")
	}
}

func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || (s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID) {
		return //bot's messages
	}
	if m.ChannelID != b.channelID {
		return //specific to the channel
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	reply := b.handleContent(ctx, m.Content)
	if reply == "" {
		return
	}
	if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
		b.log.Error().Err(err).Str("channel_id", m.ChannelID).Msg("failed to send reply")
	}
}

// handleContent routes one chat message and returns the reply to post.
func (b *Bot) handleContent(ctx context.Context, content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}

	if strings.HasPrefix(content, "!") {
		args := strings.Fields(content)
		switch strings.ToLower(args[0]) {
		case "!balance":
			return b.balanceCommand(ctx)
		case "!budget":
			return b.budgetCommand(ctx)
		case "!report":
			return b.reportCommand(ctx, args[1:])
		case "!summary":
			return b.summaryCommand(ctx, args[1:])
		case "!help":
			return helpText
		}
		return fmt.Sprintf("Unknown command %s\n%s", args[0], helpText)
	}

	if isBatchMessage(content) {
		return b.handleBatch(ctx, content)
	}
	return b.handleSingle(ctx, content)
}

const helpText = "Commands:\n" +
	"!balance - account balances\n" +
	"!budget - this month's spending against your budget\n" +
	"!report [YYYY-MM] - monthly report\n" +
	"!summary [category] - this month's totals, or the latest transactions in a category\n" +
	"Paste an M-PESA confirmation (optionally followed by `c: <category>` and `r: <reason>`) to record an expense."
