package discord

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/brensch/modlog/metrics"
	"github.com/brensch/modlog/registry"
	"github.com/bwmarrin/discordgo"
)

// Bot encapsulates the discordgo session, the log channel registry and the
// command table.
type Bot struct {
	session         *discordgo.Session
	api             API
	config          BotConfig
	store           registry.Store
	metrics         *metrics.Metrics
	commands        map[string]CommandI
	scheduleManager *scheduleManager
	now             func() time.Time
	ctx             context.Context
}

// BotConfig contains configuration for the bot.
type BotConfig struct {
	BotToken string
	// Prefix starts every command message, e.g. "?" in "?kick @user".
	Prefix       string
	MuteDuration time.Duration
	// AuditLogTimeout bounds the deleter lookup. Zero means no bound.
	AuditLogTimeout time.Duration
	// MessageCache is how many messages per channel the state keeps so that
	// deletes and edits can be reported with their previous content.
	MessageCache int
	// ChannelCheckCron schedules the registration check. Empty disables it.
	ChannelCheckCron string
}

// Intents the bot subscribes to: guild metadata, messages with content,
// member joins and leaves, bans and voice states.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsMessageContent |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildBans |
	discordgo.IntentsGuildVoiceStates

// NewBot opens a gateway session and starts relaying events. An invalid token
// fails here and the bot never becomes ready.
func NewBot(ctx context.Context, cfg BotConfig, store registry.Store, m *metrics.Metrics) (*Bot, error) {
	// Create a new Discord session using the provided bot token.
	dg, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	dg.Identify.Intents = Intents
	dg.State.MaxMessageCount = cfg.MessageCache

	bot := newBot(ctx, dg, cfg, store, m)
	bot.session = dg

	// Register event handlers.
	dg.AddHandler(bot.onReady)
	dg.AddHandler(bot.onMessageCreate)
	dg.AddHandler(bot.onMessageDelete)
	dg.AddHandler(bot.onMessageUpdate)
	dg.AddHandler(bot.onGuildMemberAdd)
	dg.AddHandler(bot.onGuildMemberRemove)
	dg.AddHandler(bot.onGuildBanAdd)
	dg.AddHandler(bot.onGuildBanRemove)
	dg.AddHandler(bot.onVoiceStateUpdate)

	// Open the websocket connection.
	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("failed to open Discord connection: %w", err)
	}

	if cfg.ChannelCheckCron != "" {
		bot.scheduleManager = newScheduleManager(bot, []BotScheduleI{
			bot.ScheduleChannelCheck(cfg.ChannelCheckCron),
		})
		if err := bot.scheduleManager.start(); err != nil {
			dg.Close()
			return nil, fmt.Errorf("failed to start schedule manager: %w", err)
		}
	}

	return bot, nil
}

// newBot wires a bot around api without touching the network.
func newBot(ctx context.Context, api API, cfg BotConfig, store registry.Store, m *metrics.Metrics) *Bot {
	commands := make(map[string]CommandI)
	for _, cmd := range moderationCommands() {
		commands[cmd.GetName()] = cmd
	}
	return &Bot{
		api:      api,
		config:   cfg,
		store:    store,
		metrics:  m,
		commands: commands,
		now:      time.Now,
		ctx:      ctx,
	}
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	slog.Info("logged in", "user", r.User.String(), "guilds", len(r.Guilds))
}

// Close gracefully closes the Discord session and stops the schedule manager.
func (b *Bot) Close() error {
	slog.Info("shutting down bot")

	if b.scheduleManager != nil {
		b.scheduleManager.stop()
	}

	if b.session == nil {
		return nil
	}
	return b.session.Close()
}
