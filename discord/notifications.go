package discord

import (
	"context"
	"fmt"

	"log/slog"

	"github.com/brensch/modlog/notice"
	"github.com/bwmarrin/discordgo"
)

// logChannel returns the registered log channel for guildID, if any. Lookup
// failures are logged and treated as unregistered.
func (b *Bot) logChannel(ctx context.Context, guildID string) (string, bool) {
	if guildID == "" {
		return "", false
	}
	channel, err := b.store.Get(ctx, guildID)
	if err != nil {
		slog.Error("failed to look up log channel", "guild", guildID, "error", err)
		return "", false
	}
	return channel.Get()
}

// sendNotice posts a finished embed to a log channel. Failures are logged and
// counted, never retried.
func (b *Bot) sendNotice(ctx context.Context, guildID, channelID string, kind notice.Kind, embed *discordgo.MessageEmbed) {
	_, err := b.api.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx))
	b.metrics.Notice(string(kind), err)
	if err != nil {
		slog.Error("failed to send notice", "guild", guildID, "channel", channelID, "kind", kind, "error", err)
		return
	}
	slog.Debug("notice sent", "guild", guildID, "channel", channelID, "kind", kind)
}

// reply answers the invoking message with plain text.
func (b *Bot) reply(inv *Invocation, content string) {
	_, err := b.api.ChannelMessageSendReply(inv.ChannelID, content, inv.reference())
	if err != nil {
		slog.Error("failed to send reply", "guild", inv.GuildID, "channel", inv.ChannelID, "error", err)
	}
}

// replyError answers the invoking message with a red error embed.
func (b *Bot) replyError(inv *Invocation, cause error) {
	errorEmbed := &discordgo.MessageEmbed{
		Title:       "Error",
		Description: fmt.Sprintf("```%v```", cause),
		Color:       0xFF0000,
	}
	_, err := b.api.ChannelMessageSendEmbedReply(inv.ChannelID, errorEmbed, inv.reference())
	if err != nil {
		slog.Error("failed to send error reply", "guild", inv.GuildID, "channel", inv.ChannelID, "error", err)
	}
}

func (inv *Invocation) reference() *discordgo.MessageReference {
	return &discordgo.MessageReference{
		MessageID: inv.MessageID,
		ChannelID: inv.ChannelID,
		GuildID:   inv.GuildID,
	}
}
