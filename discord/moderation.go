package discord

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/brensch/modlog/notice"
	"github.com/bwmarrin/discordgo"
)

// bulkDeleteMaxAge is the oldest message Discord will bulk delete.
const bulkDeleteMaxAge = 14 * 24 * time.Hour

// UnbanRequest names the user to unban by raw ID. It is optional so an empty
// ID reaches Discord and fails there.
type UnbanRequest struct {
	UserID string `command:"user_id,optional"`
}

// ClearRequest is the number of recent messages to delete.
type ClearRequest struct {
	Count int `command:"count"`
}

func moderationCommands() []CommandI {
	return []CommandI{
		NewCommand("setlogs", handleSetLogs, requireAdministrator),
		NewCommand("kick", handleKick, requireMention),
		NewCommand("ban", handleBan, requireMention),
		NewCommand("unban", handleUnban),
		NewCommand("mute", handleMute, requireMention),
		NewCommand("unmute", handleUnmute, requireMention),
		NewCommand("clear", handleClear),
	}
}

// handleSetLogs registers the first mentioned channel as the guild's log channel.
func handleSetLogs(ctx context.Context, b *Bot, inv *Invocation, _ NoArgs) error {
	channelID, ok := firstChannelMention(inv.Content)
	if !ok {
		return &Rejection{Reply: "❌ Mention a channel."}
	}

	channel, err := b.api.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		slog.Debug("mentioned channel did not resolve", "channel", channelID, "error", err)
		return &Rejection{Reply: "❌ Mention a channel."}
	}

	if err := b.store.Set(ctx, inv.GuildID, channel.ID); err != nil {
		return fmt.Errorf("failed to register log channel: %w", err)
	}

	slog.Info("log channel set", "guild", inv.GuildID, "channel", channel.ID, "by", inv.Author.ID)
	b.reply(inv, "✅ Logs channel set to "+notice.ChannelRef(channel.ID))
	return nil
}

func handleKick(ctx context.Context, b *Bot, inv *Invocation, _ NoArgs) error {
	target := inv.target()
	if err := b.api.GuildMemberDelete(inv.GuildID, target.ID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to kick %s: %w", target.String(), err)
	}
	return nil
}

func handleBan(ctx context.Context, b *Bot, inv *Invocation, _ NoArgs) error {
	target := inv.target()
	if err := b.api.GuildBanCreate(inv.GuildID, target.ID, 0, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to ban %s: %w", target.String(), err)
	}
	return nil
}

func handleUnban(ctx context.Context, b *Bot, inv *Invocation, req UnbanRequest) error {
	if err := b.api.GuildBanDelete(inv.GuildID, req.UserID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to unban %q: %w", req.UserID, err)
	}
	return nil
}

func handleMute(ctx context.Context, b *Bot, inv *Invocation, _ NoArgs) error {
	target := inv.target()
	until := b.now().Add(b.config.MuteDuration)
	if err := b.api.GuildMemberTimeout(inv.GuildID, target.ID, &until, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to time out %s: %w", target.String(), err)
	}
	return nil
}

func handleUnmute(ctx context.Context, b *Bot, inv *Invocation, _ NoArgs) error {
	target := inv.target()
	if err := b.api.GuildMemberTimeout(inv.GuildID, target.ID, nil, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to clear timeout for %s: %w", target.String(), err)
	}
	return nil
}

// handleClear deletes the most recent req.Count messages in the invoking
// channel, the command message included. Messages too old to bulk delete are
// skipped rather than failing the whole request.
func handleClear(ctx context.Context, b *Bot, inv *Invocation, req ClearRequest) error {
	if req.Count < 1 {
		return fmt.Errorf("count must be at least 1, got %d", req.Count)
	}

	messages, err := b.api.ChannelMessages(inv.ChannelID, req.Count, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to fetch messages: %w", err)
	}

	cutoff := b.now().Add(-bulkDeleteMaxAge)
	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		if m.Timestamp.Before(cutoff) {
			continue
		}
		ids = append(ids, m.ID)
	}

	switch len(ids) {
	case 0:
		return nil
	case 1:
		// Bulk delete needs at least two messages.
		err = b.api.ChannelMessageDelete(inv.ChannelID, ids[0], discordgo.WithContext(ctx))
	default:
		err = b.api.ChannelMessagesBulkDelete(inv.ChannelID, ids, discordgo.WithContext(ctx))
	}
	if err != nil {
		return fmt.Errorf("failed to delete %d messages: %w", len(ids), err)
	}

	slog.Debug("cleared messages", "guild", inv.GuildID, "channel", inv.ChannelID, "requested", req.Count, "deleted", len(ids))
	return nil
}
