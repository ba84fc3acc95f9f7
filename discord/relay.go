package discord

import (
	"context"
	"errors"
	"fmt"

	"log/slog"

	"github.com/brensch/modlog/notice"
	"github.com/bwmarrin/discordgo"
)

// unknownDeleter is shown when the audit log cannot name who deleted a message.
const unknownDeleter = "Unknown"

var errNoMatchingEntry = errors.New("no matching audit log entry")

func (b *Bot) onMessageDelete(_ *discordgo.Session, e *discordgo.MessageDelete) {
	b.relayMessageDelete(b.ctx, e)
}

func (b *Bot) onMessageUpdate(_ *discordgo.Session, e *discordgo.MessageUpdate) {
	b.relayMessageUpdate(b.ctx, e)
}

func (b *Bot) onGuildMemberAdd(_ *discordgo.Session, e *discordgo.GuildMemberAdd) {
	if e.Member == nil {
		return
	}
	b.relayGuildEvent(b.ctx, e.GuildID, e.User, notice.MemberJoined)
}

func (b *Bot) onGuildMemberRemove(_ *discordgo.Session, e *discordgo.GuildMemberRemove) {
	if e.Member == nil {
		return
	}
	b.relayGuildEvent(b.ctx, e.GuildID, e.User, notice.MemberLeft)
}

func (b *Bot) onGuildBanAdd(_ *discordgo.Session, e *discordgo.GuildBanAdd) {
	b.relayGuildEvent(b.ctx, e.GuildID, e.User, notice.MemberBanned)
}

func (b *Bot) onGuildBanRemove(_ *discordgo.Session, e *discordgo.GuildBanRemove) {
	b.relayGuildEvent(b.ctx, e.GuildID, e.User, notice.MemberUnbanned)
}

func (b *Bot) onVoiceStateUpdate(_ *discordgo.Session, e *discordgo.VoiceStateUpdate) {
	b.relayVoiceState(b.ctx, e)
}

// relayMessageDelete reports a deleted message. Only messages held in the
// state cache can be reported since the event itself carries no author.
func (b *Bot) relayMessageDelete(ctx context.Context, e *discordgo.MessageDelete) {
	if e.Message == nil || e.BeforeDelete == nil || e.BeforeDelete.Author == nil {
		return
	}
	msg := e.BeforeDelete
	guildID := e.GuildID
	if guildID == "" {
		guildID = msg.GuildID
	}
	if guildID == "" || msg.Author.Bot {
		return
	}

	logChannel, ok := b.logChannel(ctx, guildID)
	if !ok {
		return
	}

	content := msg.Content
	if content == "" {
		content = "*No content*"
	}

	embed := notice.Build(notice.Notice{
		Kind:    notice.MessageDeleted,
		Subject: notice.SubjectFromUser(msg.Author),
		Channel: notice.ChannelRef(e.ChannelID),
		Before:  content,
		After:   fmt.Sprintf("Deleted by: **%s**", b.attributeDeletion(ctx, guildID, msg.Author.ID)),
	}, b.now())
	b.sendNotice(ctx, guildID, logChannel, notice.MessageDeleted, embed)
}

// attributeDeletion names whoever deleted a message by authorID, falling back
// to unknownDeleter on any lookup failure.
func (b *Bot) attributeDeletion(ctx context.Context, guildID, authorID string) string {
	name, err := b.lookupDeleter(ctx, guildID, authorID)
	if err != nil {
		slog.Debug("could not attribute deletion", "guild", guildID, "author", authorID, "error", err)
		return unknownDeleter
	}
	return name
}

// lookupDeleter reads the single most recent message-delete audit entry and
// returns its executor when the entry targets authorID.
func (b *Bot) lookupDeleter(ctx context.Context, guildID, authorID string) (string, error) {
	if b.config.AuditLogTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.config.AuditLogTimeout)
		defer cancel()
	}

	auditLog, err := b.api.GuildAuditLog(guildID, "", "", int(discordgo.AuditLogActionMessageDelete), 1, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to read audit log: %w", err)
	}
	if auditLog == nil || len(auditLog.AuditLogEntries) == 0 {
		return "", errNoMatchingEntry
	}

	entry := auditLog.AuditLogEntries[0]
	if entry == nil || entry.TargetID != authorID {
		return "", errNoMatchingEntry
	}

	for _, u := range auditLog.Users {
		if u != nil && u.ID == entry.UserID {
			return u.String(), nil
		}
	}

	executor, err := b.api.User(entry.UserID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to resolve executor %s: %w", entry.UserID, err)
	}
	return executor.String(), nil
}

// relayMessageUpdate reports an edit whose content actually changed.
func (b *Bot) relayMessageUpdate(ctx context.Context, e *discordgo.MessageUpdate) {
	if e.Message == nil || e.BeforeUpdate == nil || e.BeforeUpdate.Author == nil {
		return
	}
	old := e.BeforeUpdate
	guildID := e.GuildID
	if guildID == "" {
		guildID = old.GuildID
	}
	if guildID == "" || old.Author.Bot || old.Content == e.Content {
		return
	}

	logChannel, ok := b.logChannel(ctx, guildID)
	if !ok {
		return
	}

	embed := notice.Build(notice.Notice{
		Kind:    notice.MessageEdited,
		Subject: notice.SubjectFromUser(old.Author),
		Channel: notice.ChannelRef(e.ChannelID),
		Before:  old.Content,
		After:   e.Content,
	}, b.now())
	b.sendNotice(ctx, guildID, logChannel, notice.MessageEdited, embed)
}

// relayGuildEvent reports guild-wide member events: joins, leaves and bans.
func (b *Bot) relayGuildEvent(ctx context.Context, guildID string, user *discordgo.User, kind notice.Kind) {
	if user == nil {
		return
	}
	logChannel, ok := b.logChannel(ctx, guildID)
	if !ok {
		return
	}

	embed := notice.Build(notice.Notice{
		Kind:    kind,
		Subject: notice.SubjectFromUser(user),
		Channel: notice.ServerChannel,
	}, b.now())
	b.sendNotice(ctx, guildID, logChannel, kind, embed)
}

type voiceTransition int

const (
	voiceUnchanged voiceTransition = iota
	voiceJoined
	voiceLeft
	voiceSwitched
)

// classifyVoice compares the channel a member was in with the one they are
// in now. Mute and deafen changes keep the channel and are unchanged.
func classifyVoice(before, after string) voiceTransition {
	switch {
	case before == "" && after != "":
		return voiceJoined
	case before != "" && after == "":
		return voiceLeft
	case before != "" && after != "" && before != after:
		return voiceSwitched
	default:
		return voiceUnchanged
	}
}

func (b *Bot) relayVoiceState(ctx context.Context, e *discordgo.VoiceStateUpdate) {
	if e.VoiceState == nil {
		return
	}
	var before string
	if e.BeforeUpdate != nil {
		before = e.BeforeUpdate.ChannelID
	}
	transition := classifyVoice(before, e.ChannelID)
	if transition == voiceUnchanged {
		return
	}

	logChannel, ok := b.logChannel(ctx, e.GuildID)
	if !ok {
		return
	}

	user, err := b.voiceUser(ctx, e.VoiceState)
	if err != nil {
		slog.Error("failed to resolve voice state user", "guild", e.GuildID, "user", e.UserID, "error", err)
		return
	}
	subject := notice.SubjectFromUser(user)

	switch transition {
	case voiceJoined:
		embed := notice.Build(notice.Notice{Kind: notice.VoiceJoined, Subject: subject, Channel: notice.ChannelRef(e.ChannelID)}, b.now())
		b.sendNotice(ctx, e.GuildID, logChannel, notice.VoiceJoined, embed)
	case voiceLeft:
		embed := notice.Build(notice.Notice{Kind: notice.VoiceLeft, Subject: subject, Channel: notice.ChannelRef(before)}, b.now())
		b.sendNotice(ctx, e.GuildID, logChannel, notice.VoiceLeft, embed)
	case voiceSwitched:
		embed := notice.BuildSwitch(subject, before, e.ChannelID, b.now())
		b.sendNotice(ctx, e.GuildID, logChannel, notice.VoiceSwitched, embed)
	}
}

// voiceUser prefers the member attached to the voice state and fetches the
// user otherwise.
func (b *Bot) voiceUser(ctx context.Context, vs *discordgo.VoiceState) (*discordgo.User, error) {
	if vs.Member != nil && vs.Member.User != nil {
		return vs.Member.User, nil
	}
	return b.api.User(vs.UserID, discordgo.WithContext(ctx))
}
