package discord

import (
	"context"
	"errors"
	"testing"

	"github.com/brensch/modlog/notice"
	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	author   = user("author-1", "alice")
	executor = user("exec-1", "moderator")
)

func register(t *testing.T, b *Bot, channelID string) {
	t.Helper()
	require.NoError(t, b.store.Set(context.Background(), testGuildID, channelID))
}

func deleted(content string, by *discordgo.User) *discordgo.MessageDelete {
	return &discordgo.MessageDelete{
		Message: &discordgo.Message{ID: "msg-9", ChannelID: testChannelID, GuildID: testGuildID},
		BeforeDelete: &discordgo.Message{
			ID:        "msg-9",
			ChannelID: testChannelID,
			GuildID:   testGuildID,
			Content:   content,
			Author:    by,
		},
	}
}

func edited(before, after string, by *discordgo.User) *discordgo.MessageUpdate {
	return &discordgo.MessageUpdate{
		Message: &discordgo.Message{ID: "msg-9", ChannelID: testChannelID, GuildID: testGuildID, Content: after, Author: by},
		BeforeUpdate: &discordgo.Message{
			ID:        "msg-9",
			ChannelID: testChannelID,
			GuildID:   testGuildID,
			Content:   before,
			Author:    by,
		},
	}
}

func voice(before, after string) *discordgo.VoiceStateUpdate {
	e := &discordgo.VoiceStateUpdate{
		VoiceState: &discordgo.VoiceState{
			GuildID:   testGuildID,
			ChannelID: after,
			UserID:    author.ID,
			Member:    &discordgo.Member{User: author},
		},
	}
	if before != "" {
		e.BeforeUpdate = &discordgo.VoiceState{GuildID: testGuildID, ChannelID: before, UserID: author.ID}
	}
	return e
}

func TestNoNoticeWithoutLogChannel(t *testing.T) {
	b, api, _ := newTestBot(t)

	b.onMessageDelete(nil, deleted("hi", author))
	b.onMessageUpdate(nil, edited("hi", "hello", author))
	b.onGuildMemberAdd(nil, &discordgo.GuildMemberAdd{Member: &discordgo.Member{GuildID: testGuildID, User: author}})
	b.onGuildMemberRemove(nil, &discordgo.GuildMemberRemove{Member: &discordgo.Member{GuildID: testGuildID, User: author}})
	b.onGuildBanAdd(nil, &discordgo.GuildBanAdd{GuildID: testGuildID, User: author})
	b.onGuildBanRemove(nil, &discordgo.GuildBanRemove{GuildID: testGuildID, User: author})
	b.onVoiceStateUpdate(nil, voice("", "vc-1"))
	b.onVoiceStateUpdate(nil, voice("vc-1", ""))
	b.onVoiceStateUpdate(nil, voice("vc-1", "vc-2"))

	api.AssertNotCalled(t, "ChannelMessageSendEmbed", mock.Anything, mock.Anything)
	api.AssertNotCalled(t, "GuildAuditLog", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGuildEventNotices(t *testing.T) {
	tests := []struct {
		name string
		fire func(b *Bot)
		kind notice.Kind
	}{
		{
			name: "member joined",
			fire: func(b *Bot) {
				b.onGuildMemberAdd(nil, &discordgo.GuildMemberAdd{Member: &discordgo.Member{GuildID: testGuildID, User: author}})
			},
			kind: notice.MemberJoined,
		},
		{
			name: "member left",
			fire: func(b *Bot) {
				b.onGuildMemberRemove(nil, &discordgo.GuildMemberRemove{Member: &discordgo.Member{GuildID: testGuildID, User: author}})
			},
			kind: notice.MemberLeft,
		},
		{
			name: "member banned",
			fire: func(b *Bot) {
				b.onGuildBanAdd(nil, &discordgo.GuildBanAdd{GuildID: testGuildID, User: author})
			},
			kind: notice.MemberBanned,
		},
		{
			name: "member unbanned",
			fire: func(b *Bot) {
				b.onGuildBanRemove(nil, &discordgo.GuildBanRemove{GuildID: testGuildID, User: author})
			},
			kind: notice.MemberUnbanned,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, api, _ := newTestBot(t)
			register(t, b, testLogID)
			embed := captureEmbed(api, testLogID)

			tt.fire(b)

			require.NotNil(t, *embed)
			assert.Equal(t, tt.kind.Title(), (*embed).Title)
			assert.Equal(t, tt.kind.Color(), (*embed).Color)
			assert.Equal(t, "alice", (*embed).Author.Name)
			channel, _ := fieldValue(*embed, "Channel")
			assert.Equal(t, notice.ServerChannel, channel)
			id, _ := fieldValue(*embed, "User ID")
			assert.Equal(t, author.ID, id)
			assert.Equal(t, 1.0, testutil.ToFloat64(b.metrics.NoticesSent.WithLabelValues(string(tt.kind))))
		})
	}
}

func TestReregisteringMovesNotices(t *testing.T) {
	b, api, _ := newTestBot(t)
	api.On("UserChannelPermissions", moderator.ID, testChannelID).Return(adminPerms, nil)
	api.On("Channel", "555").Return(&discordgo.Channel{ID: "555", GuildID: testGuildID}, nil)
	api.On("Channel", "777").Return(&discordgo.Channel{ID: "777", GuildID: testGuildID}, nil)
	expectReply(api, "✅ Logs channel set to <#555>")
	expectReply(api, "✅ Logs channel set to <#777>")

	join := &discordgo.GuildMemberAdd{Member: &discordgo.Member{GuildID: testGuildID, User: author}}

	b.onMessageCreate(nil, command("?setlogs <#555>", moderator))
	first := captureEmbed(api, "555")
	b.onGuildMemberAdd(nil, join)
	require.NotNil(t, *first)

	b.onMessageCreate(nil, command("?setlogs <#777>", moderator))
	second := captureEmbed(api, "777")
	b.onGuildMemberAdd(nil, join)
	require.NotNil(t, *second)

	api.AssertNumberOfCalls(t, "ChannelMessageSendEmbed", 2)
}

func TestMessageEditNotice(t *testing.T) {
	t.Run("changed content", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		register(t, b, testLogID)
		embed := captureEmbed(api, testLogID)

		b.onMessageUpdate(nil, edited("teh", "the", author))

		require.NotNil(t, *embed)
		assert.Equal(t, notice.MessageEdited.Title(), (*embed).Title)
		before, _ := fieldValue(*embed, "Before")
		after, _ := fieldValue(*embed, "After")
		assert.Equal(t, "teh", before)
		assert.Equal(t, "the", after)
		channel, _ := fieldValue(*embed, "Channel")
		assert.Equal(t, "<#"+testChannelID+">", channel)
	})

	t.Run("unchanged content", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		register(t, b, testLogID)

		// Embed unfurls resend the same content.
		b.onMessageUpdate(nil, edited("see https://example.com", "see https://example.com", author))

		api.AssertNotCalled(t, "ChannelMessageSendEmbed", mock.Anything, mock.Anything)
	})

	t.Run("uncached message", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		register(t, b, testLogID)

		e := edited("a", "b", author)
		e.BeforeUpdate = nil
		b.onMessageUpdate(nil, e)

		api.AssertNotCalled(t, "ChannelMessageSendEmbed", mock.Anything, mock.Anything)
	})

	t.Run("bot author", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		register(t, b, testLogID)

		b.onMessageUpdate(nil, edited("a", "b", &discordgo.User{ID: "bot-1", Bot: true}))

		api.AssertNotCalled(t, "ChannelMessageSendEmbed", mock.Anything, mock.Anything)
	})
}

func TestMessageDeleteIgnoresBots(t *testing.T) {
	b, api, _ := newTestBot(t)
	register(t, b, testLogID)

	b.onMessageDelete(nil, deleted("beep", &discordgo.User{ID: "bot-1", Username: "helper", Bot: true}))

	api.AssertNotCalled(t, "ChannelMessageSendEmbed", mock.Anything, mock.Anything)
	api.AssertNotCalled(t, "GuildAuditLog", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMessageDeleteAttribution(t *testing.T) {
	deleteAction := int(discordgo.AuditLogActionMessageDelete)

	tests := []struct {
		name   string
		setup  func(api *mockAPI)
		wanted string
	}{
		{
			name: "entry targets the author",
			setup: func(api *mockAPI) {
				api.On("GuildAuditLog", testGuildID, "", "", deleteAction, 1).Return(&discordgo.GuildAuditLog{
					Users:           []*discordgo.User{executor},
					AuditLogEntries: []*discordgo.AuditLogEntry{{TargetID: author.ID, UserID: executor.ID}},
				}, nil)
			},
			wanted: "Deleted by: **moderator**",
		},
		{
			name: "executor fetched when not included",
			setup: func(api *mockAPI) {
				api.On("GuildAuditLog", testGuildID, "", "", deleteAction, 1).Return(&discordgo.GuildAuditLog{
					AuditLogEntries: []*discordgo.AuditLogEntry{{TargetID: author.ID, UserID: executor.ID}},
				}, nil)
				api.On("User", executor.ID).Return(executor, nil)
			},
			wanted: "Deleted by: **moderator**",
		},
		{
			name: "entry targets someone else",
			setup: func(api *mockAPI) {
				api.On("GuildAuditLog", testGuildID, "", "", deleteAction, 1).Return(&discordgo.GuildAuditLog{
					Users:           []*discordgo.User{executor},
					AuditLogEntries: []*discordgo.AuditLogEntry{{TargetID: "someone-else", UserID: executor.ID}},
				}, nil)
			},
			wanted: "Deleted by: **Unknown**",
		},
		{
			name: "no entries",
			setup: func(api *mockAPI) {
				api.On("GuildAuditLog", testGuildID, "", "", deleteAction, 1).Return(&discordgo.GuildAuditLog{}, nil)
			},
			wanted: "Deleted by: **Unknown**",
		},
		{
			name: "audit log unavailable",
			setup: func(api *mockAPI) {
				api.On("GuildAuditLog", testGuildID, "", "", deleteAction, 1).Return(nil, errors.New("HTTP 403 Forbidden"))
			},
			wanted: "Deleted by: **Unknown**",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, api, _ := newTestBot(t)
			register(t, b, testLogID)
			tt.setup(api)
			embed := captureEmbed(api, testLogID)

			b.onMessageDelete(nil, deleted("rude words", author))

			require.NotNil(t, *embed)
			assert.Equal(t, notice.MessageDeleted.Title(), (*embed).Title)
			before, _ := fieldValue(*embed, "Before")
			assert.Equal(t, "rude words", before)
			after, _ := fieldValue(*embed, "After")
			assert.Equal(t, tt.wanted, after)
		})
	}
}

func TestMessageDeleteWithoutContent(t *testing.T) {
	b, api, _ := newTestBot(t)
	register(t, b, testLogID)
	api.On("GuildAuditLog", testGuildID, "", "", int(discordgo.AuditLogActionMessageDelete), 1).Return(&discordgo.GuildAuditLog{}, nil)
	embed := captureEmbed(api, testLogID)

	b.onMessageDelete(nil, deleted("", author))

	require.NotNil(t, *embed)
	before, _ := fieldValue(*embed, "Before")
	assert.Equal(t, "*No content*", before)
}

func TestNoticeSendFailureIsCounted(t *testing.T) {
	b, api, _ := newTestBot(t)
	register(t, b, testLogID)
	api.On("ChannelMessageSendEmbed", testLogID, mock.Anything).Return(nil, errors.New("HTTP 403 Forbidden"))

	b.onGuildBanAdd(nil, &discordgo.GuildBanAdd{GuildID: testGuildID, User: author})

	assert.Equal(t, 1.0, testutil.ToFloat64(b.metrics.NoticeFailures.WithLabelValues(string(notice.MemberBanned))))
}

func TestClassifyVoice(t *testing.T) {
	tests := []struct {
		before, after string
		want          voiceTransition
	}{
		{"", "", voiceUnchanged},
		{"", "vc-1", voiceJoined},
		{"vc-1", "", voiceLeft},
		{"vc-1", "vc-2", voiceSwitched},
		{"vc-1", "vc-1", voiceUnchanged},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyVoice(tt.before, tt.after), "before=%q after=%q", tt.before, tt.after)
	}
}

func TestVoiceNotices(t *testing.T) {
	t.Run("joined", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		register(t, b, testLogID)
		embed := captureEmbed(api, testLogID)

		b.onVoiceStateUpdate(nil, voice("", "vc-1"))

		require.NotNil(t, *embed)
		assert.Equal(t, notice.VoiceJoined.Title(), (*embed).Title)
		channel, _ := fieldValue(*embed, "Channel")
		assert.Equal(t, "<#vc-1>", channel)
	})

	t.Run("left", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		register(t, b, testLogID)
		embed := captureEmbed(api, testLogID)

		b.onVoiceStateUpdate(nil, voice("vc-1", ""))

		require.NotNil(t, *embed)
		assert.Equal(t, notice.VoiceLeft.Title(), (*embed).Title)
		channel, _ := fieldValue(*embed, "Channel")
		assert.Equal(t, "<#vc-1>", channel)
	})

	t.Run("switched", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		register(t, b, testLogID)
		embed := captureEmbed(api, testLogID)

		b.onVoiceStateUpdate(nil, voice("vc-1", "vc-2"))

		require.NotNil(t, *embed)
		assert.Equal(t, notice.VoiceSwitched.Title(), (*embed).Title)
		assert.Equal(t, "**From:** <#vc-1>\n**To:** <#vc-2>", (*embed).Description)
	})

	t.Run("mute toggled", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		register(t, b, testLogID)

		e := voice("vc-1", "vc-1")
		e.SelfMute = true
		b.onVoiceStateUpdate(nil, e)

		api.AssertNotCalled(t, "ChannelMessageSendEmbed", mock.Anything, mock.Anything)
	})

	t.Run("member missing from state", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		register(t, b, testLogID)
		api.On("User", author.ID).Return(author, nil)
		embed := captureEmbed(api, testLogID)

		e := voice("", "vc-1")
		e.Member = nil
		b.onVoiceStateUpdate(nil, e)

		require.NotNil(t, *embed)
		assert.Equal(t, "alice", (*embed).Author.Name)
	})
}
