package discord

import (
	"context"
	"testing"
	"time"

	"github.com/brensch/modlog/metrics"
	"github.com/brensch/modlog/registry"
	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
)

const (
	testGuildID   = "guild-1"
	testChannelID = "chan-1"
	testLogID     = "log-1"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// mockAPI implements API for testing. Request options are not recorded.
type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	args := m.Called(channelID, embed)
	return message(args.Get(0)), args.Error(1)
}

func (m *mockAPI) ChannelMessageSendReply(channelID string, content string, reference *discordgo.MessageReference, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	args := m.Called(channelID, content, reference)
	return message(args.Get(0)), args.Error(1)
}

func (m *mockAPI) ChannelMessageSendEmbedReply(channelID string, embed *discordgo.MessageEmbed, reference *discordgo.MessageReference, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	args := m.Called(channelID, embed, reference)
	return message(args.Get(0)), args.Error(1)
}

func (m *mockAPI) ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, _ ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	args := m.Called(channelID, limit, beforeID, afterID, aroundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*discordgo.Message), args.Error(1)
}

func (m *mockAPI) ChannelMessageDelete(channelID, messageID string, _ ...discordgo.RequestOption) error {
	return m.Called(channelID, messageID).Error(0)
}

func (m *mockAPI) ChannelMessagesBulkDelete(channelID string, messages []string, _ ...discordgo.RequestOption) error {
	return m.Called(channelID, messages).Error(0)
}

func (m *mockAPI) Channel(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	args := m.Called(channelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*discordgo.Channel), args.Error(1)
}

func (m *mockAPI) User(userID string, _ ...discordgo.RequestOption) (*discordgo.User, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*discordgo.User), args.Error(1)
}

func (m *mockAPI) UserChannelPermissions(userID, channelID string, _ ...discordgo.RequestOption) (int64, error) {
	args := m.Called(userID, channelID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockAPI) GuildMemberDelete(guildID, userID string, _ ...discordgo.RequestOption) error {
	return m.Called(guildID, userID).Error(0)
}

func (m *mockAPI) GuildBanCreate(guildID, userID string, days int, _ ...discordgo.RequestOption) error {
	return m.Called(guildID, userID, days).Error(0)
}

func (m *mockAPI) GuildBanDelete(guildID, userID string, _ ...discordgo.RequestOption) error {
	return m.Called(guildID, userID).Error(0)
}

func (m *mockAPI) GuildMemberTimeout(guildID string, userID string, until *time.Time, _ ...discordgo.RequestOption) error {
	return m.Called(guildID, userID, until).Error(0)
}

func (m *mockAPI) GuildAuditLog(guildID, userID, beforeID string, actionType, limit int, _ ...discordgo.RequestOption) (*discordgo.GuildAuditLog, error) {
	args := m.Called(guildID, userID, beforeID, actionType, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*discordgo.GuildAuditLog), args.Error(1)
}

func message(v interface{}) *discordgo.Message {
	if v == nil {
		return nil
	}
	return v.(*discordgo.Message)
}

// newTestBot returns a bot over a mock API and an empty memory registry.
func newTestBot(t *testing.T) (*Bot, *mockAPI, *registry.Memory) {
	t.Helper()
	api := &mockAPI{}
	store := registry.NewMemory()
	b := newBot(context.Background(), api, BotConfig{
		Prefix:          "?",
		MuteDuration:    10 * time.Minute,
		AuditLogTimeout: time.Second,
	}, store, metrics.New(prometheus.NewRegistry()))
	b.now = func() time.Time { return testNow }
	t.Cleanup(func() { api.AssertExpectations(t) })
	return b, api, store
}

// captureEmbed expects one notice to channelID and returns a pointer that
// holds the embed once sent.
func captureEmbed(api *mockAPI, channelID string) **discordgo.MessageEmbed {
	var embed *discordgo.MessageEmbed
	api.On("ChannelMessageSendEmbed", channelID, mock.Anything).
		Run(func(args mock.Arguments) {
			embed = args.Get(1).(*discordgo.MessageEmbed)
		}).
		Return(&discordgo.Message{}, nil).
		Once()
	return &embed
}

func fieldValue(embed *discordgo.MessageEmbed, name string) (string, bool) {
	for _, f := range embed.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

func user(id, name string) *discordgo.User {
	return &discordgo.User{ID: id, Username: name, Discriminator: "0"}
}
