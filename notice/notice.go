// Package notice builds the embeds posted to a guild's log channel.
package notice

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Kind identifies an event type. Each kind has a fixed title and colour.
type Kind string

const (
	MessageDeleted Kind = "message_deleted"
	MessageEdited  Kind = "message_edited"
	MemberJoined   Kind = "member_joined"
	MemberLeft     Kind = "member_left"
	MemberBanned   Kind = "member_banned"
	MemberUnbanned Kind = "member_unbanned"
	VoiceJoined    Kind = "voice_joined"
	VoiceLeft      Kind = "voice_left"
	VoiceSwitched  Kind = "voice_switched"
)

// ServerChannel stands in for a channel reference on guild-wide events.
const ServerChannel = "Server"

// fieldLimit is Discord's maximum length of an embed field value.
const fieldLimit = 1024

type style struct {
	title string
	color int
}

var styles = map[Kind]style{
	MessageDeleted: {"🗑️ Message Deleted", 0xe74c3c},
	MessageEdited:  {"✏️ Message Edited", 0x3498db},
	MemberJoined:   {"➕ Member Joined", 0x2ecc71},
	MemberLeft:     {"➖ Member Left", 0xe74c3c},
	MemberBanned:   {"🔨 Member Banned", 0xc0392b},
	MemberUnbanned: {"♻️ Member Unbanned", 0x27ae60},
	VoiceJoined:    {"🎧 VC Joined", 0x2ecc71},
	VoiceLeft:      {"🎧 VC Left", 0xe74c3c},
	VoiceSwitched:  {"🎧 VC Switched", 0xf1c40f},
}

// Title returns the fixed title for k.
func (k Kind) Title() string { return styles[k].title }

// Color returns the fixed embed colour for k.
func (k Kind) Color() int { return styles[k].color }

// Subject is the user a notice is about.
type Subject struct {
	ID        string
	Name      string
	AvatarURL string
}

// SubjectFromUser takes the display tag and avatar (or default avatar) of u.
func SubjectFromUser(u *discordgo.User) Subject {
	return Subject{
		ID:        u.ID,
		Name:      u.String(),
		AvatarURL: u.AvatarURL(""),
	}
}

// Notice is everything needed to render one log entry.
type Notice struct {
	Kind    Kind
	Subject Subject
	// Channel is a rendered channel mention or ServerChannel.
	Channel string
	Before  string
	After   string
}

// ChannelRef renders a channel mention.
func ChannelRef(channelID string) string {
	return "<#" + channelID + ">"
}

// Build renders n as an embed stamped with at.
func Build(n Notice, at time.Time) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: n.Kind.Title(),
		Color: n.Kind.Color(),
		Author: &discordgo.MessageEmbedAuthor{
			Name:    n.Subject.Name,
			IconURL: n.Subject.AvatarURL,
		},
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Channel", Value: n.Channel, Inline: true},
			{Name: "User ID", Value: n.Subject.ID, Inline: true},
		},
		Timestamp: at.Format(time.RFC3339),
	}

	if n.Before != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Before", Value: truncate(n.Before)})
	}
	if n.After != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "After", Value: truncate(n.After)})
	}

	return embed
}

// BuildSwitch renders a voice channel move from one channel to another.
func BuildSwitch(subject Subject, fromChannelID, toChannelID string, at time.Time) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: VoiceSwitched.Title(),
		Color: VoiceSwitched.Color(),
		Author: &discordgo.MessageEmbedAuthor{
			Name:    subject.Name,
			IconURL: subject.AvatarURL,
		},
		Description: fmt.Sprintf("**From:** %s\n**To:** %s", ChannelRef(fromChannelID), ChannelRef(toChannelID)),
		Timestamp:   at.Format(time.RFC3339),
	}
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= fieldLimit {
		return s
	}
	return string(r[:fieldLimit-1]) + "…"
}
