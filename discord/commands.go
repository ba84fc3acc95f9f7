package discord

import (
	"context"
	"errors"
	"fmt"

	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// Request is a blank interface for command argument definitions.
type Request interface{}

// NoArgs is the request of commands that take no positional arguments.
type NoArgs struct{}

// Invocation is one parsed command message.
type Invocation struct {
	GuildID   string
	ChannelID string
	MessageID string
	Author    *discordgo.User
	// Name is the lowercased command token without the prefix.
	Name     string
	Args     []string
	Mentions []*discordgo.User
	Content  string
}

// Rejection ends an invocation before or instead of its action. Reply is
// sent back to the invoker; an empty Reply ends the invocation silently.
type Rejection struct {
	Reply string
}

// target is the member a moderation command acts on: the first user mentioned
// in the message text. Discord does not keep Mentions in text order.
func (inv *Invocation) target() *discordgo.User {
	for _, id := range userMentionIDs(inv.Content) {
		for _, u := range inv.Mentions {
			if u.ID == id {
				return u
			}
		}
	}
	return inv.Mentions[0]
}

func (r *Rejection) Error() string {
	if r.Reply == "" {
		return "command rejected"
	}
	return "command rejected: " + r.Reply
}

// Precondition is checked before a command's handler runs.
type Precondition func(ctx context.Context, b *Bot, inv *Invocation) error

// CommandI is the common interface for all moderator commands.
type CommandI interface {
	GetName() string
	GetPreconditions() []Precondition
	// Handle decodes the invocation arguments and runs the command.
	Handle(ctx context.Context, b *Bot, inv *Invocation) error
}

// GenericCommand is a generic implementation of CommandI.
type GenericCommand[T Request] struct {
	// Name is the command name, matched case-insensitively.
	Name          string
	Preconditions []Precondition
	// Handler is the function to execute for the command.
	Handler func(ctx context.Context, b *Bot, inv *Invocation, req T) error
}

// GetName returns the command's name.
func (c *GenericCommand[T]) GetName() string {
	return c.Name
}

// GetPreconditions returns the checks that gate the command.
func (c *GenericCommand[T]) GetPreconditions() []Precondition {
	return c.Preconditions
}

// Handle decodes the positional arguments into T and calls the handler.
func (c *GenericCommand[T]) Handle(ctx context.Context, b *Bot, inv *Invocation) error {
	var req T
	if err := decodeArgs(inv.Args, &req); err != nil {
		return err
	}
	return c.Handler(ctx, b, inv, req)
}

// NewCommand creates a CommandI whose arguments decode into T. T's fields
// take positional arguments in order, using the "command" struct tag:
//
//   - the first tag part names the argument
//   - optional: the argument may be absent, leaving the field zero
func NewCommand[T Request](name string, handler func(ctx context.Context, b *Bot, inv *Invocation, req T) error, preconditions ...Precondition) CommandI {
	return &GenericCommand[T]{
		Name:          name,
		Preconditions: preconditions,
		Handler:       handler,
	}
}

// onMessageCreate turns prefixed messages from humans in guilds into command
// invocations.
func (b *Bot) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Message == nil || m.Author == nil || m.Author.Bot {
		return
	}
	if m.GuildID == "" {
		return
	}

	name, args, ok := parseCommand(b.config.Prefix, m.Content)
	if !ok {
		return
	}

	b.dispatch(b.ctx, &Invocation{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
		Author:    m.Author,
		Name:      name,
		Args:      args,
		Mentions:  m.Mentions,
		Content:   m.Content,
	})
}

// dispatch runs the command named by inv. Unknown commands are ignored.
func (b *Bot) dispatch(ctx context.Context, inv *Invocation) {
	cmd, ok := b.commands[inv.Name]
	if !ok {
		slog.Debug("ignoring unknown command", "command", inv.Name, "guild", inv.GuildID)
		return
	}

	err := runCommand(ctx, b, cmd, inv)

	var rejection *Rejection
	switch {
	case err == nil:
		b.metrics.Command(cmd.GetName(), "ok")
	case errors.As(err, &rejection):
		if rejection.Reply == "" {
			b.metrics.Command(cmd.GetName(), "skipped")
			return
		}
		b.metrics.Command(cmd.GetName(), "denied")
		b.reply(inv, rejection.Reply)
	default:
		b.metrics.Command(cmd.GetName(), "error")
		slog.Error("failed to execute command",
			"command", cmd.GetName(),
			"guild", inv.GuildID,
			"author", inv.Author.ID,
			"error", err)
		b.replyError(inv, err)
	}
}

func runCommand(ctx context.Context, b *Bot, cmd CommandI, inv *Invocation) error {
	for _, check := range cmd.GetPreconditions() {
		if err := check(ctx, b, inv); err != nil {
			return err
		}
	}
	return cmd.Handle(ctx, b, inv)
}

// requireAdministrator allows only members with the Administrator permission.
func requireAdministrator(ctx context.Context, b *Bot, inv *Invocation) error {
	perms, err := b.api.UserChannelPermissions(inv.Author.ID, inv.ChannelID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to read permissions for %s: %w", inv.Author.ID, err)
	}
	if perms&discordgo.PermissionAdministrator == 0 {
		return &Rejection{Reply: "❌ Admin only."}
	}
	return nil
}

// requireMention silently stops commands that do not mention a member, so
// target always has a user to return.
func requireMention(_ context.Context, _ *Bot, inv *Invocation) error {
	if len(inv.Mentions) == 0 {
		return &Rejection{}
	}
	return nil
}
