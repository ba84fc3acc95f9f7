package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/robfig/cron/v3"
)

// BotScheduleI defines the interface for scheduled tasks in the bot
type BotScheduleI interface {
	// GetName returns the name of the schedule
	GetName() string
	// GetCronExpression returns the cron expression for when this schedule should run
	GetCronExpression() string
	// Execute runs the scheduled task
	Execute(ctx context.Context) error
}

// GenericBotSchedule is a generic implementation of BotScheduleI
type GenericBotSchedule struct {
	Name           string
	CronExpression string
	Handler        func(ctx context.Context) error
}

func (bs *GenericBotSchedule) GetName() string {
	return bs.Name
}

func (bs *GenericBotSchedule) GetCronExpression() string {
	return bs.CronExpression
}

func (bs *GenericBotSchedule) Execute(ctx context.Context) error {
	return bs.Handler(ctx)
}

// NewBotSchedule creates a new scheduled task with the given name, cron expression, and handler
func NewBotSchedule(name string, cronExpr string, handler func(ctx context.Context) error) BotScheduleI {
	return &GenericBotSchedule{
		Name:           name,
		CronExpression: cronExpr,
		Handler:        handler,
	}
}

// ScheduleChannelCheck returns a task that warns about registered log
// channels that can no longer be fetched. It never changes registrations.
func (b *Bot) ScheduleChannelCheck(cronExpression string) BotScheduleI {
	return NewBotSchedule("log_channel_check", cronExpression, b.checkLogChannels)
}

func (b *Bot) checkLogChannels(ctx context.Context) error {
	registrations, err := b.store.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to list log channels: %w", err)
	}

	stale := 0
	for guildID, channelID := range registrations {
		channel, err := b.api.Channel(channelID, discordgo.WithContext(ctx))
		if err != nil {
			stale++
			slog.Warn("registered log channel is unreachable",
				"guild", guildID,
				"channel", channelID,
				"error", err)
			continue
		}
		if channel.GuildID != "" && channel.GuildID != guildID {
			stale++
			slog.Warn("registered log channel belongs to another guild",
				"guild", guildID,
				"channel", channelID,
				"channel_guild", channel.GuildID)
		}
	}

	slog.Info("checked log channels", "registered", len(registrations), "stale", stale)
	return nil
}

// scheduleManager handles scheduling and executing tasks
type scheduleManager struct {
	bot        *Bot
	cron       *cron.Cron
	schedules  []BotScheduleI
	ctx        context.Context
	cancelFunc context.CancelFunc
}

func newScheduleManager(bot *Bot, schedules []BotScheduleI) *scheduleManager {
	ctx, cancel := context.WithCancel(bot.ctx)
	return &scheduleManager{
		bot:        bot,
		cron:       cron.New(cron.WithSeconds()),
		schedules:  schedules,
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// start registers every schedule with cron and starts it.
func (sm *scheduleManager) start() error {
	for _, schedule := range sm.schedules {
		sched := schedule
		_, err := sm.cron.AddFunc(sched.GetCronExpression(), func() {
			sm.executeSchedule(sched)
		})
		if err != nil {
			return fmt.Errorf("failed to add schedule %s: %w", sched.GetName(), err)
		}
		slog.Info("registered schedule", "name", sched.GetName(), "cron", sched.GetCronExpression())
	}

	sm.cron.Start()
	slog.Info("schedule manager started", "schedules", len(sm.schedules))
	return nil
}

func (sm *scheduleManager) executeSchedule(schedule BotScheduleI) {
	slog.Debug("executing schedule", "name", schedule.GetName(), "cron", schedule.GetCronExpression())

	if err := schedule.Execute(sm.ctx); err != nil {
		slog.Error("failed to execute schedule",
			"name", schedule.GetName(),
			"error", err)
	}
}

// stop cleanly shuts down the scheduler and waits for running tasks.
func (sm *scheduleManager) stop() {
	sm.cancelFunc()
	<-sm.cron.Stop().Done()
	slog.Info("schedule manager stopped")
}
