package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/brensch/modlog/config"
	"github.com/brensch/modlog/db"
	"github.com/brensch/modlog/discord"
	"github.com/brensch/modlog/log"
	"github.com/brensch/modlog/metrics"
	"github.com/brensch/modlog/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg := config.Get()

	logger, err := log.New(cfg.Log.Format, cfg.Log.Level, cfg.Log.TimeZone)
	if err != nil {
		slog.Error("failed to configure logging", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	slog.Info("moderation bot starting", "prefix", cfg.Commands.Prefix, "store", cfg.Store.Backend)

	// The database only backs the duckdb registry.
	var dbClient *db.Client
	if cfg.Store.Backend == "duckdb" {
		dbClient, err = db.NewClient(cfg.Database.Path)
		if err != nil {
			slog.Error("failed to create database client", "error", err)
			os.Exit(1)
		}
		if err := dbClient.Start(ctx); err != nil {
			slog.Error("failed to start database client", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := dbClient.Stop(); err != nil {
				slog.Error("failed to stop database client", "error", err)
			}
		}()
	}

	store, err := registry.Open(ctx, cfg.Store.Backend, dbClient)
	if err != nil {
		slog.Error("failed to open log channel registry", "error", err)
		os.Exit(1)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promRegistry)

	bot, err := discord.NewBot(ctx, discord.BotConfig{
		BotToken:         cfg.Discord.BotToken,
		Prefix:           cfg.Commands.Prefix,
		MuteDuration:     cfg.Commands.MuteDuration,
		AuditLogTimeout:  cfg.Relay.AuditLogTimeout,
		MessageCache:     cfg.Discord.MessageCache,
		ChannelCheckCron: cfg.Schedules.ChannelCheck,
	}, store, m)
	if err != nil {
		slog.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	slog.Info("bot is now running")

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Address != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, cfg.Metrics.Address, promRegistry)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("metrics server stopped", "error", err)
	}

	if err := bot.Close(); err != nil {
		slog.Error("error during shutdown", "error", err)
	}
}
