package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/edgard/tickerdigest/internal/bot"
	"github.com/edgard/tickerdigest/internal/bot/handlers"
	"github.com/edgard/tickerdigest/internal/bot/tasks"
	"github.com/edgard/tickerdigest/internal/config"
	"github.com/edgard/tickerdigest/internal/database"
	"github.com/edgard/tickerdigest/internal/digest"
	"github.com/edgard/tickerdigest/internal/ingest"
	"github.com/edgard/tickerdigest/internal/logger"
	"github.com/edgard/tickerdigest/internal/metrics"
	"github.com/edgard/tickerdigest/internal/telegram"
	"github.com/edgard/tickerdigest/internal/ticker"
)

// run initializes every component for mode and blocks until the mode
// completes or ctx is cancelled. Cancellation is a graceful stop.
func run(ctx context.Context, cfg *config.Config, mode bot.Mode) error {
	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON, "mode", mode)

	if err := cfg.RequireTelegram(mode.NeedsDestination()); err != nil {
		log.Error("Invalid configuration", "error", err)
		return err
	}

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return err
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	aggregator := digest.NewAggregator(store,
		digest.WithExtractor(ticker.WithDefaults(cfg.Digest.ExtraStopwords...)),
		digest.WithTopN(cfg.Digest.TopN),
		digest.WithMaxSamples(cfg.Digest.MaxSamples),
		digest.WithPreviewLen(cfg.Digest.PreviewLength),
		digest.WithLogger(log),
	)

	client, err := telegram.NewClient(cfg.Telegram.Token, log,
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithHTTPClient(cfg.Telegram.PollTimeout, &http.Client{Timeout: cfg.Telegram.PollTimeout + 10*time.Second}),
	)
	if err != nil {
		log.Error("Failed to create Telegram client", "error", err)
		return err
	}

	if mode != bot.ModeDigest {
		hDeps := handlers.HandlerDeps{
			Logger: log,
			Config: cfg,
			Store:  store,
			Digest: aggregator,
		}
		if err := telegram.RegisterHandlers(client.Bot(), log, handlers.RegisterAllCommands(hDeps)); err != nil {
			log.Error("Failed to register Telegram handlers", "error", err)
			return err
		}
	}

	taskMap := tasks.RegisterAllTasks(tasks.TaskDeps{
		Logger:      log,
		Store:       store,
		Digest:      aggregator,
		Sender:      client,
		Destination: cfg.Telegram.TargetChat,
		Metrics:     m,
	})
	runDigest := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, cfg.Digest.Timeout)
		defer cancel()
		return taskMap[tasks.TaskDigest](ctx)
	}

	var sched *bot.Scheduler
	if mode == bot.ModeSchedule {
		sched, err = bot.NewScheduler(log, bot.JobSpecs(cfg), taskMap, cfg.Digest.Timeout, m)
		if err != nil {
			log.Error("Failed to create scheduler", "error", err)
			return err
		}
	}

	app := bot.NewBot(log, client, ingest.New(store, log, m, cfg.Database.WriteTimeout), sched, runDigest)
	if cfg.Metrics.Listen != "" {
		app.EnableMetrics(cfg.Metrics.Listen, reg)
	}

	log.Info("Starting bot...")
	runErr := app.Run(ctx, mode)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		return runErr
	}

	log.Info("Bot stopped gracefully.")
	return nil
}
