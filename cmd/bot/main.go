package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"AlphaPulse/internal/api"
	"AlphaPulse/internal/app"
	"AlphaPulse/internal/config"
	"AlphaPulse/internal/logger"
	"AlphaPulse/internal/notifier"
	"AlphaPulse/internal/scheduler"

	"github.com/rs/zerolog"
)

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatal(err, "load config")
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		fatal(err, "init logger")
	}
	log.Info().Str("config", cfgPath).Msg("AlphaPulse starting")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}
	if err := cfg.ValidateTelegram(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}

	application, rec, err := app.Build(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build application")
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Error().Err(err).Msg("close application")
		}
	}()

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy,
		log.With().Str("component", "telegram").Logger())

	var sender scheduler.Sender
	if cfg.Telegram.ChatID != "" {
		sender = tn
	}
	sched := scheduler.NewScheduler(ctx, application, sender, log.With().Str("component", "scheduler").Logger())
	if cfg.Schedule.DigestEnabled {
		if err := sched.RegisterDigest(cfg.Schedule.DigestCron); err != nil {
			log.Fatal().Err(err).Msg("register cron tasks")
		}
	}
	sched.Start()
	defer sched.Stop()

	go tn.StartPolling(ctx, sched.HandleCommand, cfg.Telegram.PollTimeout)
	log.Info().Msg("telegram polling started")

	var srv *api.Server
	if cfg.Server.Enabled {
		srv = api.NewServer(
			api.NewHandler(application, log.With().Str("component", "api").Logger()),
			log.With().Str("component", "http").Logger(),
			api.WithPort(cfg.Server.Port),
			api.WithMetrics(rec.Handler()),
		)
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("start http server")
		}
	}

	// Optional: push the digest immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Info().Msg("RUN_ON_START enabled, sending digest now")
		go sched.RunDigestNow()
	}

	log.Info().Msg("AlphaPulse is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutdown signal received, stopping...")
	cancel()
	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := srv.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("stop http server")
		}
	}
	log.Info().Msg("AlphaPulse stopped")
}

func fatal(err error, msg string) {
	l := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	l.Fatal().Err(err).Msg(msg)
}
