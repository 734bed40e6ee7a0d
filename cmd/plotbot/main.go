package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbot "github.com/go-telegram/bot"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lojasmm/plotbot/internal/bot"
	"github.com/lojasmm/plotbot/internal/config"
	"github.com/lojasmm/plotbot/internal/flow"
	"github.com/lojasmm/plotbot/internal/plotapi"
	"github.com/lojasmm/plotbot/internal/session"
	"github.com/lojasmm/plotbot/internal/store"
	"github.com/lojasmm/plotbot/internal/telegram"
	"github.com/lojasmm/plotbot/internal/web"
	"github.com/lojasmm/plotbot/internal/whatsapp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("store")
	}
	defer db.Close()

	api := plotapi.NewClient(cfg.APIBaseURL, cfg.APITimeout)
	locks := session.NewLocker()
	conv := bot.NewHandler(flow.NewController(api), db, locks)

	// Periodic cleanup of idle per-chat locks
	go locks.SweepEvery(ctx, 30*time.Minute, time.Hour)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(web.RequestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", web.Health(api))
	web.NewHandler(conv).Routes(r)

	if cfg.WhatsAppEnabled() {
		wa := whatsapp.NewClient(cfg.WAPhoneNumberID, cfg.WAAccessToken)
		webhook := whatsapp.NewWebhookHandler(cfg.WAVerifyToken, whatsapp.NewChannel(wa, conv).HandleMessage)
		r.Get("/webhook", webhook.HandleVerify)
		r.Post("/webhook", webhook.HandleIncoming)
		log.Info().Str("verify_token", cfg.WAVerifyToken).Msg("plotbot: whatsapp webhook enabled")
	}

	if cfg.TelegramEnabled() {
		b, err := tgbot.New(cfg.TelegramBotToken, tgbot.WithDefaultHandler(telegram.NewChannel(conv).Handle))
		if err != nil {
			log.Fatal().Err(err).Msg("telegram: creating bot")
		}
		go b.Start(ctx)
		log.Info().Msg("plotbot: telegram bot polling")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("api", cfg.APIBaseURL).Msg("plotbot: listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("plotbot: shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	log.Info().Msg("plotbot: stopped")
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("plotbot: unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.StoreBackend == config.StoreFirebase {
		return store.NewFirebaseStore(ctx, cfg.FirebaseKeyPath, cfg.FirebaseDatabaseURL)
	}
	return store.NewBoltStore(filepath.Join(cfg.DataDir, "plotbot.db"))
}
