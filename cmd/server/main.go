// Package main runs the solar support API.
//
// Startup order:
//  1. Environment (.env) and configuration
//  2. Logging and tracing
//  3. SQLite schema and FAQ seed set
//  4. Notification channels and the optional chat provider
//  5. Live chat hub, cluster fanout and presence
//  6. HTTP server, stopped gracefully on SIGINT/SIGTERM
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/solar-support-backend/internal/cluster"
	"github.com/tbourn/solar-support-backend/internal/config"
	httpapi "github.com/tbourn/solar-support-backend/internal/http"
	"github.com/tbourn/solar-support-backend/internal/livechat"
	"github.com/tbourn/solar-support-backend/internal/llm"
	"github.com/tbourn/solar-support-backend/internal/notify"
	"github.com/tbourn/solar-support-backend/internal/observability"
	"github.com/tbourn/solar-support-backend/internal/repo"
	"github.com/tbourn/solar-support-backend/internal/search"
	"github.com/tbourn/solar-support-backend/internal/services"
	"github.com/tbourn/solar-support-backend/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	shutdownTimeout = 10 * time.Second
	purgeInterval   = time.Hour
	presenceTTL     = 2 * time.Minute
)

func main() {
	if err := config.LoadDotenv(); err != nil {
		log.Fatal().Err(err).Msg("read .env")
	}

	cfg := config.MustLoad()
	sysutil.SetupLogging(os.Stderr, cfg.LogLevel, cfg.OTEL.ServiceName, cfg.LogPretty)
	gin.SetMode(cfg.GinMode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appVersion := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, appVersion)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	rt := httpapi.Runtime{FAQSeed: faqSeed(cfg.FAQPath)}

	outbound := &http.Client{Timeout: cfg.Notify.Timeout}
	rt.Notifier = notify.NewDispatcher(notify.GormStore{DB: db},
		notify.WithEmail(notify.NewEmailChannel(cfg.Notify.Email)),
		notify.WithWhatsApp(notify.NewWhatsAppChannel(cfg.Notify.WhatsApp, outbound)),
		notify.WithTimeout(cfg.Notify.Timeout),
		notify.WithLogger(log.With().Str("component", "notify").Logger()),
	)

	if cfg.Chatbot.APIKey != "" {
		client := llm.NewClient(llm.Config{
			BaseURL: cfg.Chatbot.ProviderURL,
			APIKey:  cfg.Chatbot.APIKey,
			Model:   cfg.Chatbot.Model,
			Timeout: cfg.Chatbot.Timeout,
		}, &http.Client{Timeout: cfg.Chatbot.Timeout})
		rt.Provider = llm.NewBreaker(client, llm.BreakerSettings{})
		log.Info().Str("model", cfg.Chatbot.Model).Msg("chat provider enabled")
	}

	hub := livechat.NewHub()
	fanout, presence := clusterFor(ctx, cfg, hub)
	rt.Fanout = fanout
	rt.Presence = presence

	dispatcher := livechat.NewDispatcher(hub, services.NewLiveChatService(db, nil),
		livechat.WithFanout(fanout),
		livechat.WithPresence(presence),
		livechat.WithLogger(log.With().Str("component", "livechat").Logger()),
	)
	go dispatcher.KeepPresence(ctx, presenceTTL/4)
	rt.LiveChat = livechat.NewServer(dispatcher, livechat.ServerConfig{
		SendBuffer:     cfg.LiveChat.SendBuffer,
		MaxMessageSize: cfg.LiveChat.MaxMessageSize,
		AllowedOrigins: cfg.LiveChat.AllowedOrigins,
	})

	r := gin.New()
	httpapi.RegisterRoutes(r, db, rt, cfg)

	go purgeIdempotency(ctx, db)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", appVersion).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server failed")
		}
	}

	cancel()
	sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer scancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("stopped")
}

// faqSeed returns the built-in FAQ entries plus those of the markdown file
// at path, if any.
func faqSeed(path string) []search.Entry {
	entries := search.Defaults()
	if path == "" {
		return entries
	}
	extra, err := search.LoadMarkdown(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("faq markdown not loaded")
		return entries
	}
	return append(entries, extra...)
}

// clusterFor picks the Redis-backed fanout and presence when Redis is
// configured, and the in-process ones otherwise.
func clusterFor(ctx context.Context, cfg config.Config, hub *livechat.Hub) (livechat.Fanout, interface {
	livechat.Presence
	services.OnlineCounter
}) {
	if cfg.Redis.Addr == "" {
		return livechat.LocalFanout{Registry: hub}, livechat.LocalPresence{Registry: hub}
	}
	client, err := cluster.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, live chat stays local")
		return livechat.LocalFanout{Registry: hub}, livechat.LocalPresence{Registry: hub}
	}
	fanout := cluster.NewRedisFanout(client, hub)
	go func() {
		if err := fanout.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("redis fanout stopped")
		}
	}()
	log.Info().Str("addr", cfg.Redis.Addr).Msg("live chat clustered over redis")
	return fanout, cluster.NewRedisPresence(client, presenceTTL)
}

// purgeIdempotency drops expired idempotency records until ctx ends.
func purgeIdempotency(ctx context.Context, db *gorm.DB) {
	t := time.NewTicker(purgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("idempotency purge failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("count", n).Msg("idempotency records purged")
			}
		}
	}
}
