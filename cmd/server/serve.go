package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cvewatch/cve-dashboard/internal/config"
	"github.com/cvewatch/cve-dashboard/internal/database"
	"github.com/cvewatch/cve-dashboard/internal/handler"
	"github.com/cvewatch/cve-dashboard/internal/logger"
	"github.com/cvewatch/cve-dashboard/internal/queue"
	"github.com/cvewatch/cve-dashboard/internal/repository"
	"github.com/cvewatch/cve-dashboard/internal/router"
	"github.com/cvewatch/cve-dashboard/internal/service"
	"github.com/cvewatch/cve-dashboard/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel, !cfg.IsProd())
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		log.Error("database connection failed", zap.Error(err))
		return err
	}
	defer db.Close()

	rc, err := config.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", zap.Error(err))
		return err
	}
	defer rc.Close()
	if rc.Embedded() {
		log.Warn("REDIS_ADDR not set, using embedded redis; sessions are lost on restart")
	}

	users := repository.NewUserRepo(db)
	alerts := repository.NewAlertRepo(db)
	stats := repository.NewStatsRepo(db)
	saved := repository.NewSavedRepo(db)

	sessions := session.NewManager(session.NewStore(rc.Client, cfg.Session.TTL), cfg.Session)
	gemini, err := service.NewGeminiClient(ctx, cfg.Gemini)
	if err != nil {
		log.Error("gemini client setup failed", zap.Error(err))
		return err
	}
	defer gemini.Close()
	assistant := service.NewAssistant(alerts, gemini, cfg.Gemini.APIKey != "")
	if cfg.Gemini.APIKey == "" {
		log.Warn("GEMINI_API_KEY not set, chatbot disabled")
	}

	events := service.NewEventPublisher(cfg.AMQPURL)
	if cfg.AMQPURL != "" {
		go func() {
			if err := queue.NewConsumer(cfg.AMQPURL, log).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("event consumer stopped", zap.Error(err))
			}
		}()
	}

	e := router.New(router.Handlers{
		Health:    handler.NewHealthHandler(db, log),
		Auth:      handler.NewAuthHandler(users, sessions, cfg.BcryptCost, log),
		Dashboard: handler.NewDashboardHandler(alerts, stats, log),
		Saved:     handler.NewSavedHandler(alerts, saved, events, log),
		Chat:      handler.NewChatHandler(assistant, log),
	}, router.Deps{
		Sessions:  sessions,
		Redis:     rc.Client,
		Cache:     cfg.Cache,
		RateLimit: cfg.RateLimit,
		Log:       log,
	}, cfg.CORSOrigins)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
