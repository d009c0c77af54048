package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callboard/internal/audit"
	"callboard/internal/calls"
	"callboard/internal/config"
	"callboard/internal/events"
	"callboard/internal/httpapi"
	"callboard/internal/ingest"
	"callboard/internal/provider"
	"callboard/internal/ratelimit"
	"callboard/internal/reporting"
	"callboard/internal/teams"
	"callboard/pkg/logger"
	"callboard/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	callStore := calls.NewPostgresStore(db)
	teamStore := teams.NewPostgresStore(db)
	auditSvc := audit.NewService(audit.NewPostgresRepo(db), log)

	// Sync events fan out to in-process WebSocket subscribers and are
	// mirrored on a redis channel for external observers.
	hub := events.NewHub(log)
	pub := events.Multi{hub, events.NewRedisBridge(rdb, cfg.Events.RedisChannel, log)}

	clientFactory := func(s calls.ProviderSettings) provider.Client {
		return provider.NewOVHClient(provider.Credentials{
			Endpoint:       cfg.Provider.Endpoint,
			BillingAccount: s.BillingAccount,
			AppKey:         s.AppKey,
			AppSecret:      s.AppSecret,
			ConsumerKey:    s.ConsumerKey,
		}, log)
	}

	worker := ingest.NewWorker(callStore, clientFactory, pub, log)
	go worker.Run(rootCtx)

	scheduler := ingest.NewScheduler(cfg.Sync.Interval, cfg.Sync.SchedulerEnabled, worker, log)
	scheduler.Start()
	defer scheduler.Stop()

	limiter := ratelimit.New(rdb, "callboard:ratelimit", cfg.Sync.TriggerLimit, cfg.Sync.TriggerWindow, log)

	h := httpapi.Handlers{
		Store:     callStore,
		Teams:     teamStore,
		Matcher:   teams.NewMatcher(teamStore),
		Reporting: reporting.NewService(callStore),
		Worker:    worker,
		Hub:       hub,
		Audit:     auditSvc,
		Clients:   clientFactory,
		DBPing: func(ctx context.Context) error {
			return utils.HealthCheck(ctx, db, 2*time.Second)
		},
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	registerRoutes(r, h, limiter)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
