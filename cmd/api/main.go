package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callscreen-platform/internal/auth"
	"callscreen-platform/internal/calls"
	"callscreen-platform/internal/config"
	"callscreen-platform/internal/db"
	"callscreen-platform/internal/delivery"
	"callscreen-platform/internal/httpapi"
	"callscreen-platform/internal/mailer"
	"callscreen-platform/internal/notify"
	"callscreen-platform/internal/provider"
	"callscreen-platform/internal/reporting"
	"callscreen-platform/internal/scheduler"
	"callscreen-platform/internal/users"
	"callscreen-platform/internal/webhook"
	"callscreen-platform/pkg/logger"
	"callscreen-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
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
	if cfg.Webhook.Secret == "" {
		log.Warn("ELEVENLABS_WEBHOOK_SECRET is empty: inbound webhooks are accepted without signature verification")
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	pg, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer pg.Close()

	applied, err := db.Migrate(rootCtx, pg)
	if err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}
	if len(applied) > 0 {
		log.Info("migrations applied", "versions", applied)
	}

	var locker scheduler.Locker
	if addr := cfg.RedisAddr(); addr != "" {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: addr})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer closeRedis(rdb)
		locker = utils.NewRedisLocker(rdb, "callscreen:lock:")
	} else {
		log.Info("redis not configured: scheduler assumes a single instance")
	}

	var mail mailer.Mailer = mailer.LogMailer{Log: log}
	if cfg.Mail.SMTPHost != "" {
		mail = mailer.NewSMTP(cfg.Mail)
	} else {
		log.Warn("SMTP_HOST is empty: emails are logged, not sent")
	}

	svc := newServices(pg)
	if err := seedReports(rootCtx, log, svc.reports, cfg.Reports.SeedFile); err != nil {
		log.Error("report seed failed", "err", err)
		os.Exit(1)
	}

	sched := scheduler.New(scheduler.Deps{
		Configs:    svc.reportRepo,
		Generator:  reporting.NewGenerator(svc.calls),
		Mailer:     mail,
		Deliveries: svc.deliveries,
		Recipients: svc.users,
		Locker:     locker,
		Log:        log,
	}, scheduler.Config{
		TickInterval:   cfg.Scheduler.TickInterval,
		ReloadInterval: cfg.Scheduler.ReloadInterval,
		SendTimeout:    cfg.Mail.SendTimeout,
		LockTTL:        cfg.Scheduler.LockTTL,
	})
	if cfg.Scheduler.Enabled {
		if err := sched.Start(rootCtx); err != nil {
			log.Error("scheduler start failed", "err", err)
			os.Exit(1)
		}
	}
	defer sched.Stop()

	inbound := webhook.Handler{
		Secret:        cfg.Webhook.Secret,
		TargetAgentID: cfg.Webhook.TargetAgentID,
		Calls:         svc.calls,
	}
	if client := provider.New(cfg.Provider); client.Enabled() {
		inbound.Provider = client
	}
	if cfg.Notify.Enabled {
		outboxRepo := notify.NewPostgresRepo(pg)
		inbound.Notifier = notify.NewOutbox(outboxRepo, svc.users, cfg.Notify.MaxAttempts)
		dispatcher := notify.NewDispatcher(outboxRepo, mail, log, notify.DispatcherConfig{
			PollInterval: cfg.Notify.PollInterval,
			BatchSize:    cfg.Notify.BatchSize,
			SendTimeout:  cfg.Mail.SendTimeout,
		})
		dispatcher.Start(rootCtx)
		defer dispatcher.Stop()
	}

	handlers := httpapi.Handlers{
		Auth:       authManager,
		Users:      svc.users,
		Calls:      svc.calls,
		Reports:    svc.reports,
		Deliveries: svc.deliveries,
		Scheduler:  sched,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	registerRoutes(r, handlers, inbound, auth.RequireAccessToken(authManager))

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
}

type services struct {
	calls      *calls.Service
	reportRepo *reporting.PostgresConfigRepo
	reports    *reporting.ConfigService
	deliveries *delivery.Logger
	users      *users.PostgresRepo
}

func newServices(pg *sql.DB) services {
	reportRepo := reporting.NewPostgresConfigRepo(pg)
	return services{
		calls:      calls.NewService(calls.NewPostgresRepo(pg)),
		reportRepo: reportRepo,
		reports:    reporting.NewConfigService(reportRepo),
		deliveries: delivery.NewLogger(delivery.NewPostgresRepo(pg)),
		users:      users.NewPostgresRepo(pg),
	}
}

func seedReports(ctx context.Context, log *slog.Logger, svc *reporting.ConfigService, path string) error {
	if path == "" {
		return nil
	}
	cfgs, err := reporting.LoadSeedFile(path)
	if err != nil {
		return err
	}
	n, err := svc.Seed(ctx, cfgs)
	if err != nil {
		return err
	}
	log.Info("report configs seeded", "file", path, "created", n, "total", len(cfgs))
	return nil
}

func closeRedis(rdb *redis.Client) {
	if err := rdb.Close(); err != nil {
		slog.Error("redis close failed", "err", err)
	}
}
