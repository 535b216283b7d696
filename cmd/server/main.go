// Command server runs the HTTP API process: job push/cancel, schedule
// CRUD, and magic-link auth — the REST surface in front of the queue.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/windmillcore/jobcore/internal/auth"
	"github.com/windmillcore/jobcore/internal/config"
	"github.com/windmillcore/jobcore/internal/email"
	"github.com/windmillcore/jobcore/internal/health"
	"github.com/windmillcore/jobcore/internal/httpapi"
	"github.com/windmillcore/jobcore/internal/httpapi/handler"
	"github.com/windmillcore/jobcore/internal/metrics"
	"github.com/windmillcore/jobcore/internal/migrations"
	"github.com/windmillcore/jobcore/internal/obslog"
	"github.com/windmillcore/jobcore/internal/queue"
	"github.com/windmillcore/jobcore/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := obslog.New(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.NumWorkers)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	if err := migrations.Apply(ctx, pool); err != nil {
		stop()
		log.Fatalf("migrations: %v", err)
	}
	if err := postgres.SetupAppUser(ctx, pool, cfg.AppUserPassword); err != nil {
		stop()
		log.Fatalf("setup app user: %v", err)
	}

	q := queue.New(pool, postgres.NewJobStore(), postgres.NewScheduleStore(), postgres.NewWorkerPingStore(), postgres.NewScriptStore(), logger)

	emailSender := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)
	authSvc := auth.New(postgres.NewUserStore(), pool, emailSender, []byte(cfg.JWTSecret), cfg.MagicLinkBase)

	jobHandler := handler.NewJobHandler(q, logger)
	scheduleHandler := handler.NewScheduleHandler(q, logger)
	authHandler := handler.NewAuthHandler(authSvc, logger)

	metrics.Register()
	checker := health.NewChecker(pool, logger, prometheus.DefaultRegisterer)

	router := httpapi.NewRouter(logger, jobHandler, scheduleHandler, authHandler, []byte(cfg.JWTSecret))
	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, checker.Liveness(c.Request.Context())) })
	router.GET("/readyz", func(c *gin.Context) {
		result := checker.Readiness(c.Request.Context())
		status := http.StatusOK
		if result.Status != "up" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, result)
	})

	srv := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	metricsSrv := metrics.NewServer(":" + cfg.MetricsPort)

	go func() {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}
