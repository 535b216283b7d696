// Command worker runs the supervisor process: N worker loops, the
// zombie reaper, and the scheduler's backstop dispatcher.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/windmillcore/jobcore/internal/config"
	"github.com/windmillcore/jobcore/internal/health"
	"github.com/windmillcore/jobcore/internal/metrics"
	"github.com/windmillcore/jobcore/internal/migrations"
	"github.com/windmillcore/jobcore/internal/obslog"
	"github.com/windmillcore/jobcore/internal/queue"
	"github.com/windmillcore/jobcore/internal/scheduler"
	"github.com/windmillcore/jobcore/internal/store/postgres"
	"github.com/windmillcore/jobcore/internal/supervisor"
	"github.com/windmillcore/jobcore/internal/worker"
	"github.com/windmillcore/jobcore/internal/worker/ipresolve"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := obslog.New(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.NumWorkers)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	if err := migrations.Apply(ctx, pool); err != nil {
		log.Fatalf("migrations: %v", err)
	}
	if err := postgres.SetupAppUser(ctx, pool, cfg.AppUserPassword); err != nil {
		log.Fatalf("setup app user: %v", err)
	}

	jobStore := postgres.NewJobStore()
	q := queue.New(pool, jobStore, postgres.NewScheduleStore(), postgres.NewWorkerPingStore(), postgres.NewScriptStore(), logger)

	metrics.Register()
	checker := health.NewChecker(pool, logger, prometheus.DefaultRegisterer)
	metricsMux := metrics.NewServerMux()
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(checker.Liveness(r.Context()))
	})
	metricsMux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		result := checker.Readiness(r.Context())
		if result.Status != "up" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(result)
	})
	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: metricsMux}
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	executor := worker.NewHTTPExecutor(cfg.BaseURL, logger)
	ipResolver := ipresolve.New()

	workers := make([]*worker.Worker, cfg.NumWorkers)
	for i := range workers {
		workers[i] = worker.New("worker", worker.Config{
			Queue:        q,
			Execute:      executor.Execute,
			PingInterval: cfg.Timeout() / 2,
			SleepQueue:   cfg.SleepQueue(),
			IPResolver:   ipResolver,
			Logger:       logger,
		})
	}

	reaper := worker.NewReaper(pool, jobStore, cfg.Timeout(), logger)
	dispatcher := scheduler.NewDispatcher(q, logger, cfg.DispatchPollInterval())

	sup := supervisor.New(workers, reaper, dispatcher, logger)

	logger.Info("worker process starting", "num_workers", cfg.NumWorkers)
	sup.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
	logger.Info("worker process exited")
}
