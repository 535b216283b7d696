// Package worker implements the pull/execute/complete loop: each Worker
// is an independent goroutine, one job at a time, identified by
// worker_name "<instance>-<random>" — restructured from an earlier
// batch-claim-then-goroutine-per-job shape to single-job-per-worker;
// horizontal scaling is by running more Workers, not by concurrency
// inside one.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/windmillcore/jobcore/internal/domain"
	"github.com/windmillcore/jobcore/internal/queue"
	"github.com/windmillcore/jobcore/internal/worker/ipresolve"
)

// Unretrievable is the sentinel IP string recorded when every IP
// discovery source fails — never fatal to worker startup.
const Unretrievable = "Unretrievable ip"

// completeTimeout bounds the detached Complete call so a database
// outage can't hang a shutting-down worker forever.
const completeTimeout = 30 * time.Second

type Worker struct {
	name         string
	queue        queue.API
	execute      ExecuteFunc
	pingInterval time.Duration
	sleepQueue   time.Duration
	ipResolver   *ipresolve.Resolver
	ip           string
	logger       *slog.Logger
}

type Config struct {
	Queue        queue.API
	Execute      ExecuteFunc
	PingInterval time.Duration
	SleepQueue   time.Duration
	IPResolver   *ipresolve.Resolver
	Logger       *slog.Logger
}

// New builds a Worker named "<instance>-<random>", mirroring
// `dt-worker-{instance}-{rand}` from the original's worker naming.
func New(instance string, cfg Config) *Worker {
	if instance == "" {
		if host, err := os.Hostname(); err == nil {
			instance = host
		} else {
			instance = "worker"
		}
	}
	name := fmt.Sprintf("%s-%s", instance, uuid.NewString()[:8])

	return &Worker{
		name:         name,
		queue:        cfg.Queue,
		execute:      cfg.Execute,
		pingInterval: cfg.PingInterval,
		sleepQueue:   cfg.SleepQueue,
		ipResolver:   cfg.IPResolver,
		logger:       cfg.Logger.With("component", "worker", "worker_name", name),
	}
}

// Run is the worker's main loop: Pull, sleep on empty, Execute,
// Complete. It returns once ctx is canceled and — if a job is
// currently in flight — only after that job finishes. Execution itself
// is never canceled mid-flight: scripts may not be idempotent, so a
// started job always runs to completion.
func (w *Worker) Run(ctx context.Context) {
	w.ip = w.resolveIP(ctx)
	w.logger.Info("worker started", "ip", w.ip)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker shut down")
			return
		default:
		}

		job, err := w.queue.Pull(ctx, w.name)
		if err != nil {
			w.logger.Error("pull failed", "error", err)
			if !sleepOrDone(ctx, w.sleepQueue) {
				return
			}
			continue
		}
		if job == nil {
			if !sleepOrDone(ctx, w.sleepQueue) {
				return
			}
			continue
		}

		w.runOne(ctx, job)
	}
}

func (w *Worker) runOne(ctx context.Context, job *domain.Job) {
	// Heartbeat keeps running even once ctx is canceled mid-execution —
	// only the job's own completion stops it — so the reaper never
	// mistakes an in-flight shutdown for a zombie.
	hbCtx, stopHeartbeat := context.WithCancel(context.Background())
	defer stopHeartbeat()
	go w.heartbeat(hbCtx, job.ID)

	w.logger.Info("executing job", "job_id", job.ID, "kind", job.Kind, "script_path", job.ScriptPath)

	success, result, err := w.execute(context.Background(), job)
	if err != nil {
		w.logger.Error("execute failed", "job_id", job.ID, "error", err)
		success = false
		if result == nil {
			result = map[string]any{"error": err.Error()}
		}
	}

	// Complete must not be canceled by shutdown: ctx may already be done
	// by the time execute returns, but the job itself ran to completion,
	// so its result has to land — otherwise the row is stuck
	// running=true until the reaper's timeout window passes.
	completeCtx, cancel := context.WithTimeout(context.Background(), completeTimeout)
	defer cancel()

	if err := w.queue.Complete(completeCtx, job.ID, success, result); err != nil {
		w.logger.Error("complete failed", "job_id", job.ID, "error", err)
		return
	}
	w.logger.Info("job finished", "job_id", job.ID, "success", success)
}

// heartbeat refreshes the held job's last_ping every pingInterval —
// cmd/worker sets it to half of the global timeout, so a reaper cutoff of `timeout`
// always has at least one missed beat's worth of slack before
// reclaiming a still-alive job.
func (w *Worker) heartbeat(ctx context.Context, jobID string) {
	ticker := time.NewTicker(w.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.queue.Heartbeat(ctx, w.name, jobID, w.ip); err != nil {
				w.logger.Error("heartbeat failed", "job_id", jobID, "error", err)
			}
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (w *Worker) resolveIP(ctx context.Context) string {
	if w.ipResolver == nil {
		return Unretrievable
	}
	ip, err := w.ipResolver.Resolve(ctx)
	if err != nil {
		w.logger.Warn("ip resolution failed", "error", err)
		return Unretrievable
	}
	return ip
}

// Name returns the worker's "<instance>-<random>" identity.
func (w *Worker) Name() string { return w.name }
