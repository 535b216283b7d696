// Package queue implements the Queue API: the single seam every
// collaborator (HTTP handlers, the scheduler, workers) pushes through
// to read or mutate queue and schedule state. No collaborator imports
// internal/store/postgres directly.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/windmillcore/jobcore/internal/domain"
	"github.com/windmillcore/jobcore/internal/store"
)

// API is the interface collaborators depend on instead of *Queue
// directly — keeps handler and worker tests free of a real database.
type API interface {
	Push(ctx context.Context, tx store.DBTX, in PushInput) (string, error)
	Pull(ctx context.Context, workerName string) (*domain.Job, error)
	// Heartbeat refreshes the held job's last_ping and upserts the
	// calling worker's worker_ping row in one call, so a worker's
	// heartbeat sub-goroutine has a single thing to call per beat.
	Heartbeat(ctx context.Context, workerName, jobID, ip string) error
	Complete(ctx context.Context, jobID string, success bool, result map[string]any) error
	Cancel(ctx context.Context, workspaceID, jobID string) error

	GetSchedule(ctx context.Context, workspaceID, path string) (*domain.Schedule, error)
	CreateSchedule(ctx context.Context, in CreateScheduleInput) (*domain.Schedule, error)
	EditSchedule(ctx context.Context, in EditScheduleInput) (*domain.Schedule, error)
	SetEnabled(ctx context.Context, workspaceID, path string, enabled bool, editedBy string) (*domain.Schedule, error)
	DeleteSchedule(ctx context.Context, workspaceID, path string) error
	ListSchedules(ctx context.Context, workspaceID, afterPath string, limit int) ([]*domain.Schedule, error)

	// PushScheduled re-arms a single schedule by path — the bootstrap
	// entry point the dispatcher's backstop poll uses for schedules it
	// can't prove already have a pending job queued.
	PushScheduled(ctx context.Context, workspaceID, path string) error

	// ListAllEnabled returns every enabled schedule across every
	// workspace — used only by the dispatcher's backstop sweep, which
	// has no single workspace to scope to.
	ListAllEnabled(ctx context.Context) ([]*domain.Schedule, error)
}

var _ API = (*Queue)(nil)

// Queue is the concrete, Postgres-backed implementation of API.
type Queue struct {
	pool        store.Beginner
	jobs        store.JobStore
	schedules   store.ScheduleStore
	workerPings store.WorkerPingStore
	scripts     store.ScriptStore
	logger      *slog.Logger
}

func New(pool store.Beginner, jobs store.JobStore, schedules store.ScheduleStore, workerPings store.WorkerPingStore, scripts store.ScriptStore, logger *slog.Logger) *Queue {
	return &Queue{
		pool:        pool,
		jobs:        jobs,
		schedules:   schedules,
		workerPings: workerPings,
		scripts:     scripts,
		logger:      logger.With("component", "queue"),
	}
}

// Heartbeat refreshes the job's last_ping (so the reaper never reclaims
// it) and upserts the worker's own ping row (so health/metrics can see
// it as alive). The two are independent writes, not one transaction —
// losing the worker_ping half on a transient error is harmless; losing
// the job ping half is what the reaper actually cares about, so its
// error is the one callers see.
func (q *Queue) Heartbeat(ctx context.Context, workerName, jobID, ip string) error {
	if err := q.jobs.UpdateHeartbeat(ctx, q.pool, jobID); err != nil {
		return fmt.Errorf("%w: update job heartbeat: %v", domain.ErrStore, err)
	}
	if err := q.workerPings.Upsert(ctx, q.pool, &domain.WorkerPing{WorkerName: workerName, IP: ip}); err != nil {
		q.logger.Warn("worker ping upsert failed", "worker_name", workerName, "error", err)
	}
	return nil
}

// PushInput is the caller-facing shape of a new queue row. Exactly one
// of (ScriptHash+ScriptPath), ScriptPath alone (flow), or
// (PreviewScriptBody+PreviewLanguage), or DependenciesSpec should be
// set, matching Kind.
type PushInput struct {
	WorkspaceID string
	Kind        domain.Kind

	ScriptHash        string
	ScriptPath        string
	PreviewScriptBody string
	PreviewLanguage   string
	DependenciesSpec  map[string]any

	Args map[string]any

	CreatedBy string
	OwnerPath string

	ScheduledFor time.Time
	SchedulePath *string
	ParentJob    *string

	// MaxRetries overrides Kind's default retry-policy budget. Nil
	// means "use the kind's default".
	MaxRetries *int
}

// Push inserts a new pending job. If tx is nil, Push opens and commits
// its own transaction; a caller already holding a transaction (an HTTP
// handler interleaving an audit-log write, say) passes it straight
// through instead.
func (q *Queue) Push(ctx context.Context, tx store.DBTX, in PushInput) (string, error) {
	run := func(db store.DBTX) (string, error) {
		id, err := q.push(ctx, db, in)
		return id, err
	}

	if tx != nil {
		return run(tx)
	}

	txn, err := q.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: begin push tx: %v", domain.ErrStore, err)
	}
	id, err := run(txn)
	if err != nil {
		_ = txn.Rollback(ctx)
		return "", err
	}
	if err := txn.Commit(ctx); err != nil {
		return "", fmt.Errorf("%w: commit push tx: %v", domain.ErrStore, err)
	}
	return id, nil
}

func (q *Queue) push(ctx context.Context, db store.DBTX, in PushInput) (string, error) {
	// At most one pending job per (workspace, schedule_path), checked
	// explicitly rather than relying solely on the partial unique index,
	// so a repeat re-arm call is a silent no-op instead of a
	// constraint-violation error the caller has to special-case.
	if in.SchedulePath != nil {
		existing, err := q.jobs.PendingForSchedulePath(ctx, db, in.WorkspaceID, *in.SchedulePath)
		if err != nil {
			return "", fmt.Errorf("%w: check pending for schedule path: %v", domain.ErrStore, err)
		}
		if existing != nil {
			return existing.ID, nil
		}
	}

	scriptHash := in.ScriptHash
	if in.Kind == domain.KindScriptHash && scriptHash == "" {
		resolved, err := q.scripts.LatestHash(ctx, db, in.WorkspaceID, in.ScriptPath)
		if err != nil {
			if err == domain.ErrScriptNotFound {
				return "", err
			}
			return "", fmt.Errorf("%w: resolve latest script hash: %v", domain.ErrStore, err)
		}
		scriptHash = resolved
	}

	retriesRemaining := in.Kind.DefaultMaxRetries()
	if in.MaxRetries != nil {
		retriesRemaining = *in.MaxRetries
	}

	job := &domain.Job{
		ID:                uuid.NewString(),
		WorkspaceID:       in.WorkspaceID,
		Kind:              in.Kind,
		ScriptHash:        scriptHash,
		ScriptPath:        in.ScriptPath,
		PreviewScriptBody: in.PreviewScriptBody,
		PreviewLanguage:   in.PreviewLanguage,
		DependenciesSpec:  in.DependenciesSpec,
		Args:              in.Args,
		CreatedBy:         in.CreatedBy,
		OwnerPath:         in.OwnerPath,
		ScheduledFor:      in.ScheduledFor,
		SchedulePath:      in.SchedulePath,
		ParentJob:         in.ParentJob,
		RetriesRemaining:  retriesRemaining,
	}

	created, err := q.jobs.Insert(ctx, db, job)
	if err != nil {
		return "", fmt.Errorf("%w: insert job: %v", domain.ErrStore, err)
	}
	return created.ID, nil
}

// Pull claims and returns the single oldest eligible pending job, or
// (nil, nil) if none is due.
func (q *Queue) Pull(ctx context.Context, workerName string) (*domain.Job, error) {
	job, err := q.jobs.ClaimOne(ctx, q.pool, workerName)
	if err != nil {
		return nil, fmt.Errorf("%w: claim job: %v", domain.ErrStore, err)
	}
	return job, nil
}

// Complete archives a finished job and, if it belongs to a schedule,
// re-arms that schedule in the same transaction: a crash between
// archive and re-arm must never leave a schedule permanently stalled,
// so both happen or neither does.
//
// If the job failed and its retry-policy budget isn't exhausted, the
// row is replaced with a fresh, immediately-due one carrying one fewer
// retry instead of being archived — the schedule isn't re-armed in
// that case, since the replacement already occupies the schedule_path
// slot the at-most-one-pending invariant guards.
func (q *Queue) Complete(ctx context.Context, jobID string, success bool, result map[string]any) error {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin complete tx: %v", domain.ErrStore, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	job, err := q.jobs.GetByIDUnscoped(ctx, tx, jobID)
	if err != nil {
		return fmt.Errorf("%w: load job: %v", domain.ErrStore, err)
	}

	if err := q.jobs.Delete(ctx, tx, job.ID); err != nil {
		return fmt.Errorf("%w: delete job: %v", domain.ErrStore, err)
	}

	if !success && job.RetriesRemaining > 0 {
		retry := *job
		retry.ID = uuid.NewString()
		retry.RetriesRemaining = job.RetriesRemaining - 1
		retry.ScheduledFor = time.Now().UTC()
		retry.Running = false
		retry.Canceled = false
		retry.LastPing = nil
		retry.StartedAt = nil
		retry.RestartCount = 0

		if _, err := q.jobs.Insert(ctx, tx, &retry); err != nil {
			return fmt.Errorf("%w: insert retry replacement: %v", domain.ErrStore, err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("%w: commit complete tx: %v", domain.ErrStore, err)
		}
		return nil
	}

	cj := &domain.CompletedJob{
		Job:         *job,
		Success:     success,
		Result:      result,
		DurationMS:  durationMS(job.StartedAt),
		CompletedAt: time.Now().UTC(),
	}
	if err := q.jobs.InsertCompleted(ctx, tx, cj); err != nil {
		return fmt.Errorf("%w: archive job: %v", domain.ErrStore, err)
	}

	if job.SchedulePath != nil {
		sched, err := q.schedules.Get(ctx, tx, job.WorkspaceID, *job.SchedulePath)
		if err != nil {
			if err == domain.ErrScheduleNotFound {
				q.logger.Warn("re-arm skipped: schedule no longer exists",
					"workspace_id", job.WorkspaceID, "schedule_path", *job.SchedulePath)
			} else {
				return fmt.Errorf("%w: load schedule for re-arm: %v", domain.ErrStore, err)
			}
		} else if sched.Enabled {
			if _, err := q.pushScheduledTx(ctx, tx, sched); err != nil {
				return fmt.Errorf("re-arm schedule: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit complete tx: %v", domain.ErrStore, err)
	}
	return nil
}

func durationMS(startedAt *time.Time) int64 {
	if startedAt == nil {
		return 0
	}
	return time.Since(*startedAt).Milliseconds()
}

// Cancel flips the poll-only cancellation flag: there is no forceful
// interrupt of in-flight work, just a flag the worker's execute loop
// can observe between steps.
func (q *Queue) Cancel(ctx context.Context, workspaceID, jobID string) error {
	if err := q.jobs.SetCanceled(ctx, q.pool, workspaceID, jobID); err != nil {
		if err == domain.ErrJobNotFound {
			return err
		}
		return fmt.Errorf("%w: cancel job: %v", domain.ErrStore, err)
	}
	return nil
}
