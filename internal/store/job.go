package store

import (
	"context"
	"time"

	"github.com/windmillcore/jobcore/internal/domain"
)

// JobStore owns every read/write against the queue and completed_job
// tables. All methods accept a DBTX so a caller holding its own
// transaction (to interleave an audit-log write, say) can pass it
// straight through.
type JobStore interface {
	// Insert adds a pending row. Returns domain.ErrScheduleNameConflict-
	// shaped behavior is not relevant here; schedule_path idempotence is
	// handled by PendingForSchedulePath + the caller, not a DB
	// constraint violation, so that a suppressed insert and a genuine
	// conflict are distinguishable.
	Insert(ctx context.Context, db DBTX, job *domain.Job) (*domain.Job, error)

	// PendingForSchedulePath returns the queued job (pending or running)
	// for a schedule path, if one already exists — used to keep Push idempotent under
	// concurrent scheduler/API writes.
	PendingForSchedulePath(ctx context.Context, db DBTX, workspaceID, schedulePath string) (*domain.Job, error)

	GetByID(ctx context.Context, db DBTX, workspaceID, id string) (*domain.Job, error)

	// GetByIDUnscoped loads a job by ID alone, ignoring workspace — the
	// job ID is already globally unique (a uuid), and the worker/queue
	// internals that call this never have a workspace handy (a worker
	// pulls jobs across every workspace it's eligible for).
	GetByIDUnscoped(ctx context.Context, db DBTX, id string) (*domain.Job, error)

	// ClaimOne atomically selects and claims the oldest eligible pending
	// row (FOR UPDATE SKIP LOCKED), ties broken by created_at then id.
	// Returns (nil, nil) when nothing is eligible.
	ClaimOne(ctx context.Context, db DBTX, workerName string) (*domain.Job, error)

	UpdateHeartbeat(ctx context.Context, db DBTX, jobID string) error

	// Delete removes the pending row — the first half of Complete, run
	// in the same transaction as the completed_job insert.
	Delete(ctx context.Context, db DBTX, jobID string) error

	InsertCompleted(ctx context.Context, db DBTX, cj *domain.CompletedJob) error

	SetCanceled(ctx context.Context, db DBTX, workspaceID, jobID string) error

	// ClearPendingForSchedulePath deletes the pending row for a
	// schedule path, if any — the "clear" half of the edit/disable
	// protocol.
	ClearPendingForSchedulePath(ctx context.Context, db DBTX, workspaceID, schedulePath string) error

	// ReclaimStale resets running rows whose heartbeat expired back to
	// pending, for those still under their restart threshold. Returns
	// the reclaimed job IDs.
	ReclaimStale(ctx context.Context, db DBTX, staleCutoff time.Time, restartThreshold, limit int) ([]*domain.Job, error)

	// ArchiveZombies moves running rows whose heartbeat expired AND have
	// exhausted the restart threshold straight to completed_job as a
	// permanent failure.
	ArchiveZombies(ctx context.Context, db DBTX, staleCutoff time.Time, restartThreshold, limit int) (int, error)
}
