package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/windmillcore/jobcore/internal/domain"
	"github.com/windmillcore/jobcore/internal/scheduler/cron"
	"github.com/windmillcore/jobcore/internal/store"
)

type CreateScheduleInput struct {
	WorkspaceID   string
	Path          string
	Schedule      string
	OffsetMinutes int
	ScriptPath    string
	IsFlow        bool
	Args          map[string]any
	EditedBy      string
}

type EditScheduleInput struct {
	WorkspaceID   string
	Path          string
	Schedule      string
	OffsetMinutes int
	ScriptPath    string
	IsFlow        bool
	Args          map[string]any
	EditedBy      string
}

func (q *Queue) GetSchedule(ctx context.Context, workspaceID, path string) (*domain.Schedule, error) {
	sched, err := q.schedules.Get(ctx, q.pool, workspaceID, path)
	if err != nil {
		if err == domain.ErrScheduleNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("%w: get schedule: %v", domain.ErrStore, err)
	}
	return sched, nil
}

func (q *Queue) ListSchedules(ctx context.Context, workspaceID, afterPath string, limit int) ([]*domain.Schedule, error) {
	scheds, err := q.schedules.List(ctx, q.pool, workspaceID, afterPath, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list schedules: %v", domain.ErrStore, err)
	}
	return scheds, nil
}

func (q *Queue) ListAllEnabled(ctx context.Context) ([]*domain.Schedule, error) {
	scheds, err := q.schedules.ListEnabled(ctx, q.pool)
	if err != nil {
		return nil, fmt.Errorf("%w: list enabled schedules: %v", domain.ErrStore, err)
	}
	return scheds, nil
}

// CreateSchedule validates the cron expression has a future occurrence,
// inserts the row, and re-arms it (pushes its first job) in the same
// transaction — mirroring the original's create_schedule +
// push_scheduled_job pairing.
func (q *Queue) CreateSchedule(ctx context.Context, in CreateScheduleInput) (*domain.Schedule, error) {
	if err := cron.Validate(in.Schedule); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCronExpr, err)
	}

	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin create schedule tx: %v", domain.ErrStore, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	sched := &domain.Schedule{
		WorkspaceID:   in.WorkspaceID,
		Path:          in.Path,
		Schedule:      in.Schedule,
		OffsetMinutes: in.OffsetMinutes,
		Enabled:       true,
		ScriptPath:    in.ScriptPath,
		IsFlow:        in.IsFlow,
		Args:          in.Args,
		EditedBy:      in.EditedBy,
	}
	created, err := q.schedules.Insert(ctx, tx, sched)
	if err != nil {
		if err == domain.ErrScheduleNameConflict {
			return nil, err
		}
		return nil, fmt.Errorf("%w: insert schedule: %v", domain.ErrStore, err)
	}

	if _, err := q.pushScheduledTx(ctx, tx, created); err != nil {
		return nil, fmt.Errorf("re-arm new schedule: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: commit create schedule tx: %v", domain.ErrStore, err)
	}
	return created, nil
}

// EditSchedule clears any pending job tied to the old definition, saves
// the new one, and re-arms if it's enabled — matching the original's
// clear_schedule then push_scheduled_job sequencing in edit_schedule.
func (q *Queue) EditSchedule(ctx context.Context, in EditScheduleInput) (*domain.Schedule, error) {
	if err := cron.Validate(in.Schedule); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCronExpr, err)
	}

	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin edit schedule tx: %v", domain.ErrStore, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := q.jobs.ClearPendingForSchedulePath(ctx, tx, in.WorkspaceID, in.Path); err != nil {
		return nil, fmt.Errorf("%w: clear pending for schedule edit: %v", domain.ErrStore, err)
	}

	updated, err := q.schedules.Update(ctx, tx, &domain.Schedule{
		WorkspaceID:   in.WorkspaceID,
		Path:          in.Path,
		Schedule:      in.Schedule,
		OffsetMinutes: in.OffsetMinutes,
		ScriptPath:    in.ScriptPath,
		IsFlow:        in.IsFlow,
		Args:          in.Args,
		EditedBy:      in.EditedBy,
	})
	if err != nil {
		if err == domain.ErrScheduleNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("%w: update schedule: %v", domain.ErrStore, err)
	}

	if updated.Enabled {
		if _, err := q.pushScheduledTx(ctx, tx, updated); err != nil {
			return nil, fmt.Errorf("re-arm edited schedule: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: commit edit schedule tx: %v", domain.ErrStore, err)
	}
	return updated, nil
}

// SetEnabled toggles a schedule. Disabling clears any pending job so a
// paused schedule can't still fire once more from a job queued before
// the pause; enabling re-arms immediately.
func (q *Queue) SetEnabled(ctx context.Context, workspaceID, path string, enabled bool, editedBy string) (*domain.Schedule, error) {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin set enabled tx: %v", domain.ErrStore, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	sched, err := q.schedules.SetEnabled(ctx, tx, workspaceID, path, enabled, editedBy)
	if err != nil {
		if err == domain.ErrScheduleNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("%w: set schedule enabled: %v", domain.ErrStore, err)
	}

	if enabled {
		if _, err := q.pushScheduledTx(ctx, tx, sched); err != nil {
			return nil, fmt.Errorf("re-arm enabled schedule: %w", err)
		}
	} else {
		if err := q.jobs.ClearPendingForSchedulePath(ctx, tx, workspaceID, path); err != nil {
			return nil, fmt.Errorf("%w: clear pending on disable: %v", domain.ErrStore, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: commit set enabled tx: %v", domain.ErrStore, err)
	}
	return sched, nil
}

func (q *Queue) DeleteSchedule(ctx context.Context, workspaceID, path string) error {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin delete schedule tx: %v", domain.ErrStore, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := q.jobs.ClearPendingForSchedulePath(ctx, tx, workspaceID, path); err != nil {
		return fmt.Errorf("%w: clear pending on delete: %v", domain.ErrStore, err)
	}
	if err := q.schedules.Delete(ctx, tx, workspaceID, path); err != nil {
		if err == domain.ErrScheduleNotFound {
			return err
		}
		return fmt.Errorf("%w: delete schedule: %v", domain.ErrStore, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit delete schedule tx: %v", domain.ErrStore, err)
	}
	return nil
}

// PushScheduled re-arms a schedule looked up by path, in its own
// transaction — the entry point the dispatcher's backstop poll uses.
func (q *Queue) PushScheduled(ctx context.Context, workspaceID, path string) error {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin push scheduled tx: %v", domain.ErrStore, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	sched, err := q.schedules.Get(ctx, tx, workspaceID, path)
	if err != nil {
		if err == domain.ErrScheduleNotFound {
			return err
		}
		return fmt.Errorf("%w: load schedule: %v", domain.ErrStore, err)
	}
	if !sched.Enabled {
		return nil
	}

	if _, err := q.pushScheduledTx(ctx, tx, sched); err != nil {
		return fmt.Errorf("re-arm schedule: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit push scheduled tx: %v", domain.ErrStore, err)
	}
	return nil
}

// pushScheduledTx computes the schedule's next fire time and pushes a
// job for it within the caller's transaction — the Go rendering of
// push_scheduled_job: the anchor/offset cron arithmetic plus the
// schedule-to-job translation (flow vs script_hash payload), run
// through Push's own idempotency check so a concurrent re-arm from two
// callers collapses to one job.
func (q *Queue) pushScheduledTx(ctx context.Context, tx store.DBTX, sched *domain.Schedule) (string, error) {
	next, err := cron.NextAfter(sched.Schedule, sched.OffsetMinutes, time.Now())
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrNoFutureOccurrence, err)
	}

	kind := domain.KindScriptHash
	if sched.IsFlow {
		kind = domain.KindFlow
	}

	path := sched.Path
	return q.push(ctx, tx, PushInput{
		WorkspaceID:  sched.WorkspaceID,
		Kind:         kind,
		ScriptPath:   sched.ScriptPath,
		Args:         sched.Args,
		CreatedBy:    "scheduler",
		OwnerPath:    sched.Path,
		ScheduledFor: next,
		SchedulePath: &path,
	})
}
