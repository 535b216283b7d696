package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/windmillcore/jobcore/internal/domain"
	"github.com/windmillcore/jobcore/internal/store"
)

// JobStore is the concrete store.JobStore backed by the queue and
// completed_job tables. It holds no connection of its own — every
// method takes a store.DBTX, so it works identically against the pool
// or a caller-held transaction.
type JobStore struct{}

func NewJobStore() *JobStore {
	return &JobStore{}
}

// rowScanner is implemented by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (s *JobStore) Insert(ctx context.Context, db store.DBTX, job *domain.Job) (*domain.Job, error) {
	args, err := json.Marshal(job.Args)
	if err != nil {
		return nil, fmt.Errorf("marshal args: %w", err)
	}
	var depsSpec []byte
	if job.DependenciesSpec != nil {
		depsSpec, err = json.Marshal(job.DependenciesSpec)
		if err != nil {
			return nil, fmt.Errorf("marshal dependencies_spec: %w", err)
		}
	}

	row := db.QueryRow(ctx, `
		INSERT INTO queue (
			id, workspace_id, kind, script_hash, script_path,
			preview_script_body, preview_language, dependencies_spec, args,
			created_by, owner_path, scheduled_for, schedule_path, parent_job,
			retries_remaining, running, canceled, restart_count, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			FALSE, FALSE, 0, now()
		)
		RETURNING id, workspace_id, kind, script_hash, script_path,
		          preview_script_body, preview_language, dependencies_spec, args,
		          created_by, owner_path, scheduled_for, schedule_path, parent_job,
		          running, canceled, last_ping, started_at, restart_count, retries_remaining, created_at`,
		job.ID, job.WorkspaceID, job.Kind, job.ScriptHash, job.ScriptPath,
		job.PreviewScriptBody, job.PreviewLanguage, nullableJSON(depsSpec), args,
		job.CreatedBy, job.OwnerPath, job.ScheduledFor, job.SchedulePath, job.ParentJob,
		job.RetriesRemaining,
	)
	return scanJob(row)
}

func (s *JobStore) PendingForSchedulePath(ctx context.Context, db store.DBTX, workspaceID, schedulePath string) (*domain.Job, error) {
	row := db.QueryRow(ctx, `
		SELECT id, workspace_id, kind, script_hash, script_path,
		       preview_script_body, preview_language, dependencies_spec, args,
		       created_by, owner_path, scheduled_for, schedule_path, parent_job,
		       running, canceled, last_ping, started_at, restart_count, retries_remaining, created_at
		FROM queue
		WHERE workspace_id = $1 AND schedule_path = $2`,
		workspaceID, schedulePath)
	j, err := scanJob(row)
	if errors.Is(err, domain.ErrJobNotFound) {
		return nil, nil
	}
	return j, err
}

func (s *JobStore) GetByID(ctx context.Context, db store.DBTX, workspaceID, id string) (*domain.Job, error) {
	row := db.QueryRow(ctx, `
		SELECT id, workspace_id, kind, script_hash, script_path,
		       preview_script_body, preview_language, dependencies_spec, args,
		       created_by, owner_path, scheduled_for, schedule_path, parent_job,
		       running, canceled, last_ping, started_at, restart_count, retries_remaining, created_at
		FROM queue
		WHERE workspace_id = $1 AND id = $2`,
		workspaceID, id)
	return scanJob(row)
}

func (s *JobStore) GetByIDUnscoped(ctx context.Context, db store.DBTX, id string) (*domain.Job, error) {
	row := db.QueryRow(ctx, `
		SELECT id, workspace_id, kind, script_hash, script_path,
		       preview_script_body, preview_language, dependencies_spec, args,
		       created_by, owner_path, scheduled_for, schedule_path, parent_job,
		       running, canceled, last_ping, started_at, restart_count, retries_remaining, created_at
		FROM queue
		WHERE id = $1`,
		id)
	return scanJob(row)
}

// ClaimOne picks the oldest eligible pending row and marks it running,
// using FOR UPDATE SKIP LOCKED so concurrent workers never contend for
// the same row. One job per call, matching the worker's pull-one-at-a-
// time loop.
func (s *JobStore) ClaimOne(ctx context.Context, db store.DBTX, workerName string) (*domain.Job, error) {
	row := db.QueryRow(ctx, `
		UPDATE queue
		SET    running = TRUE, last_ping = now(), started_at = now()
		WHERE id = (
			SELECT id FROM queue
			WHERE NOT running AND NOT canceled AND scheduled_for <= now()
			ORDER BY scheduled_for ASC, created_at ASC, id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, workspace_id, kind, script_hash, script_path,
		          preview_script_body, preview_language, dependencies_spec, args,
		          created_by, owner_path, scheduled_for, schedule_path, parent_job,
		          running, canceled, last_ping, started_at, restart_count, retries_remaining, created_at`,
		workerName)

	j, err := scanJob(row)
	if errors.Is(err, domain.ErrJobNotFound) {
		return nil, nil
	}
	return j, err
}

func (s *JobStore) UpdateHeartbeat(ctx context.Context, db store.DBTX, jobID string) error {
	_, err := db.Exec(ctx, `UPDATE queue SET last_ping = now() WHERE id = $1 AND running`, jobID)
	return err
}

func (s *JobStore) Delete(ctx context.Context, db store.DBTX, jobID string) error {
	_, err := db.Exec(ctx, `DELETE FROM queue WHERE id = $1`, jobID)
	return err
}

func (s *JobStore) InsertCompleted(ctx context.Context, db store.DBTX, cj *domain.CompletedJob) error {
	args, err := json.Marshal(cj.Args)
	if err != nil {
		return fmt.Errorf("marshal args: %w", err)
	}
	var depsSpec []byte
	if cj.DependenciesSpec != nil {
		depsSpec, err = json.Marshal(cj.DependenciesSpec)
		if err != nil {
			return fmt.Errorf("marshal dependencies_spec: %w", err)
		}
	}
	result, err := json.Marshal(cj.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	_, err = db.Exec(ctx, `
		INSERT INTO completed_job (
			id, workspace_id, kind, script_hash, script_path,
			preview_script_body, preview_language, dependencies_spec, args,
			created_by, owner_path, scheduled_for, schedule_path, parent_job,
			restart_count, retries_remaining, created_at, success, result, duration_ms, completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, now()
		)`,
		cj.ID, cj.WorkspaceID, cj.Kind, cj.ScriptHash, cj.ScriptPath,
		cj.PreviewScriptBody, cj.PreviewLanguage, nullableJSON(depsSpec), args,
		cj.CreatedBy, cj.OwnerPath, cj.ScheduledFor, cj.SchedulePath, cj.ParentJob,
		cj.RestartCount, cj.RetriesRemaining, cj.CreatedAt, cj.Success, nullableJSON(result), cj.DurationMS,
	)
	return err
}

func (s *JobStore) SetCanceled(ctx context.Context, db store.DBTX, workspaceID, jobID string) error {
	tag, err := db.Exec(ctx, `
		UPDATE queue SET canceled = TRUE
		WHERE workspace_id = $1 AND id = $2`, workspaceID, jobID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (s *JobStore) ClearPendingForSchedulePath(ctx context.Context, db store.DBTX, workspaceID, schedulePath string) error {
	_, err := db.Exec(ctx, `
		DELETE FROM queue
		WHERE workspace_id = $1 AND schedule_path = $2 AND NOT running`,
		workspaceID, schedulePath)
	return err
}

// ReclaimStale resets running rows whose last_ping is older than the
// cutoff back to pending, bumping restart_count, for rows still under
// the restart threshold. Locked with FOR UPDATE SKIP LOCKED so the
// reaper never races a worker's own heartbeat/complete.
func (s *JobStore) ReclaimStale(ctx context.Context, db store.DBTX, staleCutoff time.Time, restartThreshold, limit int) ([]*domain.Job, error) {
	rows, err := db.Query(ctx, `
		UPDATE queue
		SET    running = FALSE, last_ping = NULL, started_at = NULL,
		       restart_count = restart_count + 1
		WHERE id IN (
			SELECT id FROM queue
			WHERE running AND NOT canceled AND last_ping < $1 AND restart_count < $2
			ORDER BY last_ping ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, workspace_id, kind, script_hash, script_path,
		          preview_script_body, preview_language, dependencies_spec, args,
		          created_by, owner_path, scheduled_for, schedule_path, parent_job,
		          running, canceled, last_ping, started_at, restart_count, retries_remaining, created_at`,
		staleCutoff, restartThreshold, limit)
	if err != nil {
		return nil, fmt.Errorf("reclaim stale: %w", err)
	}
	defer rows.Close()

	var out []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// ArchiveZombies moves rows that exhausted the restart threshold into
// completed_job as a permanent failure, in one statement per row via a
// CTE so the delete-then-insert is atomic per row without a Go-level
// transaction.
func (s *JobStore) ArchiveZombies(ctx context.Context, db store.DBTX, staleCutoff time.Time, restartThreshold, limit int) (int, error) {
	tag, err := db.Exec(ctx, `
		WITH zombies AS (
			SELECT id FROM queue
			WHERE running AND NOT canceled AND last_ping < $1 AND restart_count >= $2
			ORDER BY last_ping ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		), moved AS (
			DELETE FROM queue WHERE id IN (SELECT id FROM zombies)
			RETURNING id, workspace_id, kind, script_hash, script_path,
			          preview_script_body, preview_language, dependencies_spec, args,
			          created_by, owner_path, scheduled_for, schedule_path, parent_job,
			          restart_count, retries_remaining, created_at
		)
		INSERT INTO completed_job (
			id, workspace_id, kind, script_hash, script_path,
			preview_script_body, preview_language, dependencies_spec, args,
			created_by, owner_path, scheduled_for, schedule_path, parent_job,
			restart_count, retries_remaining, created_at, success, result, duration_ms, completed_at
		)
		SELECT id, workspace_id, kind, script_hash, script_path,
		       preview_script_body, preview_language, dependencies_spec, args,
		       created_by, owner_path, scheduled_for, schedule_path, parent_job,
		       restart_count, retries_remaining, created_at, FALSE,
		       '{"error": "too many restarts"}'::jsonb,
		       0, now()
		FROM moved`,
		staleCutoff, restartThreshold, limit)
	if err != nil {
		return 0, fmt.Errorf("archive zombies: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var j domain.Job
	var depsSpec, args []byte
	err := row.Scan(
		&j.ID, &j.WorkspaceID, &j.Kind, &j.ScriptHash, &j.ScriptPath,
		&j.PreviewScriptBody, &j.PreviewLanguage, &depsSpec, &args,
		&j.CreatedBy, &j.OwnerPath, &j.ScheduledFor, &j.SchedulePath, &j.ParentJob,
		&j.Running, &j.Canceled, &j.LastPing, &j.StartedAt, &j.RestartCount, &j.RetriesRemaining, &j.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	if len(depsSpec) > 0 {
		if err := json.Unmarshal(depsSpec, &j.DependenciesSpec); err != nil {
			return nil, fmt.Errorf("unmarshal dependencies_spec: %w", err)
		}
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &j.Args); err != nil {
			return nil, fmt.Errorf("unmarshal args: %w", err)
		}
	}
	return &j, nil
}
