package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/windmillcore/jobcore/internal/domain"
	"github.com/windmillcore/jobcore/internal/store"
)

type ScheduleStore struct{}

func NewScheduleStore() *ScheduleStore {
	return &ScheduleStore{}
}

const scheduleColumns = `workspace_id, path, schedule, offset_minutes, enabled,
	script_path, is_flow, args, edited_by, edited_at`

func (s *ScheduleStore) Insert(ctx context.Context, db store.DBTX, sched *domain.Schedule) (*domain.Schedule, error) {
	args, err := json.Marshal(sched.Args)
	if err != nil {
		return nil, fmt.Errorf("marshal args: %w", err)
	}

	row := db.QueryRow(ctx, `
		INSERT INTO schedule (`+scheduleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		RETURNING `+scheduleColumns,
		sched.WorkspaceID, sched.Path, sched.Schedule, sched.OffsetMinutes, sched.Enabled,
		sched.ScriptPath, sched.IsFlow, args, sched.EditedBy,
	)
	sc, err := scanSchedule(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrScheduleNameConflict
		}
		return nil, err
	}
	return sc, nil
}

func (s *ScheduleStore) Get(ctx context.Context, db store.DBTX, workspaceID, path string) (*domain.Schedule, error) {
	row := db.QueryRow(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedule WHERE workspace_id = $1 AND path = $2`, workspaceID, path)
	return scanSchedule(row)
}

func (s *ScheduleStore) Update(ctx context.Context, db store.DBTX, sched *domain.Schedule) (*domain.Schedule, error) {
	args, err := json.Marshal(sched.Args)
	if err != nil {
		return nil, fmt.Errorf("marshal args: %w", err)
	}
	row := db.QueryRow(ctx, `
		UPDATE schedule
		SET schedule = $3, offset_minutes = $4, script_path = $5, is_flow = $6,
		    args = $7, edited_by = $8, edited_at = now()
		WHERE workspace_id = $1 AND path = $2
		RETURNING `+scheduleColumns,
		sched.WorkspaceID, sched.Path, sched.Schedule, sched.OffsetMinutes,
		sched.ScriptPath, sched.IsFlow, args, sched.EditedBy,
	)
	return scanSchedule(row)
}

func (s *ScheduleStore) SetEnabled(ctx context.Context, db store.DBTX, workspaceID, path string, enabled bool, editedBy string) (*domain.Schedule, error) {
	row := db.QueryRow(ctx, `
		UPDATE schedule
		SET enabled = $3, edited_by = $4, edited_at = now()
		WHERE workspace_id = $1 AND path = $2
		RETURNING `+scheduleColumns,
		workspaceID, path, enabled, editedBy,
	)
	return scanSchedule(row)
}

func (s *ScheduleStore) Delete(ctx context.Context, db store.DBTX, workspaceID, path string) error {
	tag, err := db.Exec(ctx, `DELETE FROM schedule WHERE workspace_id = $1 AND path = $2`, workspaceID, path)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrScheduleNotFound
	}
	return nil
}

func (s *ScheduleStore) List(ctx context.Context, db store.DBTX, workspaceID string, afterPath string, limit int) ([]*domain.Schedule, error) {
	rows, err := db.Query(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedule
		WHERE workspace_id = $1 AND path > $2
		ORDER BY path ASC
		LIMIT $3`, workspaceID, afterPath, limit)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()
	return scanSchedules(rows)
}

func (s *ScheduleStore) ListEnabled(ctx context.Context, db store.DBTX) ([]*domain.Schedule, error) {
	rows, err := db.Query(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedule WHERE enabled ORDER BY workspace_id, path`)
	if err != nil {
		return nil, fmt.Errorf("list enabled schedules: %w", err)
	}
	defer rows.Close()
	return scanSchedules(rows)
}

func scanSchedules(rows pgx.Rows) ([]*domain.Schedule, error) {
	var out []*domain.Schedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func scanSchedule(row rowScanner) (*domain.Schedule, error) {
	var sc domain.Schedule
	var args []byte
	err := row.Scan(
		&sc.WorkspaceID, &sc.Path, &sc.Schedule, &sc.OffsetMinutes, &sc.Enabled,
		&sc.ScriptPath, &sc.IsFlow, &args, &sc.EditedBy, &sc.EditedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("scan schedule: %w", err)
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &sc.Args); err != nil {
			return nil, fmt.Errorf("unmarshal args: %w", err)
		}
	}
	return &sc, nil
}
