package store

import (
	"context"

	"github.com/windmillcore/jobcore/internal/domain"
)

// ScheduleStore owns reads/writes against the schedule table.
type ScheduleStore interface {
	Insert(ctx context.Context, db DBTX, sched *domain.Schedule) (*domain.Schedule, error)
	Get(ctx context.Context, db DBTX, workspaceID, path string) (*domain.Schedule, error)
	Update(ctx context.Context, db DBTX, sched *domain.Schedule) (*domain.Schedule, error)
	SetEnabled(ctx context.Context, db DBTX, workspaceID, path string, enabled bool, editedBy string) (*domain.Schedule, error)
	Delete(ctx context.Context, db DBTX, workspaceID, path string) error
	// List returns schedules for a workspace ordered by path, paginated
	// with a cursor on path (exclusive) for stable keyset pagination.
	List(ctx context.Context, db DBTX, workspaceID string, afterPath string, limit int) ([]*domain.Schedule, error)
	// ListEnabled returns every enabled schedule across all workspaces —
	// used by the backstop poll to notice schedules whose re-arm hook
	// never fired (fresh bootstrap, restarted scheduler process).
	ListEnabled(ctx context.Context, db DBTX) ([]*domain.Schedule, error)
}
