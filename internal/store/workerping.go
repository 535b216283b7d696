package store

import (
	"context"
	"time"

	"github.com/windmillcore/jobcore/internal/domain"
)

// WorkerPingStore owns the worker_ping heartbeat table, upserted on
// every worker heartbeat. The job reaper does not read it; it keys off
// queue.last_ping directly.
type WorkerPingStore interface {
	Upsert(ctx context.Context, db DBTX, ping *domain.WorkerPing) error
	ListSince(ctx context.Context, db DBTX, since time.Time) ([]*domain.WorkerPing, error)
}
