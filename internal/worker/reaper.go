package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/windmillcore/jobcore/internal/store"
)

// restartThreshold is the number of reclaim cycles a zombie job
// survives before being archived as a permanent failure.
const restartThreshold = 3

const reapBatchLimit = 100

// Reaper is the singleton zombie-recovery task the supervisor owns:
// every timeout/2, it reclaims running rows whose heartbeat has gone
// silent — restructured from an earlier reaper split into
// RescheduleStale/FailStale against a flat jobs table; here against the
// queue/completed_job split, with a DBTX resolved directly against the
// pool rather than through queue.API, since neither operation belongs
// on the caller-facing Queue API — they operate on the whole table with
// no job_id in hand.
type Reaper struct {
	db               store.DBTX
	jobs             store.JobStore
	interval         time.Duration
	heartbeatTimeout time.Duration
	logger           *slog.Logger
}

func NewReaper(db store.DBTX, jobs store.JobStore, heartbeatTimeout time.Duration, logger *slog.Logger) *Reaper {
	return &Reaper{
		db:               db,
		jobs:             jobs,
		interval:         heartbeatTimeout / 2,
		heartbeatTimeout: heartbeatTimeout,
		logger:           logger.With("component", "reaper"),
	}
}

func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reaper started", "interval", r.interval, "heartbeat_timeout", r.heartbeatTimeout)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper shut down")
			return
		case <-ticker.C:
			r.reap(ctx)
		}
	}
}

func (r *Reaper) reap(ctx context.Context) {
	cutoff := time.Now().Add(-r.heartbeatTimeout)

	reclaimed, err := r.jobs.ReclaimStale(ctx, r.db, cutoff, restartThreshold, reapBatchLimit)
	if err != nil {
		r.logger.Error("reclaim stale jobs", "error", err)
	} else if len(reclaimed) > 0 {
		ids := make([]string, len(reclaimed))
		for i, j := range reclaimed {
			ids[i] = j.ID
		}
		r.logger.Warn("reclaimed stale jobs", "count", len(reclaimed), "job_ids", ids)
	}

	archived, err := r.jobs.ArchiveZombies(ctx, r.db, cutoff, restartThreshold, reapBatchLimit)
	if err != nil {
		r.logger.Error("archive zombie jobs", "error", err)
	} else if archived > 0 {
		r.logger.Error("permanently failed jobs after restart threshold", "count", archived)
	}
}

