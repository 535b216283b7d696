// Package scheduler runs the backstop poll that notices schedules
// whose event-driven re-arm never fired — a freshly enabled schedule
// with no job yet queued, or one that slipped through a deploy
// restart window. The primary re-arm path lives in queue.Queue
// (Create/Edit/SetEnabled/Complete); this poll exists only to cover
// what that path can't reach by construction.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/windmillcore/jobcore/internal/queue"
)

type Dispatcher struct {
	queue    queue.API
	logger   *slog.Logger
	interval time.Duration
}

func NewDispatcher(q queue.API, logger *slog.Logger, interval time.Duration) *Dispatcher {
	return &Dispatcher{
		queue:    q,
		logger:   logger.With("component", "dispatcher"),
		interval: interval,
	}
}

// Run polls every interval until ctx is canceled. Each tick, every
// enabled schedule is asked to re-arm; PushScheduled is idempotent
// (Push's schedule_path check), so this never double-queues a schedule
// the event-driven path already re-armed — it only fills the gap for
// one that slipped through.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info("dispatcher backstop poll started", "interval", d.interval)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher shut down")
			return
		case <-ticker.C:
			d.sweep(ctx)
		}
	}
}

func (d *Dispatcher) sweep(ctx context.Context) {
	scheds, err := d.queue.ListAllEnabled(ctx)
	if err != nil {
		d.logger.Error("dispatcher list enabled schedules", "error", err)
		return
	}

	var rearmed int
	for _, sched := range scheds {
		if err := d.queue.PushScheduled(ctx, sched.WorkspaceID, sched.Path); err != nil {
			d.logger.Error("dispatcher re-arm schedule",
				"workspace_id", sched.WorkspaceID, "path", sched.Path, "error", err)
			continue
		}
		rearmed++
	}
	if rearmed > 0 {
		d.logger.Debug("dispatcher swept schedules", "count", rearmed)
	}
}
