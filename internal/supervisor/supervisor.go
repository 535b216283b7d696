// Package supervisor owns process lifetime for the worker side:
// spawning N workers plus the reaper and dispatcher backstop, and
// tearing them all down together on shutdown, using context.Context
// cancellation as the broadcast mechanism — every goroutine below
// already treats ctx.Done() as a receive-only broadcast, so no separate
// shutdown channel is needed.
package supervisor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/windmillcore/jobcore/internal/scheduler"
	"github.com/windmillcore/jobcore/internal/worker"
)

type Runnable interface {
	Run(ctx context.Context)
}

type Supervisor struct {
	workers    []*worker.Worker
	reaper     *worker.Reaper
	dispatcher *scheduler.Dispatcher
	logger     *slog.Logger
}

func New(workers []*worker.Worker, reaper *worker.Reaper, dispatcher *scheduler.Dispatcher, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		workers:    workers,
		reaper:     reaper,
		dispatcher: dispatcher,
		logger:     logger.With("component", "supervisor"),
	}
}

// Run spawns every worker, the reaper, and the dispatcher and blocks
// until ctx is canceled, then waits for all of them to finish their
// current unit of work before returning — a worker never abandons an
// in-flight job.
func (s *Supervisor) Run(ctx context.Context) {
	var wg sync.WaitGroup

	s.logger.Info("supervisor starting", "num_workers", len(s.workers))

	spawn := func(r Runnable) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					s.logger.Error("recovered from panic in supervised task", "panic", rec)
				}
			}()
			r.Run(ctx)
		}()
	}

	for _, w := range s.workers {
		spawn(w)
	}
	spawn(s.reaper)
	spawn(s.dispatcher)

	<-ctx.Done()
	s.logger.Info("shutdown signal received, waiting for in-flight work to finish")

	wg.Wait()
	s.logger.Info("supervisor shut down cleanly")
}
