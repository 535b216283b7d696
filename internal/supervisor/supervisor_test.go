package supervisor_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/windmillcore/jobcore/internal/domain"
	"github.com/windmillcore/jobcore/internal/queue"
	"github.com/windmillcore/jobcore/internal/scheduler"
	"github.com/windmillcore/jobcore/internal/store"
	"github.com/windmillcore/jobcore/internal/supervisor"
	"github.com/windmillcore/jobcore/internal/worker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeDB satisfies store.DBTX without ever being called: the reaper in
// these tests runs with an interval long enough that its ticker never
// fires before the test ends.
type fakeDB struct{}

func (fakeDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not used")
}
func (fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) { panic("not used") }
func (fakeDB) QueryRow(context.Context, string, ...any) pgx.Row        { panic("not used") }

var _ store.DBTX = fakeDB{}

// fakeJobStore satisfies store.JobStore; every method panics since the
// reaper's ticker never fires in these tests.
type fakeJobStore struct{ store.JobStore }

// fakeQueue satisfies queue.API; Pull/Complete are driven by the test,
// Heartbeat and ListAllEnabled are no-ops, the rest panic if ever called.
type fakeQueue struct {
	pull     func(ctx context.Context, workerName string) (*domain.Job, error)
	complete func(ctx context.Context, jobID string, success bool, result map[string]any) error
}

func (q *fakeQueue) Push(context.Context, store.DBTX, queue.PushInput) (string, error) {
	panic("not used")
}
func (q *fakeQueue) Pull(ctx context.Context, workerName string) (*domain.Job, error) {
	return q.pull(ctx, workerName)
}
func (q *fakeQueue) Heartbeat(context.Context, string, string, string) error { return nil }
func (q *fakeQueue) Complete(ctx context.Context, jobID string, success bool, result map[string]any) error {
	return q.complete(ctx, jobID, success, result)
}
func (q *fakeQueue) Cancel(context.Context, string, string) error { panic("not used") }
func (q *fakeQueue) GetSchedule(context.Context, string, string) (*domain.Schedule, error) {
	panic("not used")
}
func (q *fakeQueue) CreateSchedule(context.Context, queue.CreateScheduleInput) (*domain.Schedule, error) {
	panic("not used")
}
func (q *fakeQueue) EditSchedule(context.Context, queue.EditScheduleInput) (*domain.Schedule, error) {
	panic("not used")
}
func (q *fakeQueue) SetEnabled(context.Context, string, string, bool, string) (*domain.Schedule, error) {
	panic("not used")
}
func (q *fakeQueue) DeleteSchedule(context.Context, string, string) error { panic("not used") }
func (q *fakeQueue) ListSchedules(context.Context, string, string, int) ([]*domain.Schedule, error) {
	panic("not used")
}
func (q *fakeQueue) PushScheduled(context.Context, string, string) error { panic("not used") }
func (q *fakeQueue) ListAllEnabled(ctx context.Context) ([]*domain.Schedule, error) {
	return nil, nil
}

var _ queue.API = (*fakeQueue)(nil)

// idleSupervisor builds a Supervisor whose reaper and dispatcher never
// wake during the test (intervals far longer than any test timeout),
// leaving the single worker built from workerQueue as the only thing
// that can keep Run from returning promptly.
func idleSupervisor(t *testing.T, workerQueue *fakeQueue) *supervisor.Supervisor {
	t.Helper()

	w := worker.New("test-instance", worker.Config{
		Queue:        workerQueue,
		Execute:      func(context.Context, *domain.Job) (bool, map[string]any, error) { return true, nil, nil },
		PingInterval: time.Hour,
		SleepQueue:   10 * time.Millisecond,
		Logger:       testLogger(),
	})
	reaper := worker.NewReaper(fakeDB{}, fakeJobStore{}, 24*time.Hour, testLogger())
	dispatcher := scheduler.NewDispatcher(&fakeQueue{
		pull:     func(context.Context, string) (*domain.Job, error) { return nil, nil },
		complete: func(context.Context, string, bool, map[string]any) error { return nil },
	}, testLogger(), 24*time.Hour)

	return supervisor.New([]*worker.Worker{w}, reaper, dispatcher, testLogger())
}

func TestSupervisor_Run_WaitsForInFlightWorkBeforeReturning(t *testing.T) {
	execStarted := make(chan struct{})
	release := make(chan struct{})
	pulled := false

	q := &fakeQueue{
		pull: func(context.Context, string) (*domain.Job, error) {
			if pulled {
				return nil, nil
			}
			pulled = true
			return &domain.Job{ID: "job-1"}, nil
		},
		complete: func(context.Context, string, bool, map[string]any) error { return nil },
	}

	w := worker.New("test-instance", worker.Config{
		Queue: q,
		Execute: func(context.Context, *domain.Job) (bool, map[string]any, error) {
			close(execStarted)
			<-release
			return true, nil, nil
		},
		PingInterval: time.Hour,
		SleepQueue:   10 * time.Millisecond,
		Logger:       testLogger(),
	})
	reaper := worker.NewReaper(fakeDB{}, fakeJobStore{}, 24*time.Hour, testLogger())
	dispatcher := scheduler.NewDispatcher(&fakeQueue{
		pull:     func(context.Context, string) (*domain.Job, error) { return nil, nil },
		complete: func(context.Context, string, bool, map[string]any) error { return nil },
	}, testLogger(), 24*time.Hour)

	sup := supervisor.New([]*worker.Worker{w}, reaper, dispatcher, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()

	select {
	case <-execStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never started executing its job")
	}

	cancel()

	select {
	case <-done:
		t.Fatal("supervisor returned while a worker still had in-flight work")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not return after in-flight work finished")
	}
}

func TestSupervisor_Run_NoInFlightWork_ReturnsPromptlyOnCancel(t *testing.T) {
	q := &fakeQueue{
		pull:     func(context.Context, string) (*domain.Job, error) { return nil, nil },
		complete: func(context.Context, string, bool, map[string]any) error { return nil },
	}
	sup := idleSupervisor(t, q)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not return after cancel with no in-flight work")
	}
}
