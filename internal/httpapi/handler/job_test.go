package handler_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/windmillcore/jobcore/internal/domain"
	"github.com/windmillcore/jobcore/internal/httpapi/handler"
	"github.com/windmillcore/jobcore/internal/queue"
	"github.com/windmillcore/jobcore/internal/store"
)

// fakeQueue implements queue.API with func fields for the methods under
// test; everything else panics if called, so a test that exercises an
// unexpected path fails loudly instead of silently.
type fakeQueue struct {
	push   func(ctx context.Context, tx store.DBTX, in queue.PushInput) (string, error)
	cancel func(ctx context.Context, workspaceID, jobID string) error
}

func (f *fakeQueue) Push(ctx context.Context, tx store.DBTX, in queue.PushInput) (string, error) {
	return f.push(ctx, tx, in)
}
func (f *fakeQueue) Pull(ctx context.Context, workerName string) (*domain.Job, error) {
	panic("not used")
}
func (f *fakeQueue) Heartbeat(ctx context.Context, workerName, jobID, ip string) error {
	panic("not used")
}
func (f *fakeQueue) Complete(ctx context.Context, jobID string, success bool, result map[string]any) error {
	panic("not used")
}
func (f *fakeQueue) Cancel(ctx context.Context, workspaceID, jobID string) error {
	return f.cancel(ctx, workspaceID, jobID)
}
func (f *fakeQueue) GetSchedule(ctx context.Context, workspaceID, path string) (*domain.Schedule, error) {
	panic("not used")
}
func (f *fakeQueue) CreateSchedule(ctx context.Context, in queue.CreateScheduleInput) (*domain.Schedule, error) {
	panic("not used")
}
func (f *fakeQueue) EditSchedule(ctx context.Context, in queue.EditScheduleInput) (*domain.Schedule, error) {
	panic("not used")
}
func (f *fakeQueue) SetEnabled(ctx context.Context, workspaceID, path string, enabled bool, editedBy string) (*domain.Schedule, error) {
	panic("not used")
}
func (f *fakeQueue) DeleteSchedule(ctx context.Context, workspaceID, path string) error {
	panic("not used")
}
func (f *fakeQueue) ListSchedules(ctx context.Context, workspaceID, afterPath string, limit int) ([]*domain.Schedule, error) {
	panic("not used")
}
func (f *fakeQueue) PushScheduled(ctx context.Context, workspaceID, path string) error {
	panic("not used")
}
func (f *fakeQueue) ListAllEnabled(ctx context.Context) ([]*domain.Schedule, error) {
	panic("not used")
}

var _ queue.API = (*fakeQueue)(nil)

func newJobTestEngine(q *fakeQueue) *gin.Engine {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	h := handler.NewJobHandler(q, logger)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", "user-1")
		c.Set("workspaceID", "ws-1")
		c.Next()
	})
	r.POST("/jobs", h.Push)
	r.POST("/jobs/:id/cancel", h.Cancel)
	return r
}

func TestPush_InvalidJSON_Returns400(t *testing.T) {
	q := &fakeQueue{}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(`{bad json}`))
	req.Header.Set("Content-Type", "application/json")
	newJobTestEngine(q).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestPush_MissingOwnerPath_Returns400(t *testing.T) {
	q := &fakeQueue{}
	w := httptest.NewRecorder()
	body := `{"kind":"script_hash","script_hash":"abc","script_path":"f/a/b"}`
	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	newJobTestEngine(q).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestPush_ArgsNotAMapping_Returns400WithInvalidArgsMessage(t *testing.T) {
	q := &fakeQueue{
		push: func(context.Context, store.DBTX, queue.PushInput) (string, error) {
			t.Fatal("queue.Push should not be reached when args is not a mapping")
			return "", nil
		},
	}
	w := httptest.NewRecorder()
	body := `{"kind":"script_hash","script_hash":"abc","script_path":"f/a/b","owner_path":"f/a","args":[1,2,3]}`
	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	newJobTestEngine(q).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), domain.ErrInvalidArgs.Error()) {
		t.Errorf("body = %q, want it to contain %q", w.Body.String(), domain.ErrInvalidArgs.Error())
	}
}

func TestPush_Success_Returns201WithJobID(t *testing.T) {
	var gotInput queue.PushInput
	q := &fakeQueue{
		push: func(_ context.Context, tx store.DBTX, in queue.PushInput) (string, error) {
			if tx != nil {
				t.Errorf("expected handler to pass a nil tx, got non-nil")
			}
			gotInput = in
			return "job-123", nil
		},
	}
	w := httptest.NewRecorder()
	body := `{"kind":"script_hash","script_hash":"abc","script_path":"f/a/b","owner_path":"f/a"}`
	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	newJobTestEngine(q).ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
	if !strings.Contains(w.Body.String(), "job-123") {
		t.Errorf("body %q does not contain job id", w.Body.String())
	}
	if gotInput.WorkspaceID != "ws-1" {
		t.Errorf("workspace id = %q, want ws-1", gotInput.WorkspaceID)
	}
	if gotInput.CreatedBy != "user-1" {
		t.Errorf("created by = %q, want user-1", gotInput.CreatedBy)
	}
}

func TestPush_QueueError_Returns500(t *testing.T) {
	q := &fakeQueue{
		push: func(_ context.Context, _ store.DBTX, _ queue.PushInput) (string, error) {
			return "", errors.New("db down")
		},
	}
	w := httptest.NewRecorder()
	body := `{"kind":"flow","script_path":"f/a/b","owner_path":"f/a"}`
	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	newJobTestEngine(q).ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestCancel_NotFound_Returns404(t *testing.T) {
	q := &fakeQueue{
		cancel: func(_ context.Context, _, _ string) error {
			return domain.ErrJobNotFound
		},
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/jobs/job-1/cancel", nil)
	newJobTestEngine(q).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestCancel_Success_Returns204(t *testing.T) {
	var gotWorkspace, gotJobID string
	q := &fakeQueue{
		cancel: func(_ context.Context, workspaceID, jobID string) error {
			gotWorkspace, gotJobID = workspaceID, jobID
			return nil
		},
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/jobs/job-1/cancel", nil)
	newJobTestEngine(q).ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if gotWorkspace != "ws-1" || gotJobID != "job-1" {
		t.Errorf("cancel called with (%q, %q), want (ws-1, job-1)", gotWorkspace, gotJobID)
	}
}
