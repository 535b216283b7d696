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
)

// fakeScheduleQueue implements queue.API, routing only the schedule
// operations the schedule handler uses; job operations panic.
type fakeScheduleQueue struct {
	fakeQueue
	getSchedule    func(ctx context.Context, workspaceID, path string) (*domain.Schedule, error)
	createSchedule func(ctx context.Context, in queue.CreateScheduleInput) (*domain.Schedule, error)
	editSchedule   func(ctx context.Context, in queue.EditScheduleInput) (*domain.Schedule, error)
	setEnabled     func(ctx context.Context, workspaceID, path string, enabled bool, editedBy string) (*domain.Schedule, error)
	deleteSchedule func(ctx context.Context, workspaceID, path string) error
	listSchedules  func(ctx context.Context, workspaceID, afterPath string, limit int) ([]*domain.Schedule, error)
}

func (f *fakeScheduleQueue) GetSchedule(ctx context.Context, workspaceID, path string) (*domain.Schedule, error) {
	return f.getSchedule(ctx, workspaceID, path)
}
func (f *fakeScheduleQueue) CreateSchedule(ctx context.Context, in queue.CreateScheduleInput) (*domain.Schedule, error) {
	return f.createSchedule(ctx, in)
}
func (f *fakeScheduleQueue) EditSchedule(ctx context.Context, in queue.EditScheduleInput) (*domain.Schedule, error) {
	return f.editSchedule(ctx, in)
}
func (f *fakeScheduleQueue) SetEnabled(ctx context.Context, workspaceID, path string, enabled bool, editedBy string) (*domain.Schedule, error) {
	return f.setEnabled(ctx, workspaceID, path, enabled, editedBy)
}
func (f *fakeScheduleQueue) DeleteSchedule(ctx context.Context, workspaceID, path string) error {
	return f.deleteSchedule(ctx, workspaceID, path)
}
func (f *fakeScheduleQueue) ListSchedules(ctx context.Context, workspaceID, afterPath string, limit int) ([]*domain.Schedule, error) {
	return f.listSchedules(ctx, workspaceID, afterPath, limit)
}

var _ queue.API = (*fakeScheduleQueue)(nil)

func newScheduleTestEngine(q *fakeScheduleQueue) *gin.Engine {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	h := handler.NewScheduleHandler(q, logger)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", "user-1")
		c.Set("workspaceID", "ws-1")
		c.Next()
	})
	r.POST("/schedules", h.Create)
	r.POST("/schedules/preview", h.Preview)
	r.GET("/schedules", h.List)
	r.GET("/schedules/*path", h.Get)
	r.PUT("/schedules/*path", h.Edit)
	r.PATCH("/schedules/enabled/*path", h.SetEnabled)
	r.DELETE("/schedules/*path", h.Delete)
	return r
}

func TestScheduleCreate_NameConflict_Returns409(t *testing.T) {
	q := &fakeScheduleQueue{
		createSchedule: func(_ context.Context, _ queue.CreateScheduleInput) (*domain.Schedule, error) {
			return nil, domain.ErrScheduleNameConflict
		},
	}
	w := httptest.NewRecorder()
	body := `{"path":"f/a/b","schedule":"0 0 * * * *","script_path":"f/a/script"}`
	req := httptest.NewRequest(http.MethodPost, "/schedules", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	newScheduleTestEngine(q).ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestScheduleCreate_InvalidCron_Returns400(t *testing.T) {
	q := &fakeScheduleQueue{
		createSchedule: func(_ context.Context, _ queue.CreateScheduleInput) (*domain.Schedule, error) {
			return nil, domain.ErrInvalidCronExpr
		},
	}
	w := httptest.NewRecorder()
	body := `{"path":"f/a/b","schedule":"not a cron","script_path":"f/a/script"}`
	req := httptest.NewRequest(http.MethodPost, "/schedules", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	newScheduleTestEngine(q).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestScheduleCreate_Success_Returns201(t *testing.T) {
	q := &fakeScheduleQueue{
		createSchedule: func(_ context.Context, in queue.CreateScheduleInput) (*domain.Schedule, error) {
			return &domain.Schedule{
				WorkspaceID: in.WorkspaceID,
				Path:        in.Path,
				Schedule:    in.Schedule,
				Enabled:     true,
				ScriptPath:  in.ScriptPath,
			}, nil
		},
	}
	w := httptest.NewRecorder()
	body := `{"path":"f/a/b","schedule":"0 0 * * * *","script_path":"f/a/script"}`
	req := httptest.NewRequest(http.MethodPost, "/schedules", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	newScheduleTestEngine(q).ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"path":"f/a/b"`) {
		t.Errorf("body %q does not echo path", w.Body.String())
	}
}

func TestScheduleGet_NotFound_Returns404(t *testing.T) {
	q := &fakeScheduleQueue{
		getSchedule: func(_ context.Context, _, _ string) (*domain.Schedule, error) {
			return nil, domain.ErrScheduleNotFound
		},
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/schedules/f/a/b", nil)
	newScheduleTestEngine(q).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestScheduleGet_Success_ReturnsFullPath(t *testing.T) {
	var gotPath string
	q := &fakeScheduleQueue{
		getSchedule: func(_ context.Context, _, path string) (*domain.Schedule, error) {
			gotPath = path
			return &domain.Schedule{Path: path}, nil
		},
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/schedules/f/a/b", nil)
	newScheduleTestEngine(q).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if gotPath != "f/a/b" {
		t.Errorf("path = %q, want f/a/b (leading slash must be stripped)", gotPath)
	}
}

func TestScheduleSetEnabled_Success_Returns200(t *testing.T) {
	var gotEnabled bool
	q := &fakeScheduleQueue{
		setEnabled: func(_ context.Context, _, path string, enabled bool, _ string) (*domain.Schedule, error) {
			gotEnabled = enabled
			return &domain.Schedule{Path: path, Enabled: enabled}, nil
		},
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/schedules/enabled/f/a/b", strings.NewReader(`{"enabled":false}`))
	req.Header.Set("Content-Type", "application/json")
	newScheduleTestEngine(q).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if gotEnabled {
		t.Errorf("enabled = true, want false")
	}
}

func TestScheduleDelete_Success_Returns204(t *testing.T) {
	q := &fakeScheduleQueue{
		deleteSchedule: func(_ context.Context, _, _ string) error { return nil },
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/schedules/f/a/b", nil)
	newScheduleTestEngine(q).ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
}

func TestScheduleList_StoreError_Returns500(t *testing.T) {
	q := &fakeScheduleQueue{
		listSchedules: func(_ context.Context, _, _ string, _ int) ([]*domain.Schedule, error) {
			return nil, errors.New("db down")
		},
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/schedules", nil)
	newScheduleTestEngine(q).ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestPreview_InvalidCron_Returns400(t *testing.T) {
	q := &fakeScheduleQueue{}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/schedules/preview", strings.NewReader(`{"schedule":"garbage"}`))
	req.Header.Set("Content-Type", "application/json")
	newScheduleTestEngine(q).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestPreview_Valid_Returns10Occurrences(t *testing.T) {
	q := &fakeScheduleQueue{}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/schedules/preview", strings.NewReader(`{"schedule":"0 0 * * * *"}`))
	req.Header.Set("Content-Type", "application/json")
	newScheduleTestEngine(q).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "occurrences") {
		t.Errorf("body %q does not contain occurrences", w.Body.String())
	}
}
