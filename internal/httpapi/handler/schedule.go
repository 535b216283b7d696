package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/windmillcore/jobcore/internal/domain"
	"github.com/windmillcore/jobcore/internal/queue"
	"github.com/windmillcore/jobcore/internal/scheduler/cron"
)

const defaultListLimit = 50
const previewOccurrences = 10

// schedulePath strips the leading slash gin's wildcard route segment
// always includes.
func schedulePath(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("path"), "/")
}

type ScheduleHandler struct {
	queue  queue.API
	logger *slog.Logger
}

func NewScheduleHandler(q queue.API, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{queue: q, logger: logger.With("component", "schedule_handler")}
}

type createScheduleRequest struct {
	Path          string         `json:"path" binding:"required,max=1024"`
	Schedule      string         `json:"schedule" binding:"required"`
	OffsetMinutes int            `json:"offset_minutes"`
	ScriptPath    string         `json:"script_path" binding:"required"`
	IsFlow        bool           `json:"is_flow"`
	Args          map[string]any `json:"args"`
}

type editScheduleRequest struct {
	Schedule      string         `json:"schedule" binding:"required"`
	OffsetMinutes int            `json:"offset_minutes"`
	ScriptPath    string         `json:"script_path" binding:"required"`
	IsFlow        bool           `json:"is_flow"`
	Args          map[string]any `json:"args"`
}

type scheduleResponse struct {
	Path          string         `json:"path"`
	Schedule      string         `json:"schedule"`
	OffsetMinutes int            `json:"offset_minutes"`
	Enabled       bool           `json:"enabled"`
	ScriptPath    string         `json:"script_path"`
	IsFlow        bool           `json:"is_flow"`
	Args          map[string]any `json:"args,omitempty"`
	EditedBy      string         `json:"edited_by"`
	EditedAt      time.Time      `json:"edited_at"`
}

func toScheduleResponse(s *domain.Schedule) scheduleResponse {
	return scheduleResponse{
		Path:          s.Path,
		Schedule:      s.Schedule,
		OffsetMinutes: s.OffsetMinutes,
		Enabled:       s.Enabled,
		ScriptPath:    s.ScriptPath,
		IsFlow:        s.IsFlow,
		Args:          s.Args,
		EditedBy:      s.EditedBy,
		EditedAt:      s.EditedAt,
	}
}

// POST /schedules
func (h *ScheduleHandler) Create(c *gin.Context) {
	var req createScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindErr(c, err)
		return
	}

	s, err := h.queue.CreateSchedule(c.Request.Context(), queue.CreateScheduleInput{
		WorkspaceID:   c.GetString("workspaceID"),
		Path:          req.Path,
		Schedule:      req.Schedule,
		OffsetMinutes: req.OffsetMinutes,
		ScriptPath:    req.ScriptPath,
		IsFlow:        req.IsFlow,
		Args:          req.Args,
		EditedBy:      c.GetString("userID"),
	})
	if err != nil {
		h.writeScheduleErr(c, "create schedule", req.Path, err)
		return
	}

	c.JSON(http.StatusCreated, toScheduleResponse(s))
}

// PUT /schedules/:path
func (h *ScheduleHandler) Edit(c *gin.Context) {
	path := schedulePath(c)

	var req editScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindErr(c, err)
		return
	}

	s, err := h.queue.EditSchedule(c.Request.Context(), queue.EditScheduleInput{
		WorkspaceID:   c.GetString("workspaceID"),
		Path:          path,
		Schedule:      req.Schedule,
		OffsetMinutes: req.OffsetMinutes,
		ScriptPath:    req.ScriptPath,
		IsFlow:        req.IsFlow,
		Args:          req.Args,
		EditedBy:      c.GetString("userID"),
	})
	if err != nil {
		h.writeScheduleErr(c, "edit schedule", path, err)
		return
	}

	c.JSON(http.StatusOK, toScheduleResponse(s))
}

// GET /schedules/:path
func (h *ScheduleHandler) Get(c *gin.Context) {
	path := schedulePath(c)

	s, err := h.queue.GetSchedule(c.Request.Context(), c.GetString("workspaceID"), path)
	if err != nil {
		h.writeScheduleErr(c, "get schedule", path, err)
		return
	}

	c.JSON(http.StatusOK, toScheduleResponse(s))
}

// GET /schedules?after=<path>&limit=<n>
func (h *ScheduleHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 {
		limit = defaultListLimit
	}

	scheds, err := h.queue.ListSchedules(c.Request.Context(), c.GetString("workspaceID"), c.Query("after"), limit)
	if err != nil {
		h.logger.Error("list schedules", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	items := make([]scheduleResponse, len(scheds))
	for i, s := range scheds {
		items[i] = toScheduleResponse(s)
	}
	c.JSON(http.StatusOK, gin.H{"schedules": items})
}

type setEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// PATCH /schedules/enabled/*path
func (h *ScheduleHandler) SetEnabled(c *gin.Context) {
	path := schedulePath(c)

	var req setEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s, err := h.queue.SetEnabled(c.Request.Context(), c.GetString("workspaceID"), path, req.Enabled, c.GetString("userID"))
	if err != nil {
		h.writeScheduleErr(c, "set schedule enabled", path, err)
		return
	}

	c.JSON(http.StatusOK, toScheduleResponse(s))
}

// DELETE /schedules/:path
func (h *ScheduleHandler) Delete(c *gin.Context) {
	path := schedulePath(c)

	if err := h.queue.DeleteSchedule(c.Request.Context(), c.GetString("workspaceID"), path); err != nil {
		h.writeScheduleErr(c, "delete schedule", path, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type previewRequest struct {
	Schedule      string `json:"schedule" binding:"required"`
	OffsetMinutes int    `json:"offset_minutes"`
}

// POST /schedules/preview
// Returns the next 10 occurrences of a cron expression without
// persisting anything — lets a caller validate a schedule before
// creating it.
func (h *ScheduleHandler) Preview(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	occurrences, err := cron.Preview(req.Schedule, req.OffsetMinutes, time.Now(), previewOccurrences)
	if err != nil {
		// cron.Preview only fails when the expression does not parse.
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidCronExpr})
		return
	}
	if len(occurrences) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": errNoFutureOccurrence})
		return
	}

	c.JSON(http.StatusOK, gin.H{"occurrences": occurrences})
}

func (h *ScheduleHandler) writeScheduleErr(c *gin.Context, op, path string, err error) {
	switch {
	case errors.Is(err, domain.ErrScheduleNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": errScheduleNotFound})
	case errors.Is(err, domain.ErrScheduleNameConflict):
		c.JSON(http.StatusConflict, gin.H{"error": errScheduleNameConflict})
	case errors.Is(err, domain.ErrInvalidCronExpr):
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidCronExpr})
	case errors.Is(err, domain.ErrNoFutureOccurrence):
		c.JSON(http.StatusBadRequest, gin.H{"error": errNoFutureOccurrence})
	default:
		h.logger.Error(op, "schedule_path", path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
	}
}
