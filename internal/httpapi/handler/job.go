package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/windmillcore/jobcore/internal/domain"
	"github.com/windmillcore/jobcore/internal/queue"
)

type JobHandler struct {
	queue  queue.API
	logger *slog.Logger
}

func NewJobHandler(q queue.API, logger *slog.Logger) *JobHandler {
	return &JobHandler{queue: q, logger: logger.With("component", "job_handler")}
}

type pushJobRequest struct {
	Kind domain.Kind `json:"kind" binding:"required,oneof=script_hash flow preview dependencies"`

	ScriptHash        string         `json:"script_hash"`
	ScriptPath        string         `json:"script_path"`
	PreviewScriptBody string         `json:"preview_script_body"`
	PreviewLanguage   string         `json:"preview_language"`
	DependenciesSpec  map[string]any `json:"dependencies_spec"`

	Args map[string]any `json:"args"`

	OwnerPath    string     `json:"owner_path" binding:"required"`
	ScheduledFor *time.Time `json:"scheduled_for"`
}

type pushJobResponse struct {
	JobID string `json:"job_id"`
}

// POST /jobs
func (h *JobHandler) Push(c *gin.Context) {
	var req pushJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindErr(c, err)
		return
	}

	scheduledFor := time.Now().UTC()
	if req.ScheduledFor != nil {
		scheduledFor = req.ScheduledFor.UTC()
	}

	jobID, err := h.queue.Push(c.Request.Context(), nil, queue.PushInput{
		WorkspaceID:       c.GetString("workspaceID"),
		Kind:              req.Kind,
		ScriptHash:        req.ScriptHash,
		ScriptPath:        req.ScriptPath,
		PreviewScriptBody: req.PreviewScriptBody,
		PreviewLanguage:   req.PreviewLanguage,
		DependenciesSpec:  req.DependenciesSpec,
		Args:              req.Args,
		CreatedBy:         c.GetString("userID"),
		OwnerPath:         req.OwnerPath,
		ScheduledFor:      scheduledFor,
	})
	if err != nil {
		h.logger.Error("push job", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.JSON(http.StatusCreated, pushJobResponse{JobID: jobID})
}

// POST /jobs/:id/cancel
func (h *JobHandler) Cancel(c *gin.Context) {
	jobID := c.Param("id")

	if err := h.queue.Cancel(c.Request.Context(), c.GetString("workspaceID"), jobID); err != nil {
		if err == domain.ErrJobNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": errJobNotFound})
			return
		}
		h.logger.Error("cancel job", "job_id", jobID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.Status(http.StatusNoContent)
}
