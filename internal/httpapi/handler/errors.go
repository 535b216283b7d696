package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/windmillcore/jobcore/internal/domain"
)

const (
	errInternalServer       = "Internal server error"
	errJobNotFound          = "Job not found"
	errScheduleNotFound     = "Schedule not found"
	errScheduleNameConflict = "Schedule with this path already exists"
	errInvalidCronExpr      = "Invalid cron expression"
	errNoFutureOccurrence   = "Cron expression has no future occurrence"
	errTokenInvalid         = "Token is invalid or expired"
)

// writeBindErr responds 400 to a ShouldBindJSON failure, naming the
// args-shape case explicitly: args must decode into a JSON object, the
// one field-type mismatch a caller is expected to run into routinely
// (the rest are caught by required/oneof binding tags).
func writeBindErr(c *gin.Context, err error) {
	var ute *json.UnmarshalTypeError
	if errors.As(err, &ute) && ute.Field == "args" {
		c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrInvalidArgs.Error()})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
