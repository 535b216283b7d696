package domain

import "errors"

// Error taxonomy from the job-core error handling design: BadConfig is
// fatal at startup, BadRequest/NotFound/Execution are recovered at the
// caller, Store/Internal are logged with context and the operation fails.
var (
	ErrBadConfig  = errors.New("bad config")
	ErrBadRequest = errors.New("bad request")
	ErrNotFound   = errors.New("not found")
	ErrExecution  = errors.New("execution error")
	ErrStore      = errors.New("store error")
	ErrInternal   = errors.New("internal error")

	ErrJobNotFound      = errors.New("job not found")
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrTokenInvalid     = errors.New("token is invalid or expired")
	ErrScriptNotFound   = errors.New("no published script for this path")

	ErrInvalidArgs     = errors.New("args of scripts needs to be dict")
	ErrInvalidCronExpr = errors.New("invalid cron expression")
	ErrNoFutureOccurrence = errors.New("cron expression has no future occurrence")

	ErrScheduleAlreadyPaused = errors.New("schedule is already disabled")
	ErrScheduleNotPaused     = errors.New("schedule is already enabled")
	ErrScheduleNameConflict  = errors.New("schedule with this path already exists")
)
