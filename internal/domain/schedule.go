package domain

import "time"

// Schedule is a cron definition owned by a workspace. It spawns Jobs by
// being re-armed: on create, on enable, on edit, and on completion of the
// job it last fired, with the scheduler package's interval poll as a
// backstop for schedules whose re-arm was missed.
type Schedule struct {
	WorkspaceID string
	Path        string

	Schedule      string // six-field cron expression (seconds minutes hours dom month dow)
	OffsetMinutes int    // minutes west of UTC the expression is evaluated in

	Enabled bool

	ScriptPath string
	IsFlow     bool
	Args       map[string]any

	EditedBy string
	EditedAt time.Time
}
