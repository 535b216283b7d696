package domain

import "time"

// Kind discriminates the payload a Job carries. Go has no tagged union,
// so the fields for every kind live on Job and only the ones matching
// Kind are populated — keeps Job a flat
// struct rather than an interface per row.
type Kind string

const (
	KindScriptHash   Kind = "script_hash"
	KindFlow         Kind = "flow"
	KindPreview      Kind = "preview"
	KindDependencies Kind = "dependencies"
)

// DefaultMaxRetries is the retry-policy attribute of Kind: script and
// flow runs are real production work worth a few automatic retries on
// failure, while preview and dependency-resolution jobs are one-shot —
// retrying a preview would just replay the same test run.
func (k Kind) DefaultMaxRetries() int {
	switch k {
	case KindScriptHash, KindFlow:
		return 3
	default:
		return 0
	}
}

// Job is a queue row: a unit of work awaiting or currently undergoing
// execution, scoped to a workspace (tenant).
type Job struct {
	ID          string
	WorkspaceID string
	Kind        Kind

	// ScriptHash kind
	ScriptHash string
	ScriptPath string

	// Flow kind reuses ScriptPath as the flow path.

	// Preview kind
	PreviewScriptBody string
	PreviewLanguage   string

	// Dependencies kind
	DependenciesSpec map[string]any

	Args map[string]any

	CreatedBy string
	OwnerPath string

	ScheduledFor time.Time
	SchedulePath *string
	ParentJob    *string

	Running   bool
	Canceled  bool
	LastPing  *time.Time
	StartedAt *time.Time

	RestartCount int

	// RetriesRemaining is Kind's retry-policy budget, decremented each
	// time Complete sees this job (or one of its replacements) finish
	// with success=false — distinct from RestartCount, which counts
	// zombie reclaims rather than execution failures.
	RetriesRemaining int

	CreatedAt time.Time
}

// CompletedJob is the append-only archive row a Job becomes once it
// leaves the queue, whether by success, failure, or permanent zombie.
type CompletedJob struct {
	Job

	Success     bool
	Result      map[string]any
	DurationMS  int64
	CompletedAt time.Time
}

// WorkerPing is the heartbeat row a worker upserts on every beat.
type WorkerPing struct {
	WorkerName string
	LastPing   time.Time
	IP         string
	CustomTags []string
}
