package domain

import (
	"errors"
	"time"
)

var ErrUnauthorized = errors.New("unauthorized")

// User is a platform identity. WorkspaceID is the primary workspace a
// magic-link login resolves to; it becomes the workspace_id claim of the
// issued JWT, and the HTTP layer scopes every request to that claim.
type User struct {
	ID          string
	Email       string
	WorkspaceID string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type MagicToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}
