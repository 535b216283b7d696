package store

import (
	"context"
	"time"

	"github.com/windmillcore/jobcore/internal/domain"
)

// UserStore backs magic-link auth: identity resolution and single-use
// token issuance/claim.
type UserStore interface {
	FindOrCreate(ctx context.Context, db DBTX, email, workspaceID string) (*domain.User, error)
	FindByID(ctx context.Context, db DBTX, id string) (*domain.User, error)
	CreateMagicToken(ctx context.Context, db DBTX, id, userID, tokenHash string, expiresAt time.Time) error
	// ClaimMagicToken atomically marks a token used and returns it.
	// domain.ErrTokenInvalid covers missing, already-used, and expired
	// tokens alike — the caller never needs to distinguish them.
	ClaimMagicToken(ctx context.Context, db DBTX, tokenHash string) (*domain.MagicToken, error)
}
