package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/windmillcore/jobcore/internal/domain"
	"github.com/windmillcore/jobcore/internal/store"
)

type ScriptStore struct{}

func NewScriptStore() *ScriptStore {
	return &ScriptStore{}
}

func (s *ScriptStore) LatestHash(ctx context.Context, db store.DBTX, workspaceID, path string) (string, error) {
	var hash string
	err := db.QueryRow(ctx, `
		SELECT hash FROM script
		WHERE workspace_id = $1 AND path = $2
		ORDER BY created_at DESC
		LIMIT 1`, workspaceID, path,
	).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrScriptNotFound
		}
		return "", fmt.Errorf("latest script hash: %w", err)
	}
	return hash, nil
}
