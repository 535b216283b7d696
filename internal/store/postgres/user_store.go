package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/windmillcore/jobcore/internal/domain"
	"github.com/windmillcore/jobcore/internal/store"
)

type UserStore struct{}

func NewUserStore() *UserStore {
	return &UserStore{}
}

func (s *UserStore) FindOrCreate(ctx context.Context, db store.DBTX, email, workspaceID string) (*domain.User, error) {
	row := db.QueryRow(ctx, `
		INSERT INTO users (id, email, workspace_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET updated_at = now()
		RETURNING id, email, workspace_id, created_at, updated_at`,
		uuid.NewString(), email, workspaceID)
	return scanUser(row)
}

func (s *UserStore) FindByID(ctx context.Context, db store.DBTX, id string) (*domain.User, error) {
	row := db.QueryRow(ctx, `SELECT id, email, workspace_id, created_at, updated_at FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *UserStore) CreateMagicToken(ctx context.Context, db store.DBTX, id, userID, tokenHash string, expiresAt time.Time) error {
	_, err := db.Exec(ctx,
		`INSERT INTO magic_tokens (id, user_id, token_hash, expires_at) VALUES ($1, $2, $3, $4)`,
		id, userID, tokenHash, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("create magic token: %w", err)
	}
	return nil
}

func (s *UserStore) ClaimMagicToken(ctx context.Context, db store.DBTX, tokenHash string) (*domain.MagicToken, error) {
	row := db.QueryRow(ctx, `
		UPDATE magic_tokens
		SET used_at = now()
		WHERE token_hash = $1 AND used_at IS NULL AND expires_at > now()
		RETURNING id, user_id, token_hash, expires_at, used_at, created_at`,
		tokenHash)
	return scanMagicToken(row)
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.WorkspaceID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func scanMagicToken(row rowScanner) (*domain.MagicToken, error) {
	var t domain.MagicToken
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.UsedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTokenInvalid
		}
		return nil, fmt.Errorf("scan magic token: %w", err)
	}
	return &t, nil
}
