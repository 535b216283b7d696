// Package auth implements magic-link sign-in and JWT issuance for the
// HTTP surface: an HTTP API with bearer-token auth needs somewhere to
// resolve a caller's identity before trusting a workspace-scoped request.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/windmillcore/jobcore/internal/domain"
	"github.com/windmillcore/jobcore/internal/email"
	"github.com/windmillcore/jobcore/internal/store"
)

const (
	defaultTokenTTL = 15 * time.Minute
	defaultJWTTTL   = 24 * time.Hour
)

type Service struct {
	users         store.UserStore
	db            store.DBTX
	email         email.Sender
	jwtKey        []byte
	tokenTTL      time.Duration
	jwtTTL        time.Duration
	magicLinkBase string
}

func New(users store.UserStore, db store.DBTX, emailSender email.Sender, jwtKey []byte, magicLinkBase string) *Service {
	return &Service{
		users:         users,
		db:            db,
		email:         emailSender,
		jwtKey:        jwtKey,
		tokenTTL:      defaultTokenTTL,
		jwtTTL:        defaultJWTTTL,
		magicLinkBase: magicLinkBase,
	}
}

// RequestMagicLink finds or creates the user scoped to workspaceID,
// generates a single-use token, stores its hash, and emails the link.
func (s *Service) RequestMagicLink(ctx context.Context, emailAddr, workspaceID string) error {
	user, err := s.users.FindOrCreate(ctx, s.db, emailAddr, workspaceID)
	if err != nil {
		return fmt.Errorf("find or create user: %w", err)
	}

	raw := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return fmt.Errorf("generate token: %w", err)
	}
	rawToken := hex.EncodeToString(raw)
	tokenHash := fmt.Sprintf("%x", sha256.Sum256([]byte(rawToken)))

	expiresAt := time.Now().Add(s.tokenTTL)
	if err := s.users.CreateMagicToken(ctx, s.db, uuid.NewString(), user.ID, tokenHash, expiresAt); err != nil {
		return fmt.Errorf("store magic token: %w", err)
	}

	link := s.magicLinkBase + "/auth/verify?token=" + rawToken
	subject := "Your sign-in link"
	body := fmt.Sprintf(
		`<p>Click the link below to sign in (expires in 15 minutes):</p><p><a href="%s">%s</a></p>`,
		link, link,
	)
	if err := s.email.Send(ctx, emailAddr, subject, body); err != nil {
		return fmt.Errorf("send magic link: %w", err)
	}
	return nil
}

// VerifyMagicLink claims the token and returns a signed JWT carrying
// the user's identity and workspace.
func (s *Service) VerifyMagicLink(ctx context.Context, rawToken string) (string, error) {
	tokenHash := fmt.Sprintf("%x", sha256.Sum256([]byte(rawToken)))

	mt, err := s.users.ClaimMagicToken(ctx, s.db, tokenHash)
	if err != nil {
		return "", domain.ErrTokenInvalid
	}

	user, err := s.users.FindByID(ctx, s.db, mt.UserID)
	if err != nil {
		return "", fmt.Errorf("find user: %w", err)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":          user.ID,
		"email":        user.Email,
		"workspace_id": user.WorkspaceID,
		"iat":          now.Unix(),
		"exp":          now.Add(s.jwtTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(s.jwtKey)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}
