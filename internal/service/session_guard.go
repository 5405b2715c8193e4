package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"taskboard/api/internal/apperr"
	"taskboard/api/internal/models"
	"taskboard/api/internal/repository"
	"taskboard/api/internal/security"
)

// SessionGuard turns a bearer token into the acting user. Invalid tokens, wrong purpose,
// missing users and disabled users all fail with ErrUnauthenticated.
type SessionGuard struct {
	tokens *security.TokenService
	users  UserStore
	log    zerolog.Logger
}

func NewSessionGuard(tokens *security.TokenService, users UserStore, log zerolog.Logger) *SessionGuard {
	return &SessionGuard{tokens: tokens, users: users, log: log}
}

// Resolve accepts only access tokens.
func (g *SessionGuard) Resolve(ctx context.Context, token string) (models.User, error) {
	return g.resolve(ctx, token, security.PurposeAccess)
}

func (g *SessionGuard) resolve(ctx context.Context, token string, purpose security.TokenPurpose) (models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.User{}, ErrUnauthenticated
	}

	userID, err := g.tokens.VerifyPurpose(token, purpose)
	if err != nil {
		return models.User{}, ErrUnauthenticated
	}

	user, err := g.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, ErrUnauthenticated
		}
		g.log.Error().Err(err).Int64("user_id", userID).Msg("resolve session user failed")
		return models.User{}, apperr.Internal(err, "resolve session user")
	}
	if !user.Status.IsActive() {
		return models.User{}, ErrUnauthenticated
	}

	return user, nil
}
