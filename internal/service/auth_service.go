package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"taskboard/api/internal/apperr"
	"taskboard/api/internal/models"
	"taskboard/api/internal/repository"
	"taskboard/api/internal/security"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 64
)

type AuthService struct {
	users   UserStore
	hasher  *security.PasswordHasher
	tokens  *security.TokenService
	guard   *SessionGuard
	metrics Recorder
	log     zerolog.Logger

	dummyOnce   sync.Once
	dummyDigest string
}

func NewAuthService(
	users UserStore,
	hasher *security.PasswordHasher,
	tokens *security.TokenService,
	guard *SessionGuard,
	metrics Recorder,
	log zerolog.Logger,
) *AuthService {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &AuthService{
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		guard:   guard,
		metrics: metrics,
		log:     log,
	}
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type LoginInput struct {
	Identifier string
	Password   string
}

type AuthResult struct {
	Tokens security.TokenPair
	User   models.User
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))

	if input.Username == "" || input.Email == "" || input.Password == "" {
		return AuthResult{}, validationError("username, email and password are required")
	}
	if n := utf8.RuneCountInString(input.Username); n < minUsernameLength || n > maxUsernameLength {
		return AuthResult{}, validationError("username must be 3 to 64 characters")
	}

	if err := s.users.CheckAvailable(ctx, input.Username, input.Email); err != nil {
		return AuthResult{}, s.registrationError(err)
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		s.metrics.AuthEvent("register", "error")
		return AuthResult{}, apperr.Internal(err, "hash password")
	}

	user, err := s.users.Create(ctx, models.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: passwordHash,
		Status:       models.UserStatusActive,
	})
	if err != nil {
		return AuthResult{}, s.registrationError(err)
	}

	tokens, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		s.metrics.AuthEvent("register", "error")
		return AuthResult{}, apperr.Internal(err, "issue tokens")
	}

	s.metrics.AuthEvent("register", "success")
	s.log.Info().Int64("user_id", user.ID).Msg("user registered")
	return AuthResult{Tokens: tokens, User: user}, nil
}

func (s *AuthService) registrationError(err error) error {
	switch {
	case errors.Is(err, repository.ErrUsernameTaken):
		s.metrics.AuthEvent("register", "username_taken")
		return ErrUsernameTaken
	case errors.Is(err, repository.ErrEmailTaken):
		s.metrics.AuthEvent("register", "email_taken")
		return ErrEmailTaken
	default:
		s.metrics.AuthEvent("register", "error")
		s.log.Error().Err(err).Msg("register user failed")
		return apperr.Internal(err, "register user")
	}
}

// Login fails with ErrInvalidCredentials whether the account is missing, disabled or the
// password is wrong.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	identifier := strings.TrimSpace(input.Identifier)
	if identifier == "" || input.Password == "" {
		return AuthResult{}, validationError("username_or_email and password are required")
	}

	user, err := s.users.FindByLogin(ctx, identifier)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			s.metrics.AuthEvent("login", "error")
			s.log.Error().Err(err).Msg("lookup login user failed")
			return AuthResult{}, apperr.Internal(err, "lookup user")
		}
		s.hasher.Verify(input.Password, s.dummy())
		s.metrics.AuthEvent("login", "invalid_credentials")
		return AuthResult{}, ErrInvalidCredentials
	}

	passwordOK := s.hasher.Verify(input.Password, user.PasswordHash)
	if !passwordOK || !user.Status.IsActive() {
		s.metrics.AuthEvent("login", "invalid_credentials")
		return AuthResult{}, ErrInvalidCredentials
	}

	tokens, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		s.metrics.AuthEvent("login", "error")
		return AuthResult{}, apperr.Internal(err, "issue tokens")
	}

	s.metrics.AuthEvent("login", "success")
	return AuthResult{Tokens: tokens, User: user}, nil
}

// Refresh mints a new pair from a refresh token. The presented refresh token stays valid
// until it expires.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (AuthResult, error) {
	user, err := s.guard.resolve(ctx, refreshToken, security.PurposeRefresh)
	if err != nil {
		s.metrics.AuthEvent("refresh", outcomeOf(err))
		return AuthResult{}, err
	}

	tokens, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		s.metrics.AuthEvent("refresh", "error")
		return AuthResult{}, apperr.Internal(err, "issue tokens")
	}

	s.metrics.AuthEvent("refresh", "success")
	return AuthResult{Tokens: tokens, User: user}, nil
}

// dummy returns a digest of the configured algorithm so that logins for unknown accounts
// cost the same as a wrong password.
func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		digest, err := s.hasher.Hash("taskboard-dummy-password")
		if err != nil {
			s.log.Warn().Err(err).Msg("dummy digest unavailable")
			return
		}
		s.dummyDigest = digest
	})
	return s.dummyDigest
}

func outcomeOf(err error) string {
	if typed, ok := apperr.As(err); ok {
		return typed.Code
	}
	return "error"
}
