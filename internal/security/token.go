package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taskboard/api/internal/ids"
)

type TokenPurpose string

const (
	PurposeAccess  TokenPurpose = "access"
	PurposeRefresh TokenPurpose = "refresh"
)

// ErrInvalidToken covers every parse, signature, expiry, subject and purpose failure.
var ErrInvalidToken = errors.New("invalid token")

var signingMethod = jwt.SigningMethodHS256

type TokenClaims struct {
	Type TokenPurpose `json:"type"`
	jwt.RegisteredClaims
}

// Subject is what a verified token asserts.
type Subject struct {
	UserID  int64
	Purpose TokenPurpose
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// TokenService issues and verifies stateless session tokens. Validity depends only on the
// signature and the expiry; there is no server-side revocation.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenService(secret string, accessTTL, refreshTTL time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, fmt.Errorf("token ttl must be positive")
	}
	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// WithClock replaces the time source used for issuing and validating tokens.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	clone := *s
	clone.now = now
	return &clone
}

func (s *TokenService) AccessTTL() time.Duration {
	return s.accessTTL
}

func (s *TokenService) IssueAccess(userID int64) (string, error) {
	return s.issue(userID, PurposeAccess, s.accessTTL)
}

func (s *TokenService) IssueRefresh(userID int64) (string, error) {
	return s.issue(userID, PurposeRefresh, s.refreshTTL)
}

func (s *TokenService) IssuePair(userID int64) (TokenPair, error) {
	access, err := s.IssueAccess(userID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.IssueRefresh(userID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    s.accessTTL,
	}, nil
}

func (s *TokenService) issue(userID int64, purpose TokenPurpose, ttl time.Duration) (string, error) {
	now := s.now()
	claims := TokenClaims{
		Type: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        ids.New(),
		},
	}

	token := jwt.NewWithClaims(signingMethod, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the asserted subject.
// Every failure is reported as ErrInvalidToken.
func (s *TokenService) Verify(tokenStr string) (Subject, error) {
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != signingMethod {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Subject{}, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Subject{}, ErrInvalidToken
	}
	if claims.Type != PurposeAccess && claims.Type != PurposeRefresh {
		return Subject{}, ErrInvalidToken
	}

	return Subject{UserID: userID, Purpose: claims.Type}, nil
}

// VerifyPurpose is Verify plus a check that the token was minted for the given purpose.
func (s *TokenService) VerifyPurpose(tokenStr string, purpose TokenPurpose) (int64, error) {
	subject, err := s.Verify(tokenStr)
	if err != nil {
		return 0, err
	}
	if subject.Purpose != purpose {
		return 0, ErrInvalidToken
	}
	return subject.UserID, nil
}
