// Package auth issues and serves access tokens for provisioned accounts.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"prato/internal/account"
	jwttoken "prato/internal/jwt_token"
	"prato/pkg/brdoc"
	dErrors "prato/pkg/domain-errors"
	"prato/pkg/platform/sentinel"
)

// UserFinder is the slice of the account store login needs.
type UserFinder interface {
	FindUserByUsername(ctx context.Context, username string) (*account.User, error)
}

// Service verifies credentials and issues tokens.
type Service struct {
	users    UserFinder
	tokens   *jwttoken.JWTService
	tokenTTL time.Duration
	logger   *slog.Logger
}

func NewService(users UserFinder, tokens *jwttoken.JWTService, tokenTTL time.Duration, logger *slog.Logger) *Service {
	return &Service{users: users, tokens: tokens, tokenTTL: tokenTTL, logger: logger}
}

// TokenResult is the successful login payload.
type TokenResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Login verifies a username/password pair and returns a signed token.
// Usernames are document numbers, so formatting punctuation is stripped
// before lookup. Unknown users and bad passwords are indistinguishable to
// the caller.
func (s *Service) Login(ctx context.Context, username, password string) (*TokenResult, error) {
	user, err := s.users.FindUserByUsername(ctx, brdoc.NormalizeDigits(username))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load user")
	}

	if !account.VerifyPassword(user.HashedPassword, password) {
		s.logger.WarnContext(ctx, "failed login attempt", "username", user.Username)
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	token, err := s.tokens.GenerateAccessToken(user.ID, user.Username, user.Role, s.tokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "sign token")
	}

	return &TokenResult{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.tokenTTL.Seconds()),
	}, nil
}
