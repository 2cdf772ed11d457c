package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/repository"
	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

// Authenticator orchestrates login: resolve the account by email, verify
// the secret, mint a session token.
type Authenticator struct {
	users repository.UserRepository
	codec *TokenCodec
	ttl   time.Duration
}

// NewAuthenticator builds the authenticator with the configured token TTL.
func NewAuthenticator(users repository.UserRepository, codec *TokenCodec, ttl time.Duration) *Authenticator {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Authenticator{users: users, codec: codec, ttl: ttl}
}

// LoginResult carries the minted token and the redacted profile.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Profile   domain.Profile
}

// Login authenticates an email/secret pair. An unknown email and a wrong
// secret both fail Forbidden so a caller cannot probe which accounts
// exist. Empty inputs fail before the store is touched.
func (a *Authenticator) Login(ctx context.Context, email, secret string) (*LoginResult, error) {
	if email == "" || secret == "" {
		return nil, apperrors.NewValidationError("email and password required", nil)
	}

	user, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewForbidden("invalid credentials")
		}
		return nil, apperrors.NewInternalError(err)
	}

	if !VerifyPassword(user.PasswordHash, secret) {
		return nil, apperrors.NewForbidden("invalid credentials")
	}

	return a.issue(user)
}

// TokenFor mints a session token for an already-created account, used by
// signup to log the new user straight in.
func (a *Authenticator) TokenFor(user *domain.User) (*LoginResult, error) {
	return a.issue(user)
}

func (a *Authenticator) issue(user *domain.User) (*LoginResult, error) {
	identity := domain.Identity{SubjectID: user.ID, Role: user.Role}
	token, expiresAt, err := a.codec.Issue(identity, a.ttl)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Profile: user.Profile()}, nil
}
