package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/account-service/internal/domain"
)

// Token verification failures. Expired is distinct from malformed so the
// caller can tell "re-authenticate" apart from "garbage input"; both map
// to 401 at the boundary.
var (
	ErrTokenMalformed = errors.New("token malformed or signature invalid")
	ErrTokenExpired   = errors.New("token expired")
)

// TokenCodec issues and verifies signed HS256 session tokens. The secret
// is fixed at construction and safe for concurrent use. The clock is
// injectable so expiry behavior is deterministic under test.
type TokenCodec struct {
	secret []byte
	clock  func() time.Time
}

// NewTokenCodec builds a codec using the wall clock.
func NewTokenCodec(secret string) *TokenCodec {
	return NewTokenCodecWithClock(secret, time.Now)
}

// NewTokenCodecWithClock builds a codec with an explicit time source.
func NewTokenCodecWithClock(secret string, clock func() time.Time) *TokenCodec {
	if clock == nil {
		clock = time.Now
	}
	return &TokenCodec{secret: []byte(secret), clock: clock}
}

// Claims describes the JWT payload.
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Identity returns the subject embedded in the claims.
func (c *Claims) Identity() domain.Identity {
	return domain.Identity{SubjectID: c.Subject, Role: c.Role}
}

// Issue signs a session token for the identity. A ttl of zero is legal
// and produces a token that is already expired.
func (tc *TokenCodec) Issue(identity domain.Identity, ttl time.Duration) (string, time.Time, error) {
	now := tc.clock()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		Role: identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.SubjectID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tc.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify validates the signature before trusting any claim, then checks
// expiry against the codec clock. Returns ErrTokenExpired only for a
// correctly signed token whose lifetime has passed; every other failure
// is ErrTokenMalformed.
func (tc *TokenCodec) Verify(raw string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tc.secret, nil
	}, jwt.WithTimeFunc(tc.clock), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if !claims.Role.Valid() {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}
