package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/domain"
	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

const (
	identityKey = "auth_identity"
	rawTokenKey = "auth_raw_token"
)

// Middleware authenticates bearer tokens on protected routes.
type Middleware struct {
	guard *Guard
}

// NewMiddleware constructs middleware around the guard.
func NewMiddleware(guard *Guard) *Middleware {
	return &Middleware{guard: guard}
}

// Handle extracts the bearer token, runs Authenticate to completion and
// stores the resulting Identity on the request. Tokens are
// self-contained; no account lookup happens here.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	raw, err := bearerToken(c)
	if err != nil {
		return err
	}

	identity, err := m.guard.Authenticate(c.UserContext(), raw)
	if err != nil {
		return err
	}

	c.Locals(identityKey, identity)
	c.Locals(rawTokenKey, raw)
	return c.Next()
}

func bearerToken(c *fiber.Ctx) (string, error) {
	header := c.Get("Authorization")
	if header == "" {
		return "", apperrors.NewUnauthorized("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", apperrors.NewUnauthorized("invalid authorization header")
	}
	return parts[1], nil
}

// IdentityFromContext retrieves the authenticated identity.
func IdentityFromContext(c *fiber.Ctx) (domain.Identity, bool) {
	identity, ok := c.Locals(identityKey).(domain.Identity)
	if !ok || identity.IsZero() {
		return domain.Identity{}, false
	}
	return identity, true
}

// RawTokenFromContext returns the bearer token the request presented.
func RawTokenFromContext(c *fiber.Ctx) (string, bool) {
	raw, ok := c.Locals(rawTokenKey).(string)
	return raw, ok && raw != ""
}
