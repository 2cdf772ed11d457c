package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spec-kit/account-service/internal/domain"
	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

// Capability names an action subject to the authorization policy.
type Capability string

const (
	CapabilityListAllUsers Capability = "list-all-users"
	CapabilityReadUser     Capability = "read-user"
	CapabilityCreateUser   Capability = "create-user"
	CapabilityUpdateUser   Capability = "update-user"
	CapabilityDeleteUser   Capability = "delete-user"
)

// Decision is the outcome of evaluating the policy for an (identity,
// capability, target) triple. Status is the HTTP hint for a denial.
type Decision struct {
	Allowed bool
	Reason  string
	Status  int
}

func allow() Decision {
	return Decision{Allowed: true, Status: http.StatusOK}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason, Status: http.StatusForbidden}
}

// Err converts a denial into the error taxonomy; nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return apperrors.NewForbidden(d.Reason)
}

// Guard gates protected operations. Authenticate must complete with a
// concrete Identity before Authorize is consulted; Authorize itself is a
// pure function of its arguments and performs no lookups.
type Guard struct {
	codec   *TokenCodec
	revoked RevocationStore
}

// NewGuard builds a guard. The revocation store may be nil, in which
// case tokens die only by expiry.
func NewGuard(codec *TokenCodec, revoked RevocationStore) *Guard {
	return &Guard{codec: codec, revoked: revoked}
}

// Authenticate verifies a raw bearer token and returns the embedded
// Identity. Missing, malformed, expired and revoked tokens all fail
// Unauthorized: the caller holds no valid credentials.
func (g *Guard) Authenticate(ctx context.Context, rawToken string) (domain.Identity, error) {
	if rawToken == "" {
		return domain.Identity{}, apperrors.NewUnauthorized("missing bearer token")
	}

	claims, err := g.codec.Verify(rawToken)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return domain.Identity{}, apperrors.NewUnauthorized("token expired")
		}
		return domain.Identity{}, apperrors.NewUnauthorized("invalid token")
	}

	if g.revoked != nil {
		revoked, err := g.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return domain.Identity{}, apperrors.NewInternalError(err)
		}
		if revoked {
			return domain.Identity{}, apperrors.NewUnauthorized("token revoked")
		}
	}

	return claims.Identity(), nil
}

// Authorize evaluates the policy table. Instructors may act on any
// account; students only on their own. The target owner id is supplied
// by the caller, already resolved, and is never re-derived here. Unknown
// capabilities and roles deny.
func (g *Guard) Authorize(identity domain.Identity, capability Capability, targetOwnerID string) Decision {
	// Signup is the one capability evaluated without a prior
	// Authenticate, so it is decided before any role is inspected.
	if capability == CapabilityCreateUser {
		return allow()
	}

	switch identity.Role {
	case domain.RoleInstructor:
		switch capability {
		case CapabilityListAllUsers, CapabilityReadUser, CapabilityUpdateUser, CapabilityDeleteUser:
			return allow()
		}
	case domain.RoleStudent:
		switch capability {
		case CapabilityListAllUsers:
			return deny("instructor role required")
		case CapabilityReadUser, CapabilityUpdateUser, CapabilityDeleteUser:
			if targetOwnerID != "" && targetOwnerID == identity.SubjectID {
				return allow()
			}
			return deny("cannot act on another user's account")
		}
	}

	return deny("operation not permitted")
}

// Revoke invalidates the presented token for the remainder of its life.
// Only a token that still verifies can be revoked.
func (g *Guard) Revoke(ctx context.Context, rawToken string) error {
	claims, err := g.codec.Verify(rawToken)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			// Expired tokens are already dead.
			return nil
		}
		return apperrors.NewUnauthorized("invalid token")
	}
	if g.revoked == nil {
		return nil
	}

	remaining := time.Until(claims.ExpiresAt.Time)
	if err := g.revoked.Revoke(ctx, claims.ID, remaining); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}
