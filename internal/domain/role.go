package domain

import (
	"strings"

	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

// Role enumerates account roles on the platform.
type Role string

const (
	RoleStudent    Role = "STUDENT"
	RoleInstructor Role = "INSTRUCTOR"
)

// ParseRole converts untrusted input into a Role. Anything outside the
// closed set fails; free-form strings never reach an Identity.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleStudent:
		return RoleStudent, nil
	case RoleInstructor:
		return RoleInstructor, nil
	default:
		return "", apperrors.NewValidationError("invalid role", map[string]any{"role": raw})
	}
}

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleInstructor
}
