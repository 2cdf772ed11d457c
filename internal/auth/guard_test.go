package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/account-service/internal/domain"
	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

type stubRevocations struct {
	revoked map[string]time.Duration
	err     error
}

func newStubRevocations() *stubRevocations {
	return &stubRevocations{revoked: make(map[string]time.Duration)}
}

func (s *stubRevocations) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	if s.err != nil {
		return s.err
	}
	s.revoked[tokenID] = ttl
	return nil
}

func (s *stubRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	_, ok := s.revoked[tokenID]
	return ok, nil
}

func TestAuthorizePolicyTable(t *testing.T) {
	guard := NewGuard(NewTokenCodec("test-secret"), nil)

	const self = "user-1"
	const other = "user-2"

	cases := []struct {
		name       string
		role       domain.Role
		capability Capability
		target     string
		want       bool
	}{
		{"instructor list", domain.RoleInstructor, CapabilityListAllUsers, "", true},
		{"instructor read other", domain.RoleInstructor, CapabilityReadUser, other, true},
		{"instructor update other", domain.RoleInstructor, CapabilityUpdateUser, other, true},
		{"instructor delete other", domain.RoleInstructor, CapabilityDeleteUser, other, true},
		{"student list", domain.RoleStudent, CapabilityListAllUsers, "", false},
		{"student read self", domain.RoleStudent, CapabilityReadUser, self, true},
		{"student read other", domain.RoleStudent, CapabilityReadUser, other, false},
		{"student update self", domain.RoleStudent, CapabilityUpdateUser, self, true},
		{"student update other", domain.RoleStudent, CapabilityUpdateUser, other, false},
		{"student delete self", domain.RoleStudent, CapabilityDeleteUser, self, true},
		{"student delete other", domain.RoleStudent, CapabilityDeleteUser, other, false},
		{"student create", domain.RoleStudent, CapabilityCreateUser, "", true},
		{"instructor create", domain.RoleInstructor, CapabilityCreateUser, "", true},
		{"unknown capability instructor", domain.RoleInstructor, Capability("reboot-server"), other, false},
		{"unknown capability student", domain.RoleStudent, Capability("reboot-server"), self, false},
		{"unknown role", domain.Role("ADMIN"), CapabilityReadUser, self, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			identity := domain.Identity{SubjectID: self, Role: tc.role}
			decision := guard.Authorize(identity, tc.capability, tc.target)
			require.Equal(t, tc.want, decision.Allowed)
			if !tc.want {
				require.Equal(t, http.StatusForbidden, decision.Status)
				require.NotEmpty(t, decision.Reason)
			}
		})
	}
}

func TestAuthorizeCreateUserIsPublic(t *testing.T) {
	guard := NewGuard(NewTokenCodec("test-secret"), nil)

	decision := guard.Authorize(domain.Identity{}, CapabilityCreateUser, "")
	require.True(t, decision.Allowed)
}

func TestDecisionErr(t *testing.T) {
	require.NoError(t, allow().Err())

	err := deny("nope").Err()
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	require.Equal(t, "FORBIDDEN", de.Code)
	require.Equal(t, http.StatusForbidden, de.HTTPStatus)
}

func TestAuthenticateValidToken(t *testing.T) {
	codec := NewTokenCodec("test-secret")
	guard := NewGuard(codec, newStubRevocations())

	want := domain.Identity{SubjectID: "user-1", Role: domain.RoleStudent}
	token, _, err := codec.Issue(want, time.Hour)
	require.NoError(t, err)

	got, err := guard.Authenticate(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestAuthenticateFailures(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	codec := NewTokenCodecWithClock("test-secret", fixedClock(issued))
	guard := NewGuard(codec, nil)

	expired, _, err := codec.Issue(domain.Identity{SubjectID: "user-1", Role: domain.RoleStudent}, 0)
	require.NoError(t, err)

	cases := []struct {
		name string
		raw  string
	}{
		{"missing token", ""},
		{"garbage token", "not-a-token"},
		{"expired token", expired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := guard.Authenticate(context.Background(), tc.raw)
			require.Error(t, err)
			de := apperrors.ToDomainError(err)
			require.Equal(t, "UNAUTHORIZED", de.Code)
			require.Equal(t, http.StatusUnauthorized, de.HTTPStatus)
		})
	}
}

func TestAuthenticateRevokedToken(t *testing.T) {
	codec := NewTokenCodec("test-secret")
	revocations := newStubRevocations()
	guard := NewGuard(codec, revocations)

	token, _, err := codec.Issue(domain.Identity{SubjectID: "user-1", Role: domain.RoleStudent}, time.Hour)
	require.NoError(t, err)

	require.NoError(t, guard.Revoke(context.Background(), token))
	require.Len(t, revocations.revoked, 1)

	_, err = guard.Authenticate(context.Background(), token)
	require.Error(t, err)
	require.Equal(t, "UNAUTHORIZED", apperrors.ToDomainError(err).Code)
}

func TestAuthenticateRevocationStoreFailure(t *testing.T) {
	codec := NewTokenCodec("test-secret")
	revocations := newStubRevocations()
	revocations.err = errors.New("redis down")
	guard := NewGuard(codec, revocations)

	token, _, err := codec.Issue(domain.Identity{SubjectID: "user-1", Role: domain.RoleStudent}, time.Hour)
	require.NoError(t, err)

	_, err = guard.Authenticate(context.Background(), token)
	require.Error(t, err)
	require.Equal(t, "INTERNAL_ERROR", apperrors.ToDomainError(err).Code)
}

func TestRevokeExpiredTokenIsNoOp(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	codec := NewTokenCodecWithClock("test-secret", fixedClock(issued))
	revocations := newStubRevocations()
	guard := NewGuard(codec, revocations)

	token, _, err := codec.Issue(domain.Identity{SubjectID: "user-1", Role: domain.RoleStudent}, 0)
	require.NoError(t, err)

	require.NoError(t, guard.Revoke(context.Background(), token))
	require.Empty(t, revocations.revoked)
}

func TestRevokeInvalidToken(t *testing.T) {
	guard := NewGuard(NewTokenCodec("test-secret"), newStubRevocations())

	err := guard.Revoke(context.Background(), "not-a-token")
	require.Error(t, err)
	require.Equal(t, "UNAUTHORIZED", apperrors.ToDomainError(err).Code)
}
