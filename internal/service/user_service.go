package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/repository"
	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

// UserService is the account directory: CRUD and search behind the
// access guard. Every operation authorizes before touching the store,
// so a denied caller never learns whether the target exists.
type UserService struct {
	users      repository.UserRepository
	guard      *auth.Guard
	bcryptCost int
}

// NewUserService builds the service.
func NewUserService(cfg config.Config, guard *auth.Guard, users repository.UserRepository) *UserService {
	return &UserService{users: users, guard: guard, bcryptCost: cfg.Auth.BcryptCost}
}

// ListFilters define search parameters for the directory listing.
type ListFilters struct {
	Query  string
	Role   *domain.Role
	Limit  int
	Offset int
}

// UpdateParams carries the mutable account fields; nil means unchanged.
type UpdateParams struct {
	Name     *string
	Email    *string
	Password *string
	Role     *string
}

// Register creates an account. Signup is public: the create-user
// capability is evaluated without an authenticated identity.
func (s *UserService) Register(ctx context.Context, name, email, password, role string) (*domain.User, error) {
	if err := s.guard.Authorize(domain.Identity{}, auth.CapabilityCreateUser, "").Err(); err != nil {
		return nil, err
	}
	if name == "" || email == "" || password == "" {
		return nil, apperrors.NewValidationError("name, email and password required", nil)
	}
	parsedRole, err := domain.ParseRole(role)
	if err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewInternalError(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         parsedRole,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// Get fetches a single account.
func (s *UserService) Get(ctx context.Context, caller domain.Identity, id string) (*domain.User, error) {
	if err := parseTargetID(id); err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(caller, auth.CapabilityReadUser, id).Err(); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return nil, apperrors.NewInternalError(err)
	}
	return user, nil
}

// List searches the directory; instructors only.
func (s *UserService) List(ctx context.Context, caller domain.Identity, filters ListFilters) ([]domain.User, error) {
	if err := s.guard.Authorize(caller, auth.CapabilityListAllUsers, "").Err(); err != nil {
		return nil, err
	}

	users, err := s.users.List(ctx, repository.UserFilter{
		Query:  filters.Query,
		Role:   filters.Role,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return users, nil
}

// Update mutates an account. Role changes are an instructor-only
// operation regardless of ownership; everything else follows the policy
// table.
func (s *UserService) Update(ctx context.Context, caller domain.Identity, id string, params UpdateParams) (*domain.User, error) {
	if err := parseTargetID(id); err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(caller, auth.CapabilityUpdateUser, id).Err(); err != nil {
		return nil, err
	}
	if params.Role != nil && caller.Role != domain.RoleInstructor {
		return nil, apperrors.NewForbidden("instructor role required to change roles")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return nil, apperrors.NewInternalError(err)
	}

	if params.Name != nil {
		if *params.Name == "" {
			return nil, apperrors.NewValidationError("name cannot be empty", nil)
		}
		user.Name = *params.Name
	}
	if params.Email != nil {
		if *params.Email == "" {
			return nil, apperrors.NewValidationError("email cannot be empty", nil)
		}
		user.Email = *params.Email
	}
	if params.Password != nil {
		if *params.Password == "" {
			return nil, apperrors.NewValidationError("password cannot be empty", nil)
		}
		hash, err := auth.HashPassword(*params.Password, s.bcryptCost)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		user.PasswordHash = hash
	}
	if params.Role != nil {
		parsedRole, err := domain.ParseRole(*params.Role)
		if err != nil {
			return nil, err
		}
		user.Role = parsedRole
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// Delete removes an account.
func (s *UserService) Delete(ctx context.Context, caller domain.Identity, id string) error {
	if err := parseTargetID(id); err != nil {
		return err
	}
	if err := s.guard.Authorize(caller, auth.CapabilityDeleteUser, id).Err(); err != nil {
		return err
	}

	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return apperrors.NewInternalError(err)
	}
	return nil
}

func parseTargetID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.NewValidationError("invalid user id", map[string]any{"id": id})
	}
	return nil
}
