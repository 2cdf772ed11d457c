package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/api/dto"
	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/service"
	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

// AuthHandler exposes signup, login and logout.
type AuthHandler struct {
	authenticator *auth.Authenticator
	guard         *auth.Guard
	users         *service.UserService
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(authenticator *auth.Authenticator, guard *auth.Guard, users *service.UserService) *AuthHandler {
	return &AuthHandler{authenticator: authenticator, guard: guard, users: users}
}

// Register handles POST /auth/register. Signup is public and logs the
// new account straight in.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, err := h.users.Register(c.UserContext(), req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		return err
	}

	result, err := h.authenticator.TokenFor(user)
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{
			"user": result.Profile,
			"auth": dto.AuthResponse{Token: result.Token, ExpiresAt: result.ExpiresAt},
		},
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	result, err := h.authenticator.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"user": result.Profile,
			"auth": dto.AuthResponse{Token: result.Token, ExpiresAt: result.ExpiresAt},
		},
	})
}

// Logout handles POST /auth/logout; revokes the presented token for the
// remainder of its lifetime.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	raw, ok := auth.RawTokenFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("missing bearer token")
	}
	if err := h.guard.Revoke(c.UserContext(), raw); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "logged_out"}})
}
