package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/account-service/internal/api/http/handlers"
	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/observability"
	"github.com/spec-kit/account-service/internal/repository"
	"github.com/spec-kit/account-service/internal/service"
	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

type memUserRepo struct {
	byID map[string]*domain.User
}

func (m *memUserRepo) Create(_ context.Context, user *domain.User) error {
	for _, existing := range m.byID {
		if strings.EqualFold(existing.Email, user.Email) {
			return apperrors.NewConflict("email already registered", nil)
		}
	}
	copied := *user
	m.byID[user.ID] = &copied
	return nil
}

func (m *memUserRepo) Update(_ context.Context, user *domain.User) error {
	if _, ok := m.byID[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	copied := *user
	m.byID[user.ID] = &copied
	return nil
}

func (m *memUserRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.byID, id)
	return nil
}

func (m *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	if user, ok := m.byID[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, pgx.ErrNoRows
}

func (m *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range m.byID {
		if strings.EqualFold(user.Email, email) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memUserRepo) List(_ context.Context, _ repository.UserFilter) ([]domain.User, error) {
	var users []domain.User
	for _, user := range m.byID {
		users = append(users, *user)
	}
	return users, nil
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.Config{Auth: config.AuthConfig{BcryptCost: bcrypt.MinCost, AccessTokenTTLMinutes: 60}}
	repo := &memUserRepo{byID: make(map[string]*domain.User)}
	codec := auth.NewTokenCodec("test-secret")
	guard := auth.NewGuard(codec, auth.NewRevocationStore(client))
	authenticator := auth.NewAuthenticator(repo, codec, cfg.Auth.AccessTokenTTL())
	userService := service.NewUserService(cfg, guard, repo)

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), observability.NewMetrics(), 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler(nil),
		Auth:           handlers.NewAuthHandler(authenticator, guard, userService),
		Users:          handlers.NewUsersHandler(userService),
		AuthMiddleware: auth.NewMiddleware(guard),
	})
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func register(t *testing.T, app *fiber.App, name, email, role string) (id, token string) {
	t.Helper()
	resp, body := doJSON(t, app, fiber.MethodPost, "/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "s3cret-pass", "role": role,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	data := body["data"].(map[string]any)
	user := data["user"].(map[string]any)
	authData := data["auth"].(map[string]any)
	return user["id"].(string), authData["token"].(string)
}

func TestRegisterLoginAndReadSelf(t *testing.T) {
	app := newTestApp(t)

	id, _ := register(t, app, "Ada", "ada@example.com", "student")

	resp, body := doJSON(t, app, fiber.MethodPost, "/auth/login", "", map[string]string{
		"email": "ada@example.com", "password": "s3cret-pass",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := body["data"].(map[string]any)["auth"].(map[string]any)["token"].(string)

	resp, body = doJSON(t, app, fiber.MethodGet, "/users/"+id, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	user := body["data"].(map[string]any)["user"].(map[string]any)
	require.Equal(t, "ada@example.com", user["email"])
	_, leaked := user["password_hash"]
	require.False(t, leaked)
}

func TestLoginWrongPassword(t *testing.T) {
	app := newTestApp(t)
	register(t, app, "Ada", "ada@example.com", "student")

	resp, body := doJSON(t, app, fiber.MethodPost, "/auth/login", "", map[string]string{
		"email": "ada@example.com", "password": "wrong-pass",
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "FORBIDDEN", body["error"].(map[string]any)["code"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app := newTestApp(t)
	id, _ := register(t, app, "Ada", "ada@example.com", "student")

	resp, body := doJSON(t, app, fiber.MethodGet, "/users/"+id, "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "UNAUTHORIZED", body["error"].(map[string]any)["code"])

	resp, _ = doJSON(t, app, fiber.MethodGet, "/users/"+id, "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStudentCannotListOrReadOthers(t *testing.T) {
	app := newTestApp(t)
	_, studentToken := register(t, app, "Ada", "ada@example.com", "student")
	peerID, _ := register(t, app, "Grace", "grace@example.com", "student")
	_, instructorToken := register(t, app, "Don", "don@example.com", "instructor")

	resp, _ := doJSON(t, app, fiber.MethodGet, "/users/", studentToken, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, app, fiber.MethodGet, "/users/"+peerID, studentToken, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := doJSON(t, app, fiber.MethodGet, "/users/", instructorToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	users := body["data"].(map[string]any)["users"].([]any)
	require.Len(t, users, 3)
}

func TestLogoutRevokesToken(t *testing.T) {
	app := newTestApp(t)
	id, token := register(t, app, "Ada", "ada@example.com", "student")

	resp, _ := doJSON(t, app, fiber.MethodGet, "/users/"+id, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, fiber.MethodPost, "/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, app, fiber.MethodGet, "/users/"+id, token, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "UNAUTHORIZED", body["error"].(map[string]any)["code"])
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	app := newTestApp(t)

	resp, body := doJSON(t, app, fiber.MethodPost, "/auth/register", "", map[string]string{
		"name": "Mallory", "email": "mallory@example.com", "password": "s3cret-pass", "role": "admin",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "VALIDATION_FAILED", body["error"].(map[string]any)["code"])
}
