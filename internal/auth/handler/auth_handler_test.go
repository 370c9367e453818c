package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/StanlySGY/auth-service/config"
	"github.com/StanlySGY/auth-service/internal/auth/domain"
	"github.com/StanlySGY/auth-service/internal/auth/dto"
	"github.com/StanlySGY/auth-service/internal/auth/handler"
	"github.com/StanlySGY/auth-service/internal/auth/service"
	"github.com/StanlySGY/auth-service/internal/mocks"
)

type handlerFixture struct {
	app             *fiber.App
	mockRepo        *mocks.MockUserRepository
	mockRefreshRepo *mocks.MockRefreshTokenRepository
	tokenService    *service.TokenService
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	mockRepo := mocks.NewMockUserRepository(ctrl)
	mockRefreshRepo := mocks.NewMockRefreshTokenRepository(ctrl)
	tokenService := service.NewTokenService("test-secret", 15, 7)
	cfg := &config.Config{BcryptCost: bcrypt.MinCost}

	userService := service.NewUserService(mockRepo, mockRefreshRepo, tokenService, cfg, nil)
	authHandler := handler.NewAuthHandler(userService)

	app := fiber.New()
	handler.RegisterRoutes(app, authHandler)

	return &handlerFixture{
		app:             app,
		mockRepo:        mockRepo,
		mockRefreshRepo: mockRefreshRepo,
		tokenService:    tokenService,
	}
}

func postJSON(t *testing.T, app *fiber.App, path string, payload any) (int, []byte) {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data
}

func TestRegister(t *testing.T) {
	f := newHandlerFixture(t)

	t.Run("success", func(t *testing.T) {
		input := dto.RegisterInput{Email: "test@example.com", Username: "tester", Password: "password"}

		f.mockRepo.EXPECT().GetByEmailOrUsername(gomock.Any(), input.Email, input.Username).Return(nil, nil)
		f.mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)

		code, body := postJSON(t, f.app, "/api/v1/register", input)
		assert.Equal(t, fiber.StatusCreated, code)

		var out dto.UserOutput
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Equal(t, input.Email, out.Email)
		assert.Equal(t, input.Username, out.Username)
		assert.NotContains(t, string(body), "password_hash")
	})

	t.Run("bad request", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/register", bytes.NewReader([]byte("")))
		req.Header.Set("Content-Type", "application/json")

		resp, _ := f.app.Test(req)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("missing fields", func(t *testing.T) {
		code, _ := postJSON(t, f.app, "/api/v1/register", dto.RegisterInput{Email: "a@b.c"})
		assert.Equal(t, fiber.StatusBadRequest, code)
	})

	t.Run("duplicate", func(t *testing.T) {
		input := dto.RegisterInput{Email: "test@example.com", Username: "tester", Password: "password"}

		f.mockRepo.EXPECT().GetByEmailOrUsername(gomock.Any(), input.Email, input.Username).
			Return(&domain.User{ID: "existing"}, nil)

		code, _ := postJSON(t, f.app, "/api/v1/register", input)
		assert.Equal(t, fiber.StatusBadRequest, code)
	})
}

func TestLogin(t *testing.T) {
	f := newHandlerFixture(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)

	user := &domain.User{ID: "user-1", Email: "test@example.com", Username: "tester",
		PasswordHash: string(hash), Active: true}

	t.Run("success", func(t *testing.T) {
		f.mockRepo.EXPECT().GetByIdentifier(gomock.Any(), "tester").Return(user, nil)
		f.mockRefreshRepo.EXPECT().Store(gomock.Any(), gomock.Any()).Return(nil)

		code, body := postJSON(t, f.app, "/api/v1/login", dto.LoginInput{Identifier: "tester", Password: "password"})
		assert.Equal(t, fiber.StatusOK, code)

		var out dto.TokenResponse
		require.NoError(t, json.Unmarshal(body, &out))
		assert.NotEmpty(t, out.AccessToken)
		assert.NotEmpty(t, out.RefreshToken)
		assert.Equal(t, "bearer", out.TokenType)
		assert.Equal(t, 15*60, out.ExpiresIn)
	})

	t.Run("unauthorized - wrong password", func(t *testing.T) {
		f.mockRepo.EXPECT().GetByIdentifier(gomock.Any(), "tester").Return(user, nil)

		code, _ := postJSON(t, f.app, "/api/v1/login", dto.LoginInput{Identifier: "tester", Password: "wrong"})
		assert.Equal(t, fiber.StatusUnauthorized, code)
	})

	t.Run("unauthorized - inactive", func(t *testing.T) {
		inactive := &domain.User{ID: "user-2", PasswordHash: string(hash), Active: false}
		f.mockRepo.EXPECT().GetByIdentifier(gomock.Any(), "ghost").Return(inactive, nil)

		code, _ := postJSON(t, f.app, "/api/v1/login", dto.LoginInput{Identifier: "ghost", Password: "password"})
		assert.Equal(t, fiber.StatusUnauthorized, code)
	})
}

func TestRefresh(t *testing.T) {
	f := newHandlerFixture(t)

	t.Run("success", func(t *testing.T) {
		raw, jti, expiresAt, err := f.tokenService.GenerateRefreshToken("user-1")
		require.NoError(t, err)

		record := &domain.RefreshToken{
			JTI:       jti,
			UserID:    "user-1",
			TokenHash: service.HashToken(raw),
			ExpiresAt: expiresAt,
		}

		f.mockRefreshRepo.EXPECT().GetByJTI(gomock.Any(), jti, "user-1").Return(record, nil)
		f.mockRefreshRepo.EXPECT().Revoke(gomock.Any(), jti).Return(true, nil)
		f.mockRefreshRepo.EXPECT().Store(gomock.Any(), gomock.Any()).Return(nil)

		code, body := postJSON(t, f.app, "/api/v1/refresh", dto.RefreshInput{RefreshToken: raw})
		assert.Equal(t, fiber.StatusOK, code)

		var out dto.TokenResponse
		require.NoError(t, json.Unmarshal(body, &out))
		assert.NotEqual(t, raw, out.RefreshToken)
	})

	t.Run("unauthorized - invalid token", func(t *testing.T) {
		code, _ := postJSON(t, f.app, "/api/v1/refresh", dto.RefreshInput{RefreshToken: "garbage"})
		assert.Equal(t, fiber.StatusUnauthorized, code)
	})

	t.Run("unauthorized - revoked", func(t *testing.T) {
		raw, jti, expiresAt, err := f.tokenService.GenerateRefreshToken("user-1")
		require.NoError(t, err)

		record := &domain.RefreshToken{
			JTI:       jti,
			UserID:    "user-1",
			TokenHash: service.HashToken(raw),
			ExpiresAt: expiresAt,
			Revoked:   true,
		}

		f.mockRefreshRepo.EXPECT().GetByJTI(gomock.Any(), jti, "user-1").Return(record, nil)

		code, _ := postJSON(t, f.app, "/api/v1/refresh", dto.RefreshInput{RefreshToken: raw})
		assert.Equal(t, fiber.StatusUnauthorized, code)
	})
}

func TestLogout(t *testing.T) {
	f := newHandlerFixture(t)

	t.Run("garbage token still succeeds", func(t *testing.T) {
		code, _ := postJSON(t, f.app, "/api/v1/logout", dto.LogoutInput{RefreshToken: "garbage"})
		assert.Equal(t, fiber.StatusOK, code)

		// Calling again is just as fine.
		code, _ = postJSON(t, f.app, "/api/v1/logout", dto.LogoutInput{RefreshToken: "garbage"})
		assert.Equal(t, fiber.StatusOK, code)
	})

	t.Run("valid token revokes record", func(t *testing.T) {
		raw, jti, expiresAt, err := f.tokenService.GenerateRefreshToken("user-1")
		require.NoError(t, err)

		record := &domain.RefreshToken{
			JTI:       jti,
			UserID:    "user-1",
			TokenHash: service.HashToken(raw),
			ExpiresAt: expiresAt,
		}

		f.mockRefreshRepo.EXPECT().GetByJTI(gomock.Any(), jti, "user-1").Return(record, nil)
		f.mockRefreshRepo.EXPECT().Revoke(gomock.Any(), jti).Return(true, nil)

		code, _ := postJSON(t, f.app, "/api/v1/logout", dto.LogoutInput{RefreshToken: raw})
		assert.Equal(t, fiber.StatusOK, code)
	})
}

func TestMe(t *testing.T) {
	f := newHandlerFixture(t)

	t.Run("success", func(t *testing.T) {
		access, err := f.tokenService.GenerateAccessToken("user-1")
		require.NoError(t, err)

		user := &domain.User{ID: "user-1", Email: "test@example.com", Username: "tester", Active: true}
		f.mockRepo.EXPECT().GetByID(gomock.Any(), "user-1").Return(user, nil)

		req := httptest.NewRequest("GET", "/api/v1/me", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+access)

		resp, err := f.app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var out dto.UserOutput
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, "user-1", out.ID)
		assert.Equal(t, "tester", out.Username)
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/me", nil)

		resp, err := f.app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/me", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer garbage")

		resp, err := f.app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("deactivated account", func(t *testing.T) {
		access, err := f.tokenService.GenerateAccessToken("user-1")
		require.NoError(t, err)

		user := &domain.User{ID: "user-1", Active: false}
		f.mockRepo.EXPECT().GetByID(gomock.Any(), "user-1").Return(user, nil)

		req := httptest.NewRequest("GET", "/api/v1/me", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+access)

		resp, err := f.app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})
}
