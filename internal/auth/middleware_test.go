package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-desk/internal/auth/mocks"
	"github.com/spec-kit/triage-desk/internal/domain"
	apperrors "github.com/spec-kit/triage-desk/pkg/util"
)

func newTestApp(mw *AuthMiddleware) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).JSON(fiber.Map{"error": fiber.Map{"code": de.Code, "message": de.Message}})
		},
	})
	app.Get("/me", mw.Handle, func(c *fiber.Ctx) error {
		p, ok := PrincipalFromContext(c)
		if !ok {
			return errors.New("principal missing")
		}
		return c.JSON(fiber.Map{"id": p.ID, "role": p.Role})
	})
	app.Get("/admin", mw.Handle, RequireAdmin(), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})
	return app
}

func TestAuthMiddleware(t *testing.T) {
	ctrl := gomock.NewController(t)
	verifier := mocks.NewMockCredentialVerifier(ctrl)
	syncer := mocks.NewMockClaimsSyncer(ctrl)
	app := newTestApp(NewAuthMiddleware(verifier, syncer, zap.NewNop()))

	claims := &domain.IdentityClaims{ExternalID: "u1"}

	t.Run("missing header is 401 without calling the verifier", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/me", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("invalid token is 401", func(t *testing.T) {
		verifier.EXPECT().Verify(gomock.Any(), "bad").Return(nil, ErrInvalidCredential)

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer bad")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("valid token attaches principal", func(t *testing.T) {
		verifier.EXPECT().Verify(gomock.Any(), "good").Return(claims, nil)
		syncer.EXPECT().SyncFromClaims(gomock.Any(), *claims).Return(&domain.User{ID: "id-1", ExternalID: "u1", Role: domain.RoleUser}, nil)

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer good")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("sync failure is 500", func(t *testing.T) {
		verifier.EXPECT().Verify(gomock.Any(), "good").Return(claims, nil)
		syncer.EXPECT().SyncFromClaims(gomock.Any(), *claims).Return(nil, errors.New("db down"))

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer good")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})
}

func TestRequireAdmin(t *testing.T) {
	ctrl := gomock.NewController(t)
	verifier := mocks.NewMockCredentialVerifier(ctrl)
	syncer := mocks.NewMockClaimsSyncer(ctrl)
	app := newTestApp(NewAuthMiddleware(verifier, syncer, zap.NewNop()))

	tests := []struct {
		name   string
		role   domain.Role
		status int
	}{
		{name: "user is forbidden", role: domain.RoleUser, status: http.StatusForbidden},
		{name: "moderator is forbidden", role: domain.RoleModerator, status: http.StatusForbidden},
		{name: "admin passes", role: domain.RoleAdmin, status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := &domain.IdentityClaims{ExternalID: "u-" + string(tt.role)}
			verifier.EXPECT().Verify(gomock.Any(), "tok").Return(claims, nil)
			syncer.EXPECT().SyncFromClaims(gomock.Any(), *claims).Return(&domain.User{ID: "x", ExternalID: claims.ExternalID, Role: tt.role}, nil)

			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.Header.Set("Authorization", "Bearer tok")
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
