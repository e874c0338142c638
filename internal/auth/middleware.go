package auth

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-desk/internal/domain"
	apperrors "github.com/spec-kit/triage-desk/pkg/util"
)

const principalKey = "auth_principal"

//go:generate mockgen -source=middleware.go -destination=mocks/mocks.go -package=mocks ClaimsSyncer
//go:generate mockgen -source=verifier.go -destination=mocks/verifier_mocks.go -package=mocks CredentialVerifier

// ClaimsSyncer provisions or refreshes the local user for verified claims.
type ClaimsSyncer interface {
	SyncFromClaims(ctx context.Context, claims domain.IdentityClaims) (*domain.User, error)
}

// Principal represents the authenticated caller.
type Principal struct {
	ID         string
	ExternalID string
	Email      string
	Role       domain.Role
	Skills     []string
}

// PrincipalFromUser normalizes a stored user into a request principal.
func PrincipalFromUser(user *domain.User) *Principal {
	return &Principal{
		ID:         user.ID,
		ExternalID: user.ExternalID,
		Email:      user.Email,
		Role:       user.Role,
		Skills:     user.Skills,
	}
}

// AuthMiddleware verifies bearer tokens and syncs the caller into the directory.
type AuthMiddleware struct {
	verifier  CredentialVerifier
	directory ClaimsSyncer
	logger    *zap.Logger
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(verifier CredentialVerifier, directory ClaimsSyncer, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, directory: directory, logger: logger}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token, err := ExtractBearer(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return apperrors.NewAuthenticationFailed(err)
	}

	claims, err := m.verifier.Verify(c.UserContext(), token)
	if err != nil {
		fields := []zap.Field{zap.String("method", c.Method()), zap.String("path", c.Path()), zap.Error(err)}
		if errors.Is(err, ErrMissingKey) {
			m.logger.Error("identity verification key not configured", fields...)
		} else {
			m.logger.Debug("credential rejected", fields...)
		}
		return apperrors.NewAuthenticationFailed(err)
	}

	user, err := m.directory.SyncFromClaims(c.UserContext(), *claims)
	if err != nil {
		m.logger.Error("directory sync failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("external_id", claims.ExternalID),
			zap.Error(err))
		return apperrors.NewInternalError(err)
	}

	c.Locals(principalKey, PrincipalFromUser(user))
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
