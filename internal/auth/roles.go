package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-desk/internal/domain"
	apperrors "github.com/spec-kit/triage-desk/pkg/util"
)

// RequireRole ensures the principal has one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewAuthenticationFailed(nil)
		}
		if _, exists := allowedSet[principal.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireAdmin gates admin-only operations.
func RequireAdmin() fiber.Handler {
	return RequireRole(domain.RoleAdmin)
}
