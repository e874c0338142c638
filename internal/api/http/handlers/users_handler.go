package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-desk/internal/api/dto"
	"github.com/spec-kit/triage-desk/internal/auth"
	"github.com/spec-kit/triage-desk/internal/domain"
	"github.com/spec-kit/triage-desk/internal/service"
	apperrors "github.com/spec-kit/triage-desk/pkg/util"
)

// UserOperations is the user service surface used by the handler.
type UserOperations interface {
	GetProfile(ctx context.Context, userID string) (*domain.User, error)
	UpdateOwnSkills(ctx context.Context, userID string, skills []string) (*domain.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error)
	AdminUpdateUser(ctx context.Context, input service.AdminUserUpdate) (*domain.User, error)
}

// UsersHandler exposes profile and user administration endpoints.
type UsersHandler struct {
	users UserOperations
}

// NewUsersHandler constructs handler.
func NewUsersHandler(users UserOperations) *UsersHandler {
	return &UsersHandler{users: users}
}

// Profile handles GET /api/auth/profile.
func (h *UsersHandler) Profile(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewAuthenticationFailed(nil)
	}
	user, err := h.users.GetProfile(c.UserContext(), principal.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// UpdateProfile handles PUT /api/auth/profile.
func (h *UsersHandler) UpdateProfile(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewAuthenticationFailed(nil)
	}
	var req dto.UpdateSkillsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Skills == nil {
		return apperrors.NewValidationError("skills required", map[string]any{"skills": "required"})
	}
	user, err := h.users.UpdateOwnSkills(c.UserContext(), principal.ID, req.Skills)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// ListUsers handles GET /api/auth/users.
func (h *UsersHandler) ListUsers(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	users, err := h.users.ListUsers(c.UserContext(), limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, dto.NewUserResponse(&users[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// UpdateUser handles PUT /api/auth/update-user.
func (h *UsersHandler) UpdateUser(c *fiber.Ctx) error {
	var req dto.AdminUpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, err := h.users.AdminUpdateUser(c.UserContext(), service.AdminUserUpdate{
		ExternalID: req.ExternalID,
		Email:      req.Email,
		Role:       req.Role,
		Skills:     req.Skills,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}
