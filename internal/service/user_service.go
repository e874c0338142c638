package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-desk/internal/domain"
	"github.com/spec-kit/triage-desk/internal/repository"
	apperrors "github.com/spec-kit/triage-desk/pkg/util"
)

// UserService serves profile and administrative user operations.
// Route-level middleware enforces the admin role for the admin methods.
type UserService struct {
	users  repository.UserRepository
	logger *zap.Logger
}

// AdminUserUpdate identifies a user by external id or email and carries the changes.
type AdminUserUpdate struct {
	ExternalID string
	Email      string
	Role       *string
	Skills     []string
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository, logger *zap.Logger) *UserService {
	return &UserService{users: users, logger: logger}
}

// GetProfile returns the stored record of the caller.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// UpdateOwnSkills replaces the caller's skills.
func (s *UserService) UpdateOwnSkills(ctx context.Context, userID string, skills []string) (*domain.User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Skills = domain.NormalizeSkills(skills)
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// ListUsers returns users newest first.
func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	users, err := s.users.List(ctx, repository.UserFilter{Limit: limit, Offset: offset})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

// AdminUpdateUser changes the role and/or skills of another user.
// An empty skills list leaves the stored skills untouched.
func (s *UserService) AdminUpdateUser(ctx context.Context, input AdminUserUpdate) (*domain.User, error) {
	externalID := strings.TrimSpace(input.ExternalID)
	email := strings.TrimSpace(input.Email)
	if externalID == "" && email == "" {
		return nil, apperrors.NewValidationError("externalId or email is required", nil)
	}

	var role domain.Role
	if input.Role != nil {
		parsed, ok := domain.ParseRole(*input.Role)
		if !ok {
			return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": *input.Role})
		}
		role = parsed
	}

	var (
		user *domain.User
		err  error
	)
	if externalID != "" {
		user, err = s.users.GetByExternalID(ctx, externalID)
	} else {
		user, err = s.users.GetByEmail(ctx, email)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"external_id": externalID, "email": email})
		}
		return nil, apperrors.MapError(err)
	}

	if role != "" {
		user.Role = role
	}
	if len(input.Skills) > 0 {
		user.Skills = domain.NormalizeSkills(input.Skills)
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("user updated by admin",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
		zap.Strings("skills", user.Skills))
	return user, nil
}
