package dto

import (
	"time"

	"github.com/spec-kit/triage-desk/internal/domain"
)

// UpdateSkillsRequest payload for PUT /api/auth/profile.
type UpdateSkillsRequest struct {
	Skills []string `json:"skills"`
}

// AdminUpdateUserRequest payload for PUT /api/auth/update-user.
type AdminUpdateUserRequest struct {
	ExternalID string   `json:"externalId"`
	Email      string   `json:"email"`
	Role       *string  `json:"role"`
	Skills     []string `json:"skills"`
}

// UserResponse is the public view of a directory record.
type UserResponse struct {
	ID           string      `json:"id"`
	ExternalID   string      `json:"externalId"`
	Email        string      `json:"email"`
	FirstName    string      `json:"firstName"`
	LastName     string      `json:"lastName"`
	Role         domain.Role `json:"role"`
	Skills       []string    `json:"skills"`
	CreatedAt    time.Time   `json:"createdAt"`
	LastSyncedAt time.Time   `json:"lastSyncedAt"`
}

// NewUserResponse maps a domain user.
func NewUserResponse(user *domain.User) UserResponse {
	skills := user.Skills
	if skills == nil {
		skills = []string{}
	}
	return UserResponse{
		ID:           user.ID,
		ExternalID:   user.ExternalID,
		Email:        user.Email,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Role:         user.Role,
		Skills:       skills,
		CreatedAt:    user.CreatedAt,
		LastSyncedAt: user.LastSyncedAt,
	}
}
