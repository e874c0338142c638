package domain

import (
	"strings"
	"time"
)

// Role is the authorization level of a principal.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// ParseRole validates a raw role value.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleUser:
		return RoleUser, true
	case RoleModerator:
		return RoleModerator, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// CanModerate reports whether the role may act on other users' tickets.
func (r Role) CanModerate() bool {
	return r == RoleModerator || r == RoleAdmin
}

// User is the locally persisted principal synced from the identity provider.
type User struct {
	ID           string
	ExternalID   string
	Email        string
	FirstName    string
	LastName     string
	Role         Role
	Skills       []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastSyncedAt time.Time
}

// NormalizeSkills trims entries, drops blanks and removes duplicates keeping first occurrence.
func NormalizeSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	seen := make(map[string]struct{}, len(skills))
	for _, s := range skills {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
