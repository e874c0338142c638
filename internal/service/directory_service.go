package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-desk/internal/domain"
	"github.com/spec-kit/triage-desk/internal/observability"
	"github.com/spec-kit/triage-desk/internal/repository"
)

const (
	syncSourceClaims  = "claims"
	syncSourceWebhook = "webhook"
)

// DirectoryService maps identity-provider claims and webhook payloads onto local users.
// Both the request path and webhook ingestion converge here.
type DirectoryService struct {
	users   repository.UserRepository
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewDirectoryService constructs the service.
func NewDirectoryService(users repository.UserRepository, logger *zap.Logger, metrics *observability.Metrics) *DirectoryService {
	return &DirectoryService{
		users:   users,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// SyncFromClaims returns the user for verified claims, creating it on first sight
// and refreshing email and names when the claims carry different values.
func (s *DirectoryService) SyncFromClaims(ctx context.Context, claims domain.IdentityClaims) (*domain.User, error) {
	if claims.ExternalID == "" {
		return nil, errors.New("claims have no external id")
	}

	user, err := s.users.GetByExternalID(ctx, claims.ExternalID)
	switch {
	case err == nil:
		return s.refreshFromClaims(ctx, user, claims)
	case !errors.Is(err, pgx.ErrNoRows):
		s.metrics.RecordSync(syncSourceClaims, "failed")
		return nil, fmt.Errorf("lookup user %s: %w", claims.ExternalID, err)
	}

	user = &domain.User{
		ExternalID:   claims.ExternalID,
		Email:        claims.PrimaryEmail(),
		FirstName:    deref(claims.FirstName),
		LastName:     deref(claims.LastName),
		Role:         s.roleOrDefault(claims.ExternalID, claims.Metadata.Role),
		Skills:       domain.NormalizeSkills(claims.Metadata.Skills),
		LastSyncedAt: s.now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if !errors.Is(err, repository.ErrConflict) {
			s.metrics.RecordSync(syncSourceClaims, "failed")
			return nil, fmt.Errorf("create user %s: %w", claims.ExternalID, err)
		}
		// Another sync inserted the record between our lookup and insert.
		existing, getErr := s.users.GetByExternalID(ctx, claims.ExternalID)
		if getErr != nil {
			s.metrics.RecordSync(syncSourceClaims, "conflict")
			return nil, fmt.Errorf("create user %s: %w", claims.ExternalID, err)
		}
		s.logger.Info("user created concurrently; refreshing winner", zap.String("external_id", claims.ExternalID))
		return s.refreshFromClaims(ctx, existing, claims)
	}

	s.metrics.RecordSync(syncSourceClaims, "created")
	s.logger.Info("created user from credential", zap.String("external_id", user.ExternalID), zap.String("user_id", user.ID))
	return user, nil
}

// refreshFromClaims overwrites email and names that differ from the claims.
// Claims without a value for a field carry no information about it.
func (s *DirectoryService) refreshFromClaims(ctx context.Context, user *domain.User, claims domain.IdentityClaims) (*domain.User, error) {
	changed := false
	if email := claims.PrimaryEmail(); email != "" && email != user.Email {
		user.Email = email
		changed = true
	}
	if first := deref(claims.FirstName); first != "" && first != user.FirstName {
		user.FirstName = first
		changed = true
	}
	if last := deref(claims.LastName); last != "" && last != user.LastName {
		user.LastName = last
		changed = true
	}
	if !changed {
		s.metrics.RecordSync(syncSourceClaims, "unchanged")
		return user, nil
	}

	user.LastSyncedAt = s.now()
	if err := s.users.Update(ctx, user); err != nil {
		s.metrics.RecordSync(syncSourceClaims, "failed")
		return nil, fmt.Errorf("update user %s: %w", user.ExternalID, err)
	}
	s.metrics.RecordSync(syncSourceClaims, "updated")
	s.logger.Info("updated user from credential", zap.String("external_id", user.ExternalID))
	return user, nil
}

// SyncFromWebhook applies a verified identity event. Handlers are idempotent:
// redelivered or reordered events degrade to logged no-ops.
func (s *DirectoryService) SyncFromWebhook(ctx context.Context, event domain.WebhookEvent) error {
	switch event.Type {
	case domain.WebhookUserCreated, domain.WebhookUserUpdated, domain.WebhookUserDeleted:
		if event.User == nil || event.User.ID == "" {
			return fmt.Errorf("%s event has no user id", event.Type)
		}
	}

	switch event.Type {
	case domain.WebhookUserCreated:
		return s.handleUserCreated(ctx, event.User)
	case domain.WebhookUserUpdated:
		return s.handleUserUpdated(ctx, event.User)
	case domain.WebhookUserDeleted:
		return s.handleUserDeleted(ctx, event.User)
	default:
		s.metrics.RecordSync(syncSourceWebhook, "unhandled")
		s.logger.Info("unhandled webhook type", zap.String("event_type", string(event.Type)), zap.String("event_id", event.ID))
		return nil
	}
}

func (s *DirectoryService) handleUserCreated(ctx context.Context, data *domain.WebhookUser) error {
	logger := s.logger.With(zap.String("event_type", string(domain.WebhookUserCreated)), zap.String("external_id", data.ID))

	if _, err := s.users.GetByExternalID(ctx, data.ID); err == nil {
		s.metrics.RecordSync(syncSourceWebhook, "duplicate")
		logger.Info("user already exists")
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		s.metrics.RecordSync(syncSourceWebhook, "failed")
		return fmt.Errorf("lookup user %s: %w", data.ID, err)
	}

	user := &domain.User{
		ExternalID:   data.ID,
		Email:        data.PrimaryEmail(),
		FirstName:    deref(data.FirstName),
		LastName:     deref(data.LastName),
		Role:         domain.RoleUser,
		Skills:       []string{},
		LastSyncedAt: s.now(),
	}
	if data.PublicMetadata != nil {
		user.Role = s.roleOrDefault(data.ID, data.PublicMetadata.Role)
		user.Skills = domain.NormalizeSkills(data.PublicMetadata.Skills)
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			if _, getErr := s.users.GetByExternalID(ctx, data.ID); getErr == nil {
				s.metrics.RecordSync(syncSourceWebhook, "duplicate")
				logger.Info("user created concurrently")
				return nil
			}
		}
		s.metrics.RecordSync(syncSourceWebhook, "failed")
		return fmt.Errorf("create user %s: %w", data.ID, err)
	}

	s.metrics.RecordSync(syncSourceWebhook, "created")
	logger.Info("created user from webhook", zap.String("user_id", user.ID))
	return nil
}

func (s *DirectoryService) handleUserUpdated(ctx context.Context, data *domain.WebhookUser) error {
	logger := s.logger.With(zap.String("event_type", string(domain.WebhookUserUpdated)), zap.String("external_id", data.ID))

	user, err := s.users.GetByExternalID(ctx, data.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.metrics.RecordSync(syncSourceWebhook, "noop")
			logger.Warn("user not found for update")
			return nil
		}
		s.metrics.RecordSync(syncSourceWebhook, "failed")
		return fmt.Errorf("lookup user %s: %w", data.ID, err)
	}

	if len(data.EmailAddresses) > 0 {
		user.Email = data.PrimaryEmail()
	}
	if data.FirstName != nil {
		user.FirstName = *data.FirstName
	}
	if data.LastName != nil {
		user.LastName = *data.LastName
	}
	if data.PublicMetadata != nil {
		if data.PublicMetadata.Role != nil {
			if role, ok := domain.ParseRole(*data.PublicMetadata.Role); ok {
				user.Role = role
			} else {
				logger.Warn("ignoring invalid role in metadata", zap.String("role", *data.PublicMetadata.Role))
			}
		}
		if data.PublicMetadata.Skills != nil {
			user.Skills = domain.NormalizeSkills(data.PublicMetadata.Skills)
		}
	}
	user.LastSyncedAt = s.now()

	if err := s.users.Update(ctx, user); err != nil {
		s.metrics.RecordSync(syncSourceWebhook, "failed")
		return fmt.Errorf("update user %s: %w", data.ID, err)
	}

	s.metrics.RecordSync(syncSourceWebhook, "updated")
	logger.Info("updated user from webhook")
	return nil
}

// handleUserDeleted records the signal only; the user row is kept so ticket
// assignment history stays intact.
func (s *DirectoryService) handleUserDeleted(ctx context.Context, data *domain.WebhookUser) error {
	logger := s.logger.With(zap.String("event_type", string(domain.WebhookUserDeleted)), zap.String("external_id", data.ID))

	user, err := s.users.GetByExternalID(ctx, data.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.metrics.RecordSync(syncSourceWebhook, "noop")
			logger.Warn("user not found for deletion")
			return nil
		}
		s.metrics.RecordSync(syncSourceWebhook, "failed")
		return fmt.Errorf("lookup user %s: %w", data.ID, err)
	}

	s.metrics.RecordSync(syncSourceWebhook, "deleted_upstream")
	logger.Info("user deleted at identity provider; local record retained", zap.String("user_id", user.ID))
	return nil
}

func (s *DirectoryService) roleOrDefault(externalID string, raw *string) domain.Role {
	if raw == nil {
		return domain.RoleUser
	}
	role, ok := domain.ParseRole(*raw)
	if !ok {
		s.logger.Warn("invalid role in metadata; defaulting to user",
			zap.String("external_id", externalID),
			zap.String("role", *raw))
		return domain.RoleUser
	}
	return role
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
