package domain

// EmailAddress mirrors the identity provider's email entry.
type EmailAddress struct {
	EmailAddress string `json:"email_address"`
}

// PublicMetadata holds the application fields the provider stores per user.
// Nil fields were absent from the source document.
type PublicMetadata struct {
	Role   *string  `json:"role,omitempty"`
	Skills []string `json:"skills,omitempty"`
}

// IdentityClaims are the verified attributes of a bearer credential.
type IdentityClaims struct {
	ExternalID     string
	EmailAddresses []EmailAddress
	FirstName      *string
	LastName       *string
	Metadata       PublicMetadata
}

// PrimaryEmail returns the first email or "".
func (c IdentityClaims) PrimaryEmail() string {
	return firstEmail(c.EmailAddresses)
}

// WebhookEventType is the provider's event kind tag.
type WebhookEventType string

const (
	WebhookUserCreated WebhookEventType = "user.created"
	WebhookUserUpdated WebhookEventType = "user.updated"
	WebhookUserDeleted WebhookEventType = "user.deleted"
)

// WebhookUser is the data object of user.* events.
type WebhookUser struct {
	ID             string          `json:"id"`
	EmailAddresses []EmailAddress  `json:"email_addresses"`
	FirstName      *string         `json:"first_name"`
	LastName       *string         `json:"last_name"`
	PublicMetadata *PublicMetadata `json:"public_metadata"`
	Deleted        bool            `json:"deleted"`
}

// PrimaryEmail returns the first email or "".
func (u WebhookUser) PrimaryEmail() string {
	return firstEmail(u.EmailAddresses)
}

// WebhookEvent is a decoded, verified provider event.
// User is set for user.* kinds and nil for kinds the service does not handle.
type WebhookEvent struct {
	ID   string
	Type WebhookEventType
	User *WebhookUser
}

func firstEmail(addrs []EmailAddress) string {
	if len(addrs) == 0 {
		return ""
	}
	return addrs[0].EmailAddress
}
