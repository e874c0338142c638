package webhook

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spec-kit/triage-desk/internal/domain"
)

var errMissingType = errors.New("event type is missing")

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Decode turns a verified payload into a tagged event. Kinds other than
// user.* keep a nil User so the directory can acknowledge them as unhandled.
func Decode(body []byte, messageID string) (domain.WebhookEvent, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return domain.WebhookEvent{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return domain.WebhookEvent{}, errMissingType
	}

	event := domain.WebhookEvent{ID: messageID, Type: domain.WebhookEventType(env.Type)}
	switch event.Type {
	case domain.WebhookUserCreated, domain.WebhookUserUpdated, domain.WebhookUserDeleted:
		if len(env.Data) == 0 || string(env.Data) == "null" {
			return domain.WebhookEvent{}, fmt.Errorf("%s: data is missing", env.Type)
		}
		var user domain.WebhookUser
		if err := json.Unmarshal(env.Data, &user); err != nil {
			return domain.WebhookEvent{}, fmt.Errorf("%s: decode data: %w", env.Type, err)
		}
		event.User = &user
	}
	return event, nil
}
