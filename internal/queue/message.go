package queue

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	fieldTicketID  = "ticket_id"
	fieldAttempt   = "attempt"
	fieldReason    = "reason"
	fieldLastError = "last_error"
	fieldError     = "error"
)

// Message is a triage request read from the stream.
type Message struct {
	ID        string
	TicketID  string
	Attempt   int
	Reason    string
	LastError string
	Raw       redis.XMessage
}

// ParseMessage validates stream values. A missing attempt counts as the first.
func ParseMessage(msg redis.XMessage) (Message, error) {
	ticketID, err := parseString(msg.Values, fieldTicketID)
	if err != nil {
		return Message{}, err
	}
	if ticketID == "" {
		return Message{}, errors.New("empty ticket_id")
	}

	attempt, err := parseOptionalInt(msg.Values, fieldAttempt)
	if err != nil {
		return Message{}, err
	}
	if attempt <= 0 {
		attempt = 1
	}

	return Message{
		ID:        msg.ID,
		TicketID:  ticketID,
		Attempt:   attempt,
		Reason:    parseOptionalString(msg.Values, fieldReason),
		LastError: parseOptionalString(msg.Values, fieldLastError),
		Raw:       msg,
	}, nil
}

func messageValues(msg Message, attempt int) map[string]any {
	values := map[string]any{
		fieldTicketID: msg.TicketID,
		fieldAttempt:  attempt,
	}
	if msg.Reason != "" {
		values[fieldReason] = msg.Reason
	}
	return values
}

func parseString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing %s", key)
	}
	return fmt.Sprint(raw), nil
}

func parseOptionalInt(values map[string]any, key string) (int, error) {
	raw, ok := values[key]
	if !ok {
		return 0, nil
	}
	num, err := strconv.Atoi(fmt.Sprint(raw))
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return num, nil
}

func parseOptionalString(values map[string]any, key string) string {
	raw, ok := values[key]
	if !ok {
		return ""
	}
	return fmt.Sprint(raw)
}
