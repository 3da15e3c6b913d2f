package events

import (
	"time"

	"github.com/spec-kit/courier-portal/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSessionRestored    EventType = "session_restored"
	EventSessionEstablished EventType = "session_established"
	EventSessionRefreshed   EventType = "session_refreshed"
	EventSessionCleared     EventType = "session_cleared"
	EventLoginFailed        EventType = "login_failed"
	EventRefreshFailed      EventType = "refresh_failed"
	EventProfileUpdated     EventType = "profile_updated"
	EventStorageMigrated    EventType = "storage_migrated"
)

// SessionEventTypes lists every session lifecycle event.
func SessionEventTypes() []EventType {
	return []EventType{
		EventSessionRestored,
		EventSessionEstablished,
		EventSessionRefreshed,
		EventSessionCleared,
		EventLoginFailed,
		EventRefreshFailed,
		EventProfileUpdated,
		EventStorageMigrated,
	}
}

// Event represents a session lifecycle change emitted by a manager.
type Event struct {
	ID        string              `json:"id"`
	Type      EventType           `json:"type"`
	SessionID string              `json:"session_id"`
	UserType  domain.IdentityType `json:"user_type,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
	Payload   interface{}         `json:"payload,omitempty"`
}

// ClearedPayload explains why a session was torn down.
type ClearedPayload struct {
	Reason string `json:"reason"`
	Silent bool   `json:"silent"`
}

// LoginFailedPayload carries the message shown to the user.
type LoginFailedPayload struct {
	Attempted domain.IdentityType `json:"attempted"`
	Message   string              `json:"message"`
}

// MigratedPayload lists keys moved out of long lived storage.
type MigratedPayload struct {
	Keys []string `json:"keys"`
}
