package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeSessionCreated  = "session.created"
	EventTypeSessionRotated  = "session.rotated"
	EventTypeSessionRevoked  = "session.revoked"
	EventTypeBreachDetected  = "session.breach_detected"
	EventTypePasswordChanged = "password.reset"
)

// SecurityEvent describes a change to a user's sessions or credentials.
type SecurityEvent struct {
	BaseEvent
	UserID            string `json:"user_id"`
	SessionID         string `json:"session_id,omitempty"`
	PreviousSessionID string `json:"previous_session_id,omitempty"`
	RevokedSessions   int64  `json:"revoked_sessions,omitempty"`
	IPAddress         string `json:"ip_address"`
	UserAgent         string `json:"user_agent"`
}

type SecurityEventInput struct {
	UserID            string
	SessionID         string
	PreviousSessionID string
	RevokedSessions   int64
	IPAddress         string
	UserAgent         string
}

func NewSecurityEvent(eventType string, in SecurityEventInput, at time.Time) *SecurityEvent {
	data := map[string]interface{}{
		"user_id": in.UserID,
	}
	if in.SessionID != "" {
		data["session_id"] = in.SessionID
	}
	if in.PreviousSessionID != "" {
		data["previous_session_id"] = in.PreviousSessionID
	}
	if in.RevokedSessions > 0 {
		data["revoked_sessions"] = in.RevokedSessions
	}

	return &SecurityEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.NewString(),
			Type:      eventType,
			Timestamp: at,
			Data:      data,
		},
		UserID:            in.UserID,
		SessionID:         in.SessionID,
		PreviousSessionID: in.PreviousSessionID,
		RevokedSessions:   in.RevokedSessions,
		IPAddress:         in.IPAddress,
		UserAgent:         in.UserAgent,
	}
}

func SecurityEventTypes() []string {
	return []string{
		EventTypeSessionCreated,
		EventTypeSessionRotated,
		EventTypeSessionRevoked,
		EventTypeBreachDetected,
		EventTypePasswordChanged,
	}
}
