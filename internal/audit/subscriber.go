package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/thiagocrux/simcasi/internal/core/events"
)

// SecuritySubscriber turns session and credential events into audit entries.
type SecuritySubscriber struct {
	writer *Writer
	logger *slog.Logger
}

func NewSecuritySubscriber(writer *Writer, logger *slog.Logger) *SecuritySubscriber {
	return &SecuritySubscriber{writer: writer, logger: logger}
}

func (s *SecuritySubscriber) RegisterEventHandlers(bus *events.EventBus) {
	types := events.SecurityEventTypes()
	for _, t := range types {
		bus.Subscribe(t, s.Handle)
	}
	s.logger.Info("audit event handlers registered", "handlers", types)
}

func (s *SecuritySubscriber) Handle(ctx context.Context, event events.Event) error {
	ev, ok := event.(*events.SecurityEvent)
	if !ok {
		return fmt.Errorf("expected SecurityEvent, got %T", event)
	}

	entry := Entry{
		EntityName: "session",
		EntityID:   ev.SessionID,
		After:      ev.Payload(),
	}
	switch ev.EventType() {
	case events.EventTypeSessionCreated:
		entry.Action = ActionLogin
	case events.EventTypeSessionRotated:
		entry.Action = ActionRefresh
	case events.EventTypeSessionRevoked:
		entry.Action = ActionLogout
	case events.EventTypeBreachDetected:
		entry.Action = ActionBreach
		s.logger.WarnContext(ctx, "security breach recorded",
			"user_id", ev.UserID,
			"session_id", ev.SessionID,
			"revoked_sessions", ev.RevokedSessions)
	case events.EventTypePasswordChanged:
		entry.Action = ActionPasswordReset
		entry.EntityName = "user"
		entry.EntityID = ev.UserID
	default:
		return fmt.Errorf("unhandled security event %s", ev.EventType())
	}

	// The event owner is the actor: these events happen before or outside an authenticated scope.
	scope := Context{
		UserID:    ev.UserID,
		IPAddress: ev.IPAddress,
		UserAgent: ev.UserAgent,
	}
	return s.writer.Record(WithContext(ctx, scope), entry)
}
