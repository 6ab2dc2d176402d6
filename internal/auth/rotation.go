package auth

import (
	"context"

	"github.com/thiagocrux/simcasi/internal"
	sessionDatamodel "github.com/thiagocrux/simcasi/internal/core/datamodel/session"
	"github.com/thiagocrux/simcasi/internal/core/events"
)

// Refresh exchanges a refresh token for a new pair bound to a new session.
// State outcomes come back in the result; the error is reserved for store failures.
func (s *Service) Refresh(ctx context.Context, refreshToken string, client internal.ClientInfo) (*RotationResult, error) {
	result, err := s.rotate(ctx, refreshToken, client)
	if err != nil {
		s.metrics.ObserveRefresh("error")
		return nil, err
	}
	s.metrics.ObserveRefresh(string(result.Outcome))
	return result, nil
}

func (s *Service) rotate(ctx context.Context, refreshToken string, client internal.ClientInfo) (*RotationResult, error) {
	claims := s.tokens.VerifyRefreshToken(refreshToken)
	if claims == nil {
		return &RotationResult{Outcome: RotationInvalidToken}, nil
	}

	current, err := s.sessions.FindByID(ctx, claims.SessionID, true)
	if err != nil {
		return nil, internal.NewInternalError("failed to load session", err)
	}
	if current == nil {
		return &RotationResult{Outcome: RotationSessionExpired}, nil
	}
	if current.UserID != claims.UserID() {
		s.logger.WarnContext(ctx, "refresh token subject does not own its session",
			"session_id", current.ID,
			"token_subject", claims.UserID())
		return &RotationResult{Outcome: RotationInvalidToken}, nil
	}

	// A retired session presented again means the token was replayed.
	if current.IsDeleted() {
		return s.breach(ctx, current, client)
	}
	if !current.ExpiresAt.After(s.now()) {
		return &RotationResult{Outcome: RotationSessionExpired}, nil
	}

	user, err := s.users.FindByID(ctx, current.UserID)
	if err != nil {
		return nil, internal.NewInternalError("failed to load user", err)
	}
	if user == nil || user.IsDeleted() || user.IsSystem {
		return &RotationResult{Outcome: RotationUserInactive}, nil
	}
	role, err := s.roles.FindByID(ctx, user.RoleID)
	if err != nil {
		return nil, internal.NewInternalError("failed to load role", err)
	}
	if role == nil {
		return &RotationResult{Outcome: RotationUserInactive}, nil
	}

	retired, err := s.sessions.SoftDelete(ctx, current.ID)
	if err != nil {
		return nil, internal.NewInternalError("failed to retire session", err)
	}
	if !retired {
		// Lost the race: another request rotated or revoked this session after we read it.
		return s.breach(ctx, current, client)
	}

	next := s.newSession(user.ID, client)
	if err := s.sessions.Create(ctx, next); err != nil {
		return nil, internal.NewInternalError("failed to create session", err)
	}

	pair, err := s.issue(user, role, next.ID, claims.RememberMe)
	if err != nil {
		return nil, internal.NewInternalError("failed to issue tokens", err)
	}

	s.publish(ctx, events.EventTypeSessionRotated, events.SecurityEventInput{
		UserID:            user.ID,
		SessionID:         next.ID,
		PreviousSessionID: current.ID,
		IPAddress:         client.IPAddress,
		UserAgent:         client.UserAgent,
	})

	return &RotationResult{
		Outcome:   RotationRotated,
		Tokens:    pair,
		SessionID: next.ID,
		User:      NewPublicUser(user, role.Code),
	}, nil
}

// breach revokes every active session of the owner. If revocation fails the
// attempt fails too; it never falls back to rotating.
func (s *Service) breach(ctx context.Context, replayed *sessionDatamodel.Session, client internal.ClientInfo) (*RotationResult, error) {
	revoked, err := s.sessions.RevokeAllByUserID(ctx, replayed.UserID)
	if err != nil {
		return nil, internal.NewInternalError("failed to revoke sessions after token reuse", err)
	}

	s.logger.WarnContext(ctx, "refresh token reuse detected, all sessions revoked",
		"user_id", replayed.UserID,
		"session_id", replayed.ID,
		"revoked_sessions", revoked,
		"ip_address", client.IPAddress)
	s.metrics.ObserveBreach()
	s.publish(ctx, events.EventTypeBreachDetected, events.SecurityEventInput{
		UserID:          replayed.UserID,
		SessionID:       replayed.ID,
		RevokedSessions: revoked,
		IPAddress:       client.IPAddress,
		UserAgent:       client.UserAgent,
	})

	return &RotationResult{Outcome: RotationBreachDetected}, nil
}
