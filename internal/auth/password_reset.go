package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/thiagocrux/simcasi/internal"
	sessionDatamodel "github.com/thiagocrux/simcasi/internal/core/datamodel/session"
	"github.com/thiagocrux/simcasi/internal/core/events"
)

// ResetNotifier delivers a reset token to its owner.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, user PublicUser, token string, expiresAt time.Time) error
}

// LogResetNotifier records that a reset was issued. It never logs the token.
type LogResetNotifier struct {
	logger *slog.Logger
}

func NewLogResetNotifier(logger *slog.Logger) *LogResetNotifier {
	return &LogResetNotifier{logger: logger}
}

func (n *LogResetNotifier) SendPasswordReset(ctx context.Context, user PublicUser, _ string, expiresAt time.Time) error {
	n.logger.InfoContext(ctx, "password reset issued", "user_id", user.ID, "expires_at", expiresAt)
	return nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RequestPasswordReset answers the same way whether or not the email belongs to anyone.
func (s *Service) RequestPasswordReset(ctx context.Context, dto ForgotPasswordDTO, client internal.ClientInfo) error {
	if err := dto.Validate(); err != nil {
		return err
	}
	if s.resets == nil {
		return internal.NewInternalError("password reset is not configured", nil)
	}

	user, err := s.users.FindByEmail(ctx, NormalizeEmail(dto.Email))
	if err != nil {
		return internal.NewInternalError("failed to load user", err)
	}
	if user == nil || user.IsDeleted() || user.IsSystem {
		s.logger.DebugContext(ctx, "password reset requested for unknown account", "ip_address", client.IPAddress)
		return nil
	}

	if _, err := s.resets.InvalidateForUser(ctx, user.ID); err != nil {
		return internal.NewInternalError("failed to invalidate previous reset tokens", err)
	}

	token, err := GenerateRandomToken()
	if err != nil {
		return internal.NewInternalError("failed to generate reset token", err)
	}
	now := s.now().UTC()
	record := &sessionDatamodel.PasswordResetToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: hashResetToken(token),
		ExpiresAt: now.Add(s.resetTTL),
		CreatedAt: now,
	}
	if err := s.resets.Create(ctx, record); err != nil {
		return internal.NewInternalError("failed to store reset token", err)
	}

	if err := s.notifier.SendPasswordReset(ctx, NewPublicUser(user, ""), token, record.ExpiresAt); err != nil {
		return internal.NewInternalError("failed to deliver reset token", err)
	}
	return nil
}

// ResetPassword consumes a reset token once, sets the new password and signs the user out everywhere.
func (s *Service) ResetPassword(ctx context.Context, dto ResetPasswordDTO, client internal.ClientInfo) error {
	if err := dto.Validate(); err != nil {
		return err
	}
	if s.resets == nil {
		return internal.NewInternalError("password reset is not configured", nil)
	}

	record, err := s.resets.FindActiveByHash(ctx, hashResetToken(dto.Token), s.now().UTC())
	if err != nil {
		return internal.NewInternalError("failed to load reset token", err)
	}
	if record == nil {
		return internal.ErrInvalidResetToken
	}

	used, err := s.resets.MarkUsed(ctx, record.ID)
	if err != nil {
		return internal.NewInternalError("failed to consume reset token", err)
	}
	if !used {
		return internal.ErrInvalidResetToken
	}

	user, err := s.users.FindByID(ctx, record.UserID)
	if err != nil {
		return internal.NewInternalError("failed to load user", err)
	}
	if user == nil || user.IsDeleted() || user.IsSystem {
		return internal.ErrInvalidResetToken
	}

	digest, err := s.hasher.Hash(dto.NewPassword)
	if err != nil {
		return internal.NewInternalError("failed to hash password", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, digest); err != nil {
		return internal.NewInternalError("failed to update password", err)
	}

	revoked, err := s.sessions.RevokeAllByUserID(ctx, user.ID)
	if err != nil {
		return internal.NewInternalError("failed to revoke sessions", err)
	}

	s.publish(ctx, events.EventTypePasswordChanged, events.SecurityEventInput{
		UserID:          user.ID,
		RevokedSessions: revoked,
		IPAddress:       client.IPAddress,
		UserAgent:       client.UserAgent,
	})
	return nil
}
