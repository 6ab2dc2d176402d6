package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/thiagocrux/simcasi/internal"
	sessionDatamodel "github.com/thiagocrux/simcasi/internal/core/datamodel/session"
	userDatamodel "github.com/thiagocrux/simcasi/internal/core/datamodel/user"
	"github.com/thiagocrux/simcasi/internal/core/events"
	"github.com/thiagocrux/simcasi/pkg/metrics"
)

// ServiceDeps lists the collaborators of the auth service. Events, Notifier and Metrics are optional.
type ServiceDeps struct {
	Users       UserRepository
	Sessions    SessionRepository
	Roles       RoleRepository
	Permissions PermissionRepository
	ResetTokens ResetTokenRepository
	Tokens      TokenProvider
	Hasher      HashProvider
	Events      events.Publisher
	Notifier    ResetNotifier
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
	ResetTTL    time.Duration
}

// Service is the main auth service with dependencies
type Service struct {
	users       UserRepository
	sessions    SessionRepository
	roles       RoleRepository
	resets      ResetTokenRepository
	permissions *PermissionResolver
	tokens      TokenProvider
	hasher      HashProvider
	events      events.Publisher
	notifier    ResetNotifier
	metrics     *metrics.Metrics
	logger      *slog.Logger
	resetTTL    time.Duration
	now         func() time.Time

	// compared against when the email is unknown so both paths pay for one bcrypt run
	dummyHash string
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new auth service
func NewService(deps ServiceDeps, opts ...Option) (*Service, error) {
	if deps.Users == nil || deps.Sessions == nil || deps.Roles == nil || deps.Permissions == nil {
		return nil, errors.New("auth: user, session, role and permission repositories are required")
	}
	if deps.Tokens == nil || deps.Hasher == nil {
		return nil, errors.New("auth: token provider and hasher are required")
	}

	s := &Service{
		users:       deps.Users,
		sessions:    deps.Sessions,
		roles:       deps.Roles,
		resets:      deps.ResetTokens,
		permissions: NewPermissionResolver(deps.Permissions),
		tokens:      deps.Tokens,
		hasher:      deps.Hasher,
		events:      deps.Events,
		notifier:    deps.Notifier,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		resetTTL:    deps.ResetTTL,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.resetTTL <= 0 {
		s.resetTTL = time.Hour
	}
	if s.notifier == nil {
		s.notifier = NewLogResetNotifier(s.logger)
	}

	placeholder, err := GenerateRandomToken()
	if err != nil {
		return nil, err
	}
	if s.dummyHash, err = s.hasher.Hash(placeholder[:MaxPasswordLength/2]); err != nil {
		return nil, err
	}
	return s, nil
}

// Login verifies credentials, opens a session and issues a token pair bound to it.
func (s *Service) Login(ctx context.Context, dto LoginDTO, client internal.ClientInfo) (*LoginResult, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, NormalizeEmail(dto.Email))
	if err != nil {
		return nil, internal.NewInternalError("failed to load user", err)
	}

	if user == nil || user.IsDeleted() || user.IsSystem {
		if _, err := s.hasher.Compare(dto.Password, s.dummyHash); err != nil {
			s.logger.ErrorContext(ctx, "dummy password comparison failed", "error", err)
		}
		s.metrics.ObserveLogin("invalid_credentials")
		return nil, internal.ErrInvalidCredentials
	}

	match, err := s.hasher.Compare(dto.Password, user.PasswordHash)
	if err != nil {
		return nil, internal.NewInternalError("failed to verify credentials", err)
	}
	if !match {
		s.metrics.ObserveLogin("invalid_credentials")
		return nil, internal.ErrInvalidCredentials
	}

	role, err := s.roles.FindByID(ctx, user.RoleID)
	if err != nil {
		return nil, internal.NewInternalError("failed to load role", err)
	}
	if role == nil {
		s.logger.WarnContext(ctx, "login rejected: user has no active role", "user_id", user.ID, "role_id", user.RoleID)
		s.metrics.ObserveLogin("invalid_credentials")
		return nil, internal.ErrInvalidCredentials
	}

	session := s.newSession(user.ID, client)
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, internal.NewInternalError("failed to create session", err)
	}

	codes, err := s.permissions.PermissionCodes(ctx, role.ID)
	if err != nil {
		return nil, internal.NewInternalError("failed to resolve permissions", err)
	}

	pair, err := s.issue(user, role, session.ID, dto.RememberMe)
	if err != nil {
		return nil, internal.NewInternalError("failed to issue tokens", err)
	}

	s.metrics.ObserveLogin("success")
	s.publish(ctx, events.EventTypeSessionCreated, events.SecurityEventInput{
		UserID:    user.ID,
		SessionID: session.ID,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
	})

	return &LoginResult{
		TokenPair:   pair,
		SessionID:   session.ID,
		User:        NewPublicUser(user, role.Code),
		Permissions: codes,
	}, nil
}

// Authenticate resolves the caller from an access token without touching the store.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*Principal, error) {
	if accessToken == "" {
		return nil, internal.ErrUnauthenticated
	}
	claims, err := s.tokens.VerifyAccessToken(accessToken)
	if err != nil {
		return nil, err
	}
	return &Principal{
		UserID:    claims.UserID(),
		RoleID:    claims.RoleID,
		RoleCode:  claims.RoleCode,
		SessionID: claims.SessionID,
	}, nil
}

// Logout retires the session. A session that is already gone is not an error.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	retired, err := s.sessions.SoftDelete(ctx, sessionID)
	if err != nil {
		return internal.NewInternalError("failed to revoke session", err)
	}
	if !retired {
		s.logger.DebugContext(ctx, "logout: session already inactive", "session_id", sessionID)
		return nil
	}

	client := internal.ClientFromContext(ctx)
	s.publish(ctx, events.EventTypeSessionRevoked, events.SecurityEventInput{
		UserID:    s.sessionOwner(ctx, sessionID),
		SessionID: sessionID,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
	})
	return nil
}

// SessionIDFromTokens reads the session id a logout should revoke, preferring the refresh token.
func (s *Service) SessionIDFromTokens(accessToken, refreshToken string) string {
	if refreshToken != "" {
		if claims := s.tokens.VerifyRefreshToken(refreshToken); claims != nil {
			return claims.SessionID
		}
	}
	if accessToken != "" {
		if claims := s.tokens.VerifyToken(accessToken); claims != nil {
			return claims.SessionID
		}
	}
	return ""
}

func (s *Service) sessionOwner(ctx context.Context, sessionID string) string {
	session, err := s.sessions.FindByID(ctx, sessionID, true)
	if err != nil || session == nil {
		return ""
	}
	return session.UserID
}

func (s *Service) newSession(userID string, client internal.ClientInfo) *sessionDatamodel.Session {
	now := s.now().UTC()
	return &sessionDatamodel.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: s.tokens.RefreshExpiryDate().UTC(),
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		CreatedAt: now,
	}
}

func (s *Service) issue(user *userDatamodel.User, role *userDatamodel.Role, sessionID string, rememberMe bool) (TokenPair, error) {
	accessToken, err := s.tokens.GenerateAccessToken(AccessClaims{
		UserID:    user.ID,
		RoleID:    role.ID,
		RoleCode:  role.Code,
		SessionID: sessionID,
	})
	if err != nil {
		return TokenPair{}, err
	}

	refreshToken, err := s.tokens.GenerateRefreshToken(RefreshClaims{
		UserID:     user.ID,
		SessionID:  sessionID,
		RememberMe: rememberMe,
	})
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresIn:  s.tokens.AccessExpirationSeconds(),
		RefreshExpiresIn: s.tokens.RefreshExpirationSeconds(),
		RememberMe:       rememberMe,
	}, nil
}

// publish never fails the caller; subscribers own their own error handling.
func (s *Service) publish(ctx context.Context, eventType string, in events.SecurityEventInput) {
	if s.events == nil {
		return
	}
	event := events.NewSecurityEvent(eventType, in, s.now().UTC())
	if err := s.events.PublishSync(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "security event subscribers failed",
			"event_type", eventType,
			"event_id", event.EventID(),
			"error", err)
	}
}

// GenerateRandomToken generates a cryptographically secure random token
func GenerateRandomToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
