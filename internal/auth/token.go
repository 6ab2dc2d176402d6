package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/thiagocrux/simcasi/internal"
)

const (
	tokenUseAccess  = "access"
	tokenUseRefresh = "refresh"
)

// TokenProvider signs and verifies the access/refresh pair.
type TokenProvider interface {
	GenerateAccessToken(claims AccessClaims) (string, error)
	GenerateRefreshToken(claims RefreshClaims) (string, error)
	// VerifyToken returns nil for any malformed, expired or badly signed token.
	VerifyToken(token string) *Claims
	VerifyAccessToken(token string) (*Claims, error)
	VerifyRefreshToken(token string) *Claims
	AccessExpirationSeconds() int64
	RefreshExpirationSeconds() int64
	RefreshExpiryDate() time.Time
}

type AccessClaims struct {
	UserID    string
	RoleID    string
	RoleCode  string
	SessionID string
}

type RefreshClaims struct {
	UserID     string
	SessionID  string
	RememberMe bool
}

// Claims represents JWT token claims
type Claims struct {
	RoleID     string `json:"role_id,omitempty"`
	RoleCode   string `json:"role_code,omitempty"`
	SessionID  string `json:"sid"`
	RememberMe bool   `json:"remember_me,omitempty"`
	TokenUse   string `json:"token_use"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() string {
	return c.Subject
}

type JWTTokenGenerator struct {
	AccessTokenSecret  []byte
	RefreshTokenSecret []byte
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	Issuer             string

	now func() time.Time
}

type TokenOption func(*JWTTokenGenerator)

// WithTokenClock overrides the clock used for issuing and validating tokens.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(j *JWTTokenGenerator) {
		j.now = now
	}
}

func NewJWTTokenGenerator(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, issuer string, opts ...TokenOption) *JWTTokenGenerator {
	j := &JWTTokenGenerator{
		AccessTokenSecret:  []byte(accessSecret),
		RefreshTokenSecret: []byte(refreshSecret),
		AccessTokenTTL:     accessTTL,
		RefreshTokenTTL:    refreshTTL,
		Issuer:             issuer,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func (j *JWTTokenGenerator) GenerateAccessToken(c AccessClaims) (string, error) {
	claims := &Claims{
		RoleID:           c.RoleID,
		RoleCode:         c.RoleCode,
		SessionID:        c.SessionID,
		TokenUse:         tokenUseAccess,
		RegisteredClaims: j.registered(c.UserID, j.AccessTokenTTL),
	}
	return j.sign(claims, j.AccessTokenSecret)
}

func (j *JWTTokenGenerator) GenerateRefreshToken(c RefreshClaims) (string, error) {
	claims := &Claims{
		SessionID:        c.SessionID,
		RememberMe:       c.RememberMe,
		TokenUse:         tokenUseRefresh,
		RegisteredClaims: j.registered(c.UserID, j.RefreshTokenTTL),
	}
	return j.sign(claims, j.RefreshTokenSecret)
}

func (j *JWTTokenGenerator) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := j.now()
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    j.Issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (j *JWTTokenGenerator) sign(claims *Claims, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", claims.TokenUse, err)
	}
	return tokenString, nil
}

func (j *JWTTokenGenerator) parse(tokenString string, secret []byte, use string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(j.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, internal.ErrTokenExpired
		}
		return nil, internal.ErrInvalidToken
	}
	if !token.Valid || claims.TokenUse != use || claims.Subject == "" || claims.SessionID == "" {
		return nil, internal.ErrInvalidToken
	}
	return claims, nil
}

// VerifyAccessToken separates an expired access token from every other failure.
// Signatures are checked before expiry, so TOKEN_EXPIRED always means a token we issued.
func (j *JWTTokenGenerator) VerifyAccessToken(tokenString string) (*Claims, error) {
	return j.parse(tokenString, j.AccessTokenSecret, tokenUseAccess)
}

func (j *JWTTokenGenerator) VerifyRefreshToken(tokenString string) *Claims {
	claims, err := j.parse(tokenString, j.RefreshTokenSecret, tokenUseRefresh)
	if err != nil {
		return nil
	}
	return claims
}

func (j *JWTTokenGenerator) VerifyToken(tokenString string) *Claims {
	if claims, err := j.parse(tokenString, j.AccessTokenSecret, tokenUseAccess); err == nil {
		return claims
	}
	return j.VerifyRefreshToken(tokenString)
}

func (j *JWTTokenGenerator) AccessExpirationSeconds() int64 {
	return int64(j.AccessTokenTTL / time.Second)
}

func (j *JWTTokenGenerator) RefreshExpirationSeconds() int64 {
	return int64(j.RefreshTokenTTL / time.Second)
}

func (j *JWTTokenGenerator) RefreshExpiryDate() time.Time {
	return j.now().Add(j.RefreshTokenTTL)
}
