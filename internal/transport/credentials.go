package transport

import (
	"net/http"
	"strings"
	"time"

	"github.com/thiagocrux/simcasi/internal"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
	RefreshTokenHeader = "X-Refresh-Token"
)

// TokenCookies carries a token pair to the browser.
type TokenCookies struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresIn  int64
	RefreshExpiresIn int64
	RememberMe       bool
}

// CookieWriter sets and clears the HTTP-only credential cookies.
type CookieWriter struct {
	cfg internal.CookieConfig
}

func NewCookieWriter(cfg internal.CookieConfig) *CookieWriter {
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	return &CookieWriter{cfg: cfg}
}

// Set writes both cookies. The refresh cookie only persists across browser
// restarts when remember-me was requested; otherwise it is session-scoped.
func (c *CookieWriter) Set(w http.ResponseWriter, tokens TokenCookies) {
	http.SetCookie(w, c.cookie(AccessTokenCookie, tokens.AccessToken, int(tokens.AccessExpiresIn)))

	refreshMaxAge := 0
	if tokens.RememberMe {
		refreshMaxAge = int(tokens.RefreshExpiresIn)
	}
	http.SetCookie(w, c.cookie(RefreshTokenCookie, tokens.RefreshToken, refreshMaxAge))
}

func (c *CookieWriter) Clear(w http.ResponseWriter) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		cookie := c.cookie(name, "", -1)
		cookie.Expires = time.Unix(0, 0)
		http.SetCookie(w, cookie)
	}
}

func (c *CookieWriter) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     c.cfg.Path,
		Domain:   c.cfg.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.cfg.Secure,
		SameSite: c.cfg.SameSiteMode(),
	}
}

// ExtractTokenFromHeader extracts Bearer token from Authorization header
func ExtractTokenFromHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if len(authHeader) < 7 || !strings.EqualFold(authHeader[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(authHeader[7:])
}

// ExtractAccessToken prefers the Authorization header over the cookie.
func ExtractAccessToken(r *http.Request) string {
	if token := ExtractTokenFromHeader(r); token != "" {
		return token
	}
	return cookieValue(r, AccessTokenCookie)
}

// ExtractRefreshToken prefers the X-Refresh-Token header over the cookie.
func ExtractRefreshToken(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(RefreshTokenHeader)); token != "" {
		return token
	}
	return cookieValue(r, RefreshTokenCookie)
}

func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
