package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/thiagocrux/simcasi/internal"
	"github.com/thiagocrux/simcasi/internal/transport"
)

type Handler struct {
	*transport.BaseHandler
	Service          ServiceAPI
	cookies          *transport.CookieWriter
	operationTimeout time.Duration
}

func NewHandler(svc ServiceAPI, cookies *transport.CookieWriter, operationTimeout time.Duration, lg *slog.Logger) *Handler {
	return &Handler{
		BaseHandler:      transport.NewBaseHandler(lg),
		Service:          svc,
		cookies:          cookies,
		operationTimeout: operationTimeout,
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	ctx, cancel := internal.Detached(r.Context(), h.operationTimeout)
	defer cancel()

	result, err := h.Service.Login(ctx, dto, internal.ClientInfoFromRequest(r))
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	h.cookies.Set(w, cookiesFor(result.TokenPair))
	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	token := transport.ExtractRefreshToken(r)
	if token == "" && r.ContentLength != 0 {
		var dto RefreshTokenDTO
		if !h.DecodeJSON(w, r, &dto) {
			return
		}
		token = dto.RefreshToken
	}
	if token == "" {
		h.cookies.Clear(w)
		h.WriteAppError(w, r, internal.ErrUnauthenticated)
		return
	}

	ctx, cancel := internal.Detached(r.Context(), h.operationTimeout)
	defer cancel()

	result, err := h.Service.Refresh(ctx, token, internal.ClientInfoFromRequest(r))
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	if !result.Rotated() {
		h.cookies.Clear(w)
		h.WriteAppError(w, r, result.Err())
		return
	}

	h.cookies.Set(w, cookiesFor(result.Tokens))
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":       result.Tokens.AccessToken,
		"refresh_token":      result.Tokens.RefreshToken,
		"access_expires_in":  result.Tokens.AccessExpiresIn,
		"refresh_expires_in": result.Tokens.RefreshExpiresIn,
		"user":               result.User,
	})
}

// Logout always clears the cookies. Revoking the session row is best effort.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookies.Clear(w)

	sessionID := h.Service.SessionIDFromTokens(transport.ExtractAccessToken(r), transport.ExtractRefreshToken(r))

	ctx, cancel := internal.Detached(r.Context(), h.operationTimeout)
	defer cancel()
	ctx = internal.ContextWithClient(ctx, internal.ClientInfoFromRequest(r))

	if err := h.Service.Logout(ctx, sessionID); err != nil {
		h.Logger.ErrorContext(ctx, "logout: failed to revoke session", "session_id", sessionID, "error", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var dto ForgotPasswordDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	ctx, cancel := internal.Detached(r.Context(), h.operationTimeout)
	defer cancel()

	if err := h.Service.RequestPasswordReset(ctx, dto, internal.ClientInfoFromRequest(r)); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusAccepted, map[string]string{
		"message": "If the account exists, a reset link has been sent",
	})
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var dto ResetPasswordDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	ctx, cancel := internal.Detached(r.Context(), h.operationTimeout)
	defer cancel()

	if err := h.Service.ResetPassword(ctx, dto, internal.ClientInfoFromRequest(r)); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.cookies.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func cookiesFor(pair TokenPair) transport.TokenCookies {
	return transport.TokenCookies{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresIn:  pair.AccessExpiresIn,
		RefreshExpiresIn: pair.RefreshExpiresIn,
		RememberMe:       pair.RememberMe,
	}
}
