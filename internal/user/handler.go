package user

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/thiagocrux/simcasi/internal"
	"github.com/thiagocrux/simcasi/internal/auth"
)

// Handler methods run inside protected operations; the caller is already
// authenticated and authorized when they are invoked.
type Handler struct {
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	return &Handler{Service: svc}
}

func decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return internal.NewValidationError("invalid request body", internal.ErrCodeValidationFailed)
	}
	return nil
}

func caller(ctx context.Context) (auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return auth.Principal{}, internal.ErrUnauthenticated
	}
	return principal, nil
}

// GetCurrentUser handles GET /users/me
func (h *Handler) GetCurrentUser(ctx context.Context, r *http.Request) (int, interface{}, error) {
	principal, err := caller(ctx)
	if err != nil {
		return 0, nil, err
	}
	profile, err := h.Service.Me(ctx, principal.UserID)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, profile, nil
}

// ChangeOwnPassword handles PUT /users/me/password
func (h *Handler) ChangeOwnPassword(ctx context.Context, r *http.Request) (int, interface{}, error) {
	principal, err := caller(ctx)
	if err != nil {
		return 0, nil, err
	}
	var dto ChangePasswordDTO
	if err := decode(r, &dto); err != nil {
		return 0, nil, err
	}
	if err := h.Service.ChangePassword(ctx, principal.UserID, dto); err != nil {
		return 0, nil, err
	}
	return http.StatusNoContent, nil, nil
}

func (h *Handler) List(ctx context.Context, r *http.Request) (int, interface{}, error) {
	users, err := h.Service.List(ctx)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, map[string]interface{}{"data": users}, nil
}

func (h *Handler) Get(ctx context.Context, r *http.Request) (int, interface{}, error) {
	u, err := h.Service.GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, u, nil
}

func (h *Handler) Create(ctx context.Context, r *http.Request) (int, interface{}, error) {
	var dto CreateUserDTO
	if err := decode(r, &dto); err != nil {
		return 0, nil, err
	}
	u, err := h.Service.Create(ctx, dto)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, u, nil
}

func (h *Handler) UpdateRole(ctx context.Context, r *http.Request) (int, interface{}, error) {
	var dto UpdateRoleDTO
	if err := decode(r, &dto); err != nil {
		return 0, nil, err
	}
	u, err := h.Service.UpdateRole(ctx, chi.URLParam(r, "id"), dto)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, u, nil
}

func (h *Handler) Delete(ctx context.Context, r *http.Request) (int, interface{}, error) {
	if err := h.Service.Delete(ctx, chi.URLParam(r, "id")); err != nil {
		return 0, nil, err
	}
	return http.StatusNoContent, nil, nil
}
