package audit

import (
	"context"
	"net/http"
	"strconv"

	"github.com/thiagocrux/simcasi/internal"
	auditDatamodel "github.com/thiagocrux/simcasi/internal/core/datamodel/audit"
)

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

type LogView struct {
	ID         string  `json:"id"`
	UserID     *string `json:"user_id"`
	Action     string  `json:"action"`
	EntityName string  `json:"entity_name"`
	EntityID   string  `json:"entity_id"`
	OldValue   *string `json:"old_value,omitempty"`
	NewValue   *string `json:"new_value,omitempty"`
	IPAddress  string  `json:"ip_address"`
	UserAgent  string  `json:"user_agent"`
	CreatedAt  string  `json:"created_at"`
}

func toView(row auditDatamodel.AuditLog) LogView {
	return LogView{
		ID:         row.ID,
		UserID:     row.UserID,
		Action:     row.Action,
		EntityName: row.EntityName,
		EntityID:   row.EntityID,
		OldValue:   row.OldValue,
		NewValue:   row.NewValue,
		IPAddress:  row.IPAddress,
		UserAgent:  row.UserAgent,
		CreatedAt:  row.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// List serves GET /audit-logs. It runs inside a protected operation.
func (h *Handler) List(ctx context.Context, r *http.Request) (int, interface{}, error) {
	q := r.URL.Query()
	filter := Filter{
		UserID:     q.Get("user_id"),
		EntityName: q.Get("entity_name"),
		EntityID:   q.Get("entity_id"),
		Action:     q.Get("action"),
	}
	var err error
	if v := q.Get("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil {
			return 0, nil, internal.NewValidationFieldError("limit", "limit must be a number", internal.ErrCodeValidationFailed)
		}
	}
	if v := q.Get("offset"); v != "" {
		if filter.Offset, err = strconv.Atoi(v); err != nil {
			return 0, nil, internal.NewValidationFieldError("offset", "offset must be a number", internal.ErrCodeValidationFailed)
		}
	}
	filter.Normalize()

	rows, err := h.store.List(ctx, filter)
	if err != nil {
		return 0, nil, internal.NewInternalError("failed to list audit logs", err)
	}

	views := make([]LogView, 0, len(rows))
	for _, row := range rows {
		views = append(views, toView(row))
	}
	return http.StatusOK, map[string]interface{}{
		"data":   views,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	}, nil
}
