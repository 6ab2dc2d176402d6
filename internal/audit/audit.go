package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	auditDatamodel "github.com/thiagocrux/simcasi/internal/core/datamodel/audit"
)

const (
	ActionCreate        = "CREATE"
	ActionUpdate        = "UPDATE"
	ActionDelete        = "DELETE"
	ActionLogin         = "LOGIN"
	ActionRefresh       = "REFRESH"
	ActionLogout        = "LOGOUT"
	ActionBreach        = "BREACH_DETECTED"
	ActionPasswordReset = "PASSWORD_RESET"
)

const maxListLimit = 200

type Store interface {
	Create(ctx context.Context, entry *auditDatamodel.AuditLog) error
	List(ctx context.Context, filter Filter) ([]auditDatamodel.AuditLog, error)
}

type Filter struct {
	UserID     string
	EntityName string
	EntityID   string
	Action     string
	Limit      int
	Offset     int
}

func (f *Filter) Normalize() {
	if f.Limit <= 0 || f.Limit > maxListLimit {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// Entry describes one state change. Before is nil for creations, After for deletions.
type Entry struct {
	Action     string
	EntityName string
	EntityID   string
	Before     interface{}
	After      interface{}
}

// Writer appends entries attributed to the audit scope found in the context.
type Writer struct {
	store Store
	now   func() time.Time
}

func NewWriter(store Store) *Writer {
	return &Writer{store: store, now: time.Now}
}

func (w *Writer) Record(ctx context.Context, e Entry) error {
	ac, _ := FromContext(ctx)

	before, err := snapshot(e.Before)
	if err != nil {
		return fmt.Errorf("audit snapshot before: %w", err)
	}
	after, err := snapshot(e.After)
	if err != nil {
		return fmt.Errorf("audit snapshot after: %w", err)
	}

	row := &auditDatamodel.AuditLog{
		ID:         uuid.NewString(),
		Action:     e.Action,
		EntityName: e.EntityName,
		EntityID:   e.EntityID,
		OldValue:   before,
		NewValue:   after,
		IPAddress:  ac.IPAddress,
		UserAgent:  ac.UserAgent,
		CreatedAt:  w.now().UTC(),
	}
	if ac.UserID != "" {
		actor := ac.UserID
		row.UserID = &actor
	}

	if err := w.store.Create(ctx, row); err != nil {
		return fmt.Errorf("write audit log %s %s: %w", e.Action, e.EntityName, err)
	}
	return nil
}

func snapshot(v interface{}) (*string, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}
