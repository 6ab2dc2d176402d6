package postgres

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/thiagocrux/simcasi/internal/audit"
	auditDatamodel "github.com/thiagocrux/simcasi/internal/core/datamodel/audit"
)

const insertAuditLog = `INSERT INTO audit_logs
	(id, user_id, action, entity_name, entity_id, old_value, new_value, ip_address, user_agent, created_at)
	VALUES (:id, :user_id, :action, :entity_name, :entity_id, :old_value, :new_value, :ip_address, :user_agent, :created_at)`

const selectAuditLogs = `SELECT id, user_id, action, entity_name, entity_id, old_value, new_value, ip_address, user_agent, created_at
	FROM audit_logs`

// AuditRepository is append-only: there is no update or delete.
type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Create(ctx context.Context, entry *auditDatamodel.AuditLog) error {
	_, err := r.db.NamedExecContext(ctx, insertAuditLog, entry)
	return err
}

func (r *AuditRepository) List(ctx context.Context, filter audit.Filter) ([]auditDatamodel.AuditLog, error) {
	filter.Normalize()

	var (
		conds []string
		args  []interface{}
	)
	if filter.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.EntityName != "" {
		conds = append(conds, "entity_name = ?")
		args = append(args, filter.EntityName)
	}
	if filter.EntityID != "" {
		conds = append(conds, "entity_id = ?")
		args = append(args, filter.EntityID)
	}
	if filter.Action != "" {
		conds = append(conds, "action = ?")
		args = append(args, filter.Action)
	}

	query := selectAuditLogs
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows := []auditDatamodel.AuditLog{}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return rows, nil
}
