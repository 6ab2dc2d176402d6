package audit

import "time"

// AuditLog rows are append-only.
type AuditLog struct {
	ID         string    `db:"id"`
	UserID     *string   `db:"user_id"`
	Action     string    `db:"action"`
	EntityName string    `db:"entity_name"`
	EntityID   string    `db:"entity_id"`
	OldValue   *string   `db:"old_value"`
	NewValue   *string   `db:"new_value"`
	IPAddress  string    `db:"ip_address"`
	UserAgent  string    `db:"user_agent"`
	CreatedAt  time.Time `db:"created_at"`
}
