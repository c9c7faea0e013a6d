package models

import (
	"encoding/json"
	"time"
)

// AuditAction enumerates the mutations recorded in event history.
type AuditAction string

const (
	AuditActionCreate       AuditAction = "create"
	AuditActionUpdate       AuditAction = "update"
	AuditActionDelete       AuditAction = "delete"
	AuditActionStatusUpdate AuditAction = "status_update"
)

// AuditEntry is an immutable event_history record.
type AuditEntry struct {
	ID        int64           `db:"id" json:"id"`
	EventID   int64           `db:"event_id" json:"event_id"`
	Action    AuditAction     `db:"action" json:"action"`
	UserID    int64           `db:"user_id" json:"user_id"`
	UserName  *string         `db:"user_name" json:"user_name,omitempty"`
	Changes   json.RawMessage `db:"changes" json:"changes,omitempty"`
	Timestamp time.Time       `db:"timestamp" json:"timestamp"`
}
