package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-calendar-api/internal/models"
)

// AuditRepository appends to and reads from the event_history table. Rows are never updated.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs an audit repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create stores an audit entry and assigns its identifier.
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	changes := entry.Changes
	if len(changes) == 0 {
		changes = []byte("{}")
	}
	const query = `INSERT INTO event_history (event_id, action, user_id, changes, timestamp) VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query, entry.EventID, entry.Action, entry.UserID, []byte(changes), entry.Timestamp).Scan(&entry.ID); err != nil {
		return fmt.Errorf("create audit entry: %w", err)
	}
	return nil
}

// ListByEvent returns the history of an event with acting user names, newest first.
func (r *AuditRepository) ListByEvent(ctx context.Context, eventID int64) ([]models.AuditEntry, error) {
	const query = `SELECT eh.id, eh.event_id, eh.action, eh.user_id, u.full_name AS user_name, eh.changes, eh.timestamp
FROM event_history eh LEFT JOIN users u ON u.id = eh.user_id
WHERE eh.event_id = $1 ORDER BY eh.timestamp DESC, eh.id DESC`
	entries := []models.AuditEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, eventID); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}
