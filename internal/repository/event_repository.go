package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/school-calendar-api/internal/models"
)

const (
	eventColumns = `e.id, e.title, e.description, e.start_date, e.end_date, e.location, e.responsible_person, e.event_type, e.target_group,
e.status, e.status_note, e.status_updated_by, u.full_name AS status_updated_by_name, e.status_updated_at, e.created_by, e.created_at, e.updated_at`
	eventSource = `FROM events e LEFT JOIN users u ON u.id = e.status_updated_by`
)

// EventRepository persists calendar events.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs an event repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// List returns events matching every supplied predicate, ordered by start date.
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	where, args := eventWhere(filter)
	query := fmt.Sprintf("SELECT %s\n%s WHERE %s ORDER BY e.start_date ASC, e.id ASC", eventColumns, eventSource, where)

	events := []models.Event{}
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// GetByID fetches an event. It returns sql.ErrNoRows when absent.
func (r *EventRepository) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	query := fmt.Sprintf("SELECT %s\n%s WHERE e.id = $1", eventColumns, eventSource)
	var event models.Event
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &event, nil
}

// Create inserts an event and assigns its identifier.
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	if event.UpdatedAt.IsZero() {
		event.UpdatedAt = event.CreatedAt
	}
	if event.Status == "" {
		event.Status = models.EventStatusPending
	}
	const query = `INSERT INTO events (title, description, start_date, end_date, location, responsible_person, event_type, target_group, status, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`
	err := r.db.QueryRowxContext(ctx, query,
		event.Title, event.Description, event.StartDate, event.EndDate, event.Location, event.ResponsiblePerson,
		event.EventType, event.TargetGroup, event.Status, event.CreatedBy, event.CreatedAt, event.UpdatedAt,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// Update overwrites the editable fields of an event. It returns sql.ErrNoRows when absent.
func (r *EventRepository) Update(ctx context.Context, event *models.Event) error {
	if event.UpdatedAt.IsZero() {
		event.UpdatedAt = time.Now().UTC()
	}
	const query = `UPDATE events SET title = :title, description = :description, start_date = :start_date, end_date = :end_date,
location = :location, responsible_person = :responsible_person, event_type = :event_type, target_group = :target_group, updated_at = :updated_at
WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, event)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return requireRow(res, "update event")
}

// UpdateStatus stamps a new workflow status with provenance. It returns sql.ErrNoRows when absent.
func (r *EventRepository) UpdateStatus(ctx context.Context, id int64, status models.EventStatus, note *string, by int64, at time.Time) error {
	const query = `UPDATE events SET status = $2, status_note = $3, status_updated_by = $4, status_updated_at = $5, updated_at = $5 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, note, by, at)
	if err != nil {
		return fmt.Errorf("update event status: %w", err)
	}
	return requireRow(res, "update event status")
}

// Delete removes an event. It returns sql.ErrNoRows when absent.
func (r *EventRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM events WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return requireRow(res, "delete event")
}

// CountByStatus groups events by status, limited to the given target groups when non-nil.
func (r *EventRepository) CountByStatus(ctx context.Context, visible []models.TargetGroup) ([]models.StatusCount, error) {
	where, args := eventWhere(models.EventFilter{Visible: visible})
	query := fmt.Sprintf("SELECT e.status, COUNT(*) AS count FROM events e WHERE %s GROUP BY e.status", where)

	counts := []models.StatusCount{}
	if err := r.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("count events by status: %w", err)
	}
	return counts, nil
}

func eventWhere(filter models.EventFilter) (string, []interface{}) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Month > 0 && filter.Year > 0 {
		from, to := monthRange(filter.Year, filter.Month)
		where = append(where, fmt.Sprintf("e.start_date >= $%d AND e.start_date < $%d", len(args)+1, len(args)+2))
		args = append(args, from, to)
	}
	if filter.EventType != nil {
		where = append(where, fmt.Sprintf("e.event_type = $%d", len(args)+1))
		args = append(args, string(*filter.EventType))
	}
	if filter.TargetGroup != nil {
		where = append(where, fmt.Sprintf("(e.target_group = $%d OR e.target_group = 'all')", len(args)+1))
		args = append(args, string(*filter.TargetGroup))
	}
	if filter.Status != nil {
		where = append(where, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, string(*filter.Status))
	}
	if filter.Visible != nil {
		groups := make([]string, len(filter.Visible))
		for i, g := range filter.Visible {
			groups[i] = string(g)
		}
		where = append(where, fmt.Sprintf("e.target_group = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(groups))
	}
	return strings.Join(where, " AND "), args
}

// monthRange returns the half-open UTC interval covering month of year.
func monthRange(year, month int) (time.Time, time.Time) {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

func requireRow(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
