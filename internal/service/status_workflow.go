package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-calendar-api/internal/dto"
	"github.com/noah-isme/school-calendar-api/internal/models"
	"github.com/noah-isme/school-calendar-api/internal/policy"
	appErrors "github.com/noah-isme/school-calendar-api/pkg/errors"
)

type statusRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Event, error)
	UpdateStatus(ctx context.Context, id int64, status models.EventStatus, note *string, by int64, at time.Time) error
}

type auditAppender interface {
	Append(ctx context.Context, eventID int64, action models.AuditAction, actor models.Identity, changes interface{})
}

// forwardTransitions is the graph enforced in strict mode. Re-applying the current status is
// always accepted.
var forwardTransitions = map[models.EventStatus][]models.EventStatus{
	models.EventStatusPending:    {models.EventStatusInProgress, models.EventStatusCancelled},
	models.EventStatusInProgress: {models.EventStatusCompleted, models.EventStatusCancelled},
}

// StatusWorkflow moves events between workflow statuses and stamps who did it and when.
type StatusWorkflow struct {
	repo      statusRepository
	audit     auditAppender
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	strict    bool
	now       func() time.Time
}

// NewStatusWorkflow constructs the workflow controller. strict enables the forward-only graph.
func NewStatusWorkflow(repo statusRepository, audit auditAppender, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, strict bool) *StatusWorkflow {
	if validate == nil {
		validate = validator.New()
	}
	registerEventValidations(validate)
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusWorkflow{
		repo:      repo,
		audit:     audit,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
		strict:    strict,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CanTransition reports whether an event in from may move to to under the configured graph.
func (w *StatusWorkflow) CanTransition(from, to models.EventStatus) bool {
	if !to.Valid() {
		return false
	}
	if !w.strict || from == to {
		return true
	}
	for _, next := range forwardTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// UpdateStatus applies req to event id on behalf of actor and appends a status_update entry.
func (w *StatusWorkflow) UpdateStatus(ctx context.Context, actor models.Identity, id int64, req dto.UpdateStatusRequest) (*models.Event, error) {
	if err := policy.Authorize(actor.Role, policy.ActionUpdateStatus); err != nil {
		return nil, err
	}
	if err := w.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid status payload")
	}
	status := models.EventStatus(req.Status)

	event, err := w.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(w.logger, err, fmt.Sprintf("event id=%d not found", id), "failed to load event")
	}

	previous := event.Status
	if !w.CanTransition(previous, status) {
		return nil, appErrors.Validation("status", fmt.Sprintf("cannot move event from %s to %s", previous, status))
	}

	note := normalizeNote(req.StatusNote)
	at := w.now()
	if err := w.repo.UpdateStatus(ctx, id, status, note, actor.UserID, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("event id=%d not found", id))
		}
		w.logger.Error("failed to update event status", zap.Int64("event_id", id), zap.Error(err))
		return nil, appErrors.Storage(err, "failed to update event status")
	}

	if stored, err := w.repo.GetByID(ctx, id); err == nil {
		event = stored
	} else {
		w.logger.Warn("failed to reload event after status update", zap.Int64("event_id", id), zap.Error(err))
		by := actor.UserID
		event.Status = status
		event.StatusNote = note
		event.StatusUpdatedBy = &by
		event.StatusUpdatedByName = nil
		event.StatusUpdatedAt = &at
		event.UpdatedAt = at
	}

	w.audit.Append(ctx, id, models.AuditActionStatusUpdate, actor, statusChange{
		PreviousStatus: previous,
		Status:         status,
		StatusNote:     note,
	})
	w.metrics.RecordTransition(previous, status)
	w.logger.Info("event status updated",
		zap.Int64("event_id", id),
		zap.String("from", string(previous)),
		zap.String("to", string(status)),
		zap.Int64("user_id", actor.UserID),
	)
	return event, nil
}

type statusChange struct {
	PreviousStatus models.EventStatus `json:"previous_status"`
	Status         models.EventStatus `json:"status"`
	StatusNote     *string            `json:"status_note"`
}

func normalizeNote(note *string) *string {
	if note == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*note)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
