package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/school-calendar-api/internal/dto"
	"github.com/noah-isme/school-calendar-api/internal/models"
	"github.com/noah-isme/school-calendar-api/internal/policy"
	appErrors "github.com/noah-isme/school-calendar-api/pkg/errors"
)

const (
	summaryCachePattern = "summary:*"
	// summaryGenerationKey sits outside summaryCachePattern so invalidation keeps it.
	summaryGenerationKey = "summary-generation"
	summaryGenerationTTL = 24 * time.Hour
)

type eventRepository interface {
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
	GetByID(ctx context.Context, id int64) (*models.Event, error)
	Create(ctx context.Context, event *models.Event) error
	Update(ctx context.Context, event *models.Event) error
	Delete(ctx context.Context, id int64) error
	CountByStatus(ctx context.Context, visible []models.TargetGroup) ([]models.StatusCount, error)
}

type statusUpdater interface {
	UpdateStatus(ctx context.Context, actor models.Identity, id int64, req dto.UpdateStatusRequest) (*models.Event, error)
}

type auditLog interface {
	auditAppender
	History(ctx context.Context, eventID int64) ([]models.AuditEntry, error)
}

type summaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

// EventService implements the calendar use cases: every call is authorized against the role
// policy, mutations are audited, and returned collections are narrowed to the caller's scope.
type EventService struct {
	repo       eventRepository
	workflow   statusUpdater
	audit      auditLog
	cache      summaryCache
	summaryTTL time.Duration
	validator  *validator.Validate
	metrics    *MetricsService
	logger     *zap.Logger
	now        func() time.Time
}

// EventServiceConfig carries optional collaborators of EventService.
type EventServiceConfig struct {
	Cache      summaryCache
	SummaryTTL time.Duration
	Metrics    *MetricsService
}

// NewEventService constructs the service.
func NewEventService(repo eventRepository, workflow statusUpdater, audit auditLog, validate *validator.Validate, logger *zap.Logger, cfg EventServiceConfig) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	registerEventValidations(validate)
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{
		repo:       repo,
		workflow:   workflow,
		audit:      audit,
		cache:      cfg.Cache,
		summaryTTL: cfg.SummaryTTL,
		validator:  validate,
		metrics:    cfg.Metrics,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// List returns the visible events matching query.
func (s *EventService) List(ctx context.Context, actor models.Identity, query dto.EventQuery) ([]models.Event, error) {
	if err := policy.Authorize(actor.Role, policy.ActionViewEvents); err != nil {
		return nil, err
	}
	filter, err := buildFilter(query)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, actor, filter)
}

// ListByStatus returns the visible events currently in status.
func (s *EventService) ListByStatus(ctx context.Context, actor models.Identity, status string) ([]models.Event, error) {
	if err := policy.Authorize(actor.Role, policy.ActionViewEvents); err != nil {
		return nil, err
	}
	st := models.EventStatus(status)
	if !st.Valid() {
		return nil, appErrors.Validation("status", fmt.Sprintf("unknown status %q", status))
	}
	return s.list(ctx, actor, models.EventFilter{Status: &st})
}

func (s *EventService) list(ctx context.Context, actor models.Identity, filter models.EventFilter) ([]models.Event, error) {
	filter.Visible = policy.VisibleTargetGroups(actor.Role)
	events, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list events", zap.Error(err))
		return nil, appErrors.Storage(err, "failed to list events")
	}
	return policy.FilterVisible(events, actor.Role), nil
}

// Get returns a single event. Events outside the caller's scope are reported as not found.
func (s *EventService) Get(ctx context.Context, actor models.Identity, id int64) (*models.Event, error) {
	if err := policy.Authorize(actor.Role, policy.ActionViewEvents); err != nil {
		return nil, err
	}
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(s.logger, err, eventNotFound(id), "failed to load event")
	}
	if !policy.CanSee(actor.Role, *event) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, eventNotFound(id))
	}
	return event, nil
}

// StatusSummary counts visible events per status. Every status is present, zero when empty.
func (s *EventService) StatusSummary(ctx context.Context, actor models.Identity) (*dto.StatusSummary, error) {
	if err := policy.Authorize(actor.Role, policy.ActionViewEvents); err != nil {
		return nil, err
	}

	key := "summary:" + string(actor.Role)
	var generation string
	if s.cache != nil {
		var cached dto.StatusSummary
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return &cached, nil
		}
		generation = s.summaryGeneration(ctx)
	}

	counts, err := s.repo.CountByStatus(ctx, policy.VisibleTargetGroups(actor.Role))
	if err != nil {
		s.logger.Error("failed to count events by status", zap.Error(err))
		return nil, appErrors.Storage(err, "failed to load status summary")
	}

	byStatus := make(map[models.EventStatus]int, len(counts))
	for _, c := range counts {
		byStatus[c.Status] += c.Count
	}
	summary := &dto.StatusSummary{Statuses: make([]models.StatusCount, 0, len(models.EventStatuses))}
	for _, st := range models.EventStatuses {
		summary.Statuses = append(summary.Statuses, models.StatusCount{Status: st, Count: byStatus[st]})
		summary.Total += byStatus[st]
	}

	if s.cache != nil {
		s.cacheSummary(ctx, key, generation, summary)
	}
	return summary, nil
}

// Create validates req and stores a new pending event owned by actor.
func (s *EventService) Create(ctx context.Context, actor models.Identity, req dto.CreateEventRequest) (*models.Event, error) {
	if err := policy.Authorize(actor.Role, policy.ActionCreateEvent); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid event payload")
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, appErrors.Validation("title", "title is required")
	}
	start, err := parseEventTime("start_date", req.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseEventTime("end_date", req.EndDate)
	if err != nil {
		return nil, err
	}

	now := s.now()
	event := &models.Event{
		Title:             title,
		Description:       req.Description,
		StartDate:         start,
		EndDate:           end,
		Location:          req.Location,
		ResponsiblePerson: req.ResponsiblePerson,
		EventType:         models.EventType(req.EventType),
		TargetGroup:       models.TargetGroup(req.TargetGroup),
		Status:            models.EventStatusPending,
		CreatedBy:         actor.UserID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := validateEvent(event); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, event); err != nil {
		s.logger.Error("failed to create event", zap.Error(err))
		return nil, appErrors.Storage(err, "failed to create event")
	}

	s.afterMutation(ctx, event.ID, models.AuditActionCreate, actor, event)
	return event, nil
}

// Update merges req onto the stored event and validates the result before writing it back.
func (s *EventService) Update(ctx context.Context, actor models.Identity, id int64, req dto.UpdateEventRequest) (*models.Event, error) {
	if err := policy.Authorize(actor.Role, policy.ActionUpdateEvent); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid event payload")
	}
	patch, err := buildPatch(req)
	if err != nil {
		return nil, err
	}

	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(s.logger, err, eventNotFound(id), "failed to load event")
	}
	before := *event
	patch.Apply(event)
	if err := validateEvent(event); err != nil {
		return nil, err
	}
	event.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, event); err != nil {
		return nil, notFoundOr(s.logger, err, eventNotFound(id), "failed to update event")
	}

	s.afterMutation(ctx, id, models.AuditActionUpdate, actor, diffEvents(before, *event))
	return event, nil
}

// Delete removes an event. The history entry keeps a snapshot of what was deleted.
func (s *EventService) Delete(ctx context.Context, actor models.Identity, id int64) error {
	if err := policy.Authorize(actor.Role, policy.ActionDeleteEvent); err != nil {
		return err
	}
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return notFoundOr(s.logger, err, eventNotFound(id), "failed to load event")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFoundOr(s.logger, err, eventNotFound(id), "failed to delete event")
	}

	s.afterMutation(ctx, id, models.AuditActionDelete, actor, event)
	return nil
}

// UpdateStatus runs the status workflow for id.
func (s *EventService) UpdateStatus(ctx context.Context, actor models.Identity, id int64, req dto.UpdateStatusRequest) (*models.Event, error) {
	event, err := s.workflow.UpdateStatus(ctx, actor, id, req)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordMutation(models.AuditActionStatusUpdate)
	s.invalidateSummary(ctx)
	return event, nil
}

// History returns the audit trail of id, newest first. Entries outlive their event.
func (s *EventService) History(ctx context.Context, actor models.Identity, id int64) ([]models.AuditEntry, error) {
	if err := policy.Authorize(actor.Role, policy.ActionViewHistory); err != nil {
		return nil, err
	}
	return s.audit.History(ctx, id)
}

func (s *EventService) afterMutation(ctx context.Context, id int64, action models.AuditAction, actor models.Identity, changes interface{}) {
	s.audit.Append(ctx, id, action, actor, changes)
	s.metrics.RecordMutation(action)
	s.invalidateSummary(ctx)
	s.logger.Info("event mutated", zap.Int64("event_id", id), zap.String("action", string(action)), zap.Int64("user_id", actor.UserID))
}

// cacheSummary stores summary unless a mutation bumped the generation after counting began.
func (s *EventService) cacheSummary(ctx context.Context, key, generation string, summary *dto.StatusSummary) {
	if s.summaryGeneration(ctx) != generation {
		return
	}
	if err := s.cache.Set(ctx, key, summary, s.summaryTTL); err != nil {
		return
	}
	// A mutation may have invalidated between the check and the write.
	if s.summaryGeneration(ctx) != generation {
		_ = s.cache.Invalidate(ctx, summaryCachePattern)
	}
}

func (s *EventService) summaryGeneration(ctx context.Context) string {
	var generation string
	if hit, err := s.cache.Get(ctx, summaryGenerationKey, &generation); !hit || err != nil {
		return ""
	}
	return generation
}

// invalidateSummary bumps the generation before dropping cached summaries so an
// in-flight StatusSummary either sees the bump or has its write removed.
func (s *EventService) invalidateSummary(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Set(ctx, summaryGenerationKey, uuid.NewString(), summaryGenerationTTL)
	_ = s.cache.Invalidate(ctx, summaryCachePattern)
}

func buildFilter(query dto.EventQuery) (models.EventFilter, error) {
	filter := models.EventFilter{Month: query.Month, Year: query.Year}
	if query.Month < 0 || query.Month > 12 {
		return filter, appErrors.Validation("month", "month must be between 1 and 12")
	}
	if query.Year < 0 {
		return filter, appErrors.Validation("year", "year must be positive")
	}
	if query.EventType != "" {
		t := models.EventType(query.EventType)
		if !t.Valid() {
			return filter, appErrors.Validation("type", fmt.Sprintf("unknown event type %q", query.EventType))
		}
		filter.EventType = &t
	}
	if query.TargetGroup != "" {
		g := models.TargetGroup(query.TargetGroup)
		if !g.Valid() {
			return filter, appErrors.Validation("target_group", fmt.Sprintf("unknown target group %q", query.TargetGroup))
		}
		filter.TargetGroup = &g
	}
	if query.Status != "" {
		st := models.EventStatus(query.Status)
		if !st.Valid() {
			return filter, appErrors.Validation("status", fmt.Sprintf("unknown status %q", query.Status))
		}
		filter.Status = &st
	}
	return filter, nil
}

func buildPatch(req dto.UpdateEventRequest) (models.EventPatch, error) {
	patch := models.EventPatch{
		Description:       req.Description,
		Location:          req.Location,
		ResponsiblePerson: req.ResponsiblePerson,
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return patch, appErrors.Validation("title", "title must not be empty")
		}
		patch.Title = &title
	}
	if req.StartDate != nil {
		start, err := parseEventTime("start_date", *req.StartDate)
		if err != nil {
			return patch, err
		}
		patch.StartDate = &start
	}
	if req.EndDate != nil {
		end, err := parseEventTime("end_date", *req.EndDate)
		if err != nil {
			return patch, err
		}
		patch.EndDate = &end
	}
	if req.EventType != nil {
		t := models.EventType(*req.EventType)
		patch.EventType = &t
	}
	if req.TargetGroup != nil {
		g := models.TargetGroup(*req.TargetGroup)
		patch.TargetGroup = &g
	}
	return patch, nil
}

func parseEventTime(field, raw string) (time.Time, error) {
	t, ok := dto.ParseEventTime(raw)
	if !ok {
		return time.Time{}, appErrors.Validation(field, fmt.Sprintf("%s must be a date-time such as 2025-02-10T08:00", field))
	}
	return t, nil
}

func validateEvent(event *models.Event) error {
	if strings.TrimSpace(event.Title) == "" {
		return appErrors.Validation("title", "title is required")
	}
	if !event.EventType.Valid() {
		return appErrors.Validation("event_type", fmt.Sprintf("unknown event type %q", event.EventType))
	}
	if !event.TargetGroup.Valid() {
		return appErrors.Validation("target_group", fmt.Sprintf("unknown target group %q", event.TargetGroup))
	}
	if event.EndDate.Before(event.StartDate) {
		return appErrors.Validation("end_date", "end_date must not be before start_date")
	}
	return nil
}

// notFoundOr maps a missing row to NOT_FOUND and everything else to a logged STORAGE_ERROR.
func notFoundOr(logger *zap.Logger, err error, notFoundMsg, storageMsg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFoundMsg)
	}
	logger.Error(storageMsg, zap.Error(err))
	return appErrors.Storage(err, storageMsg)
}

func eventNotFound(id int64) string {
	return fmt.Sprintf("event id=%d not found", id)
}

type fieldChange struct {
	From interface{} `json:"from"`
	To   interface{} `json:"to"`
}

func diffEvents(before, after models.Event) map[string]fieldChange {
	changes := map[string]fieldChange{}
	note := func(field string, from, to interface{}, equal bool) {
		if !equal {
			changes[field] = fieldChange{From: from, To: to}
		}
	}
	note("title", before.Title, after.Title, before.Title == after.Title)
	note("description", before.Description, after.Description, equalStrings(before.Description, after.Description))
	note("start_date", before.StartDate, after.StartDate, before.StartDate.Equal(after.StartDate))
	note("end_date", before.EndDate, after.EndDate, before.EndDate.Equal(after.EndDate))
	note("location", before.Location, after.Location, equalStrings(before.Location, after.Location))
	note("responsible_person", before.ResponsiblePerson, after.ResponsiblePerson, equalStrings(before.ResponsiblePerson, after.ResponsiblePerson))
	note("event_type", before.EventType, after.EventType, before.EventType == after.EventType)
	note("target_group", before.TargetGroup, after.TargetGroup, before.TargetGroup == after.TargetGroup)
	return changes
}

func equalStrings(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
