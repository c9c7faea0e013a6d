package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-calendar-api/internal/dto"
	"github.com/noah-isme/school-calendar-api/internal/models"
	appErrors "github.com/noah-isme/school-calendar-api/pkg/errors"
	"github.com/noah-isme/school-calendar-api/pkg/response"
)

type eventService interface {
	List(ctx context.Context, actor models.Identity, query dto.EventQuery) ([]models.Event, error)
	Get(ctx context.Context, actor models.Identity, id int64) (*models.Event, error)
	Create(ctx context.Context, actor models.Identity, req dto.CreateEventRequest) (*models.Event, error)
	Update(ctx context.Context, actor models.Identity, id int64, req dto.UpdateEventRequest) (*models.Event, error)
	Delete(ctx context.Context, actor models.Identity, id int64) error
	UpdateStatus(ctx context.Context, actor models.Identity, id int64, req dto.UpdateStatusRequest) (*models.Event, error)
	ListByStatus(ctx context.Context, actor models.Identity, status string) ([]models.Event, error)
	StatusSummary(ctx context.Context, actor models.Identity) (*dto.StatusSummary, error)
	History(ctx context.Context, actor models.Identity, id int64) ([]models.AuditEntry, error)
}

type exportService interface {
	Export(ctx context.Context, actor models.Identity, query dto.EventQuery, format dto.ExportFormat) (*dto.ExportResult, error)
}

// EventHandler exposes calendar event endpoints.
type EventHandler struct {
	events  eventService
	exports exportService
}

// NewEventHandler constructs the handler.
func NewEventHandler(events eventService, exports exportService) *EventHandler {
	return &EventHandler{events: events, exports: exports}
}

// List godoc
// @Summary List events
// @Description Lists events visible to the caller. Month and year only apply together.
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param month query int false "Month (1-12)"
// @Param year query int false "Year"
// @Param type query string false "Event type"
// @Param target_group query string false "Target group"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}
	query, err := parseEventQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	events, err := h.events.List(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, map[string]interface{}{"count": len(events)})
}

// Get godoc
// @Summary Get event
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}
	id, err := eventIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	event, err := h.events.Get(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Create godoc
// @Summary Create event
// @Tags Events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}
	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid event payload"))
		return
	}

	event, err := h.events.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// Update godoc
// @Summary Update event
// @Description Partially updates an event. Omitted fields keep their value.
// @Tags Events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Param payload body dto.UpdateEventRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id} [put]
func (h *EventHandler) Update(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}
	id, err := eventIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid event payload"))
		return
	}

	event, err := h.events.Update(c.Request.Context(), actor, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Delete godoc
// @Summary Delete event
// @Tags Events
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id} [delete]
func (h *EventHandler) Delete(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}
	id, err := eventIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.events.Delete(c.Request.Context(), actor, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UpdateStatus godoc
// @Summary Update event status
// @Tags Events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Param payload body dto.UpdateStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id}/status [put]
func (h *EventHandler) UpdateStatus(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}
	id, err := eventIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	event, err := h.events.UpdateStatus(c.Request.Context(), actor, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// ListByStatus godoc
// @Summary List events by status
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param status path string true "Status"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /events/status/{status} [get]
func (h *EventHandler) ListByStatus(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	events, err := h.events.ListByStatus(c.Request.Context(), actor, c.Param("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, map[string]interface{}{"count": len(events)})
}

// StatusSummary godoc
// @Summary Count events per status
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /events/status-summary [get]
func (h *EventHandler) StatusSummary(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	summary, err := h.events.StatusSummary(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// History godoc
// @Summary Event audit trail
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /events/{id}/history [get]
func (h *EventHandler) History(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}
	id, err := eventIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	entries, err := h.events.History(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, map[string]interface{}{"count": len(entries)})
}

// Export godoc
// @Summary Export events
// @Description Downloads the visible, filtered event list.
// @Tags Events
// @Produce text/csv,application/pdf,text/calendar
// @Security BearerAuth
// @Param format query string false "csv, pdf or ics" default(csv)
// @Param month query int false "Month (1-12)"
// @Param year query int false "Year"
// @Param type query string false "Event type"
// @Param target_group query string false "Target group"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /events/export [get]
func (h *EventHandler) Export(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}
	query, err := parseEventQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.exports.Export(c.Request.Context(), actor, query, dto.ExportFormat(c.Query("format")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, res.Filename, res.ContentType, res.Body)
}

func parseEventQuery(c *gin.Context) (dto.EventQuery, error) {
	month, err := intQuery(c, "month")
	if err != nil {
		return dto.EventQuery{}, err
	}
	year, err := intQuery(c, "year")
	if err != nil {
		return dto.EventQuery{}, err
	}
	return dto.EventQuery{
		Month:       month,
		Year:        year,
		EventType:   c.Query("type"),
		TargetGroup: c.Query("target_group"),
		Status:      c.Query("status"),
	}, nil
}
