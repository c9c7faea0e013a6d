package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-calendar-api/internal/dto"
	"github.com/noah-isme/school-calendar-api/internal/middleware"
	"github.com/noah-isme/school-calendar-api/internal/models"
	appErrors "github.com/noah-isme/school-calendar-api/pkg/errors"
)

type eventServiceMock struct {
	events     []models.Event
	event      *models.Event
	summary    *dto.StatusSummary
	history    []models.AuditEntry
	err        error
	lastActor  models.Identity
	lastQuery  dto.EventQuery
	lastID     int64
	lastStatus string
	lastCreate dto.CreateEventRequest
	lastUpdate dto.UpdateEventRequest
	lastPatch  dto.UpdateStatusRequest
	deleted    bool
}

func (m *eventServiceMock) List(ctx context.Context, actor models.Identity, query dto.EventQuery) ([]models.Event, error) {
	m.lastActor = actor
	m.lastQuery = query
	return m.events, m.err
}

func (m *eventServiceMock) Get(ctx context.Context, actor models.Identity, id int64) (*models.Event, error) {
	m.lastActor = actor
	m.lastID = id
	return m.event, m.err
}

func (m *eventServiceMock) Create(ctx context.Context, actor models.Identity, req dto.CreateEventRequest) (*models.Event, error) {
	m.lastActor = actor
	m.lastCreate = req
	return m.event, m.err
}

func (m *eventServiceMock) Update(ctx context.Context, actor models.Identity, id int64, req dto.UpdateEventRequest) (*models.Event, error) {
	m.lastID = id
	m.lastUpdate = req
	return m.event, m.err
}

func (m *eventServiceMock) Delete(ctx context.Context, actor models.Identity, id int64) error {
	m.lastID = id
	m.deleted = m.err == nil
	return m.err
}

func (m *eventServiceMock) UpdateStatus(ctx context.Context, actor models.Identity, id int64, req dto.UpdateStatusRequest) (*models.Event, error) {
	m.lastID = id
	m.lastPatch = req
	return m.event, m.err
}

func (m *eventServiceMock) ListByStatus(ctx context.Context, actor models.Identity, status string) ([]models.Event, error) {
	m.lastStatus = status
	return m.events, m.err
}

func (m *eventServiceMock) StatusSummary(ctx context.Context, actor models.Identity) (*dto.StatusSummary, error) {
	m.lastActor = actor
	return m.summary, m.err
}

func (m *eventServiceMock) History(ctx context.Context, actor models.Identity, id int64) ([]models.AuditEntry, error) {
	m.lastID = id
	return m.history, m.err
}

type exportServiceMock struct {
	result     *dto.ExportResult
	err        error
	lastFormat dto.ExportFormat
	lastQuery  dto.EventQuery
}

func (m *exportServiceMock) Export(ctx context.Context, actor models.Identity, query dto.EventQuery, format dto.ExportFormat) (*dto.ExportResult, error) {
	m.lastFormat = format
	m.lastQuery = query
	return m.result, m.err
}

func newEventContext(method, target string, body string, role models.UserRole) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body != "" {
		req, _ = http.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, target, nil)
	}
	c.Request = req
	if role != "" {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: 1, Role: role})
	}
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestEventHandlerListParsesQuery(t *testing.T) {
	mockSvc := &eventServiceMock{events: []models.Event{{ID: 1, Title: "Exam"}, {ID: 2, Title: "Assembly"}}}
	handler := NewEventHandler(mockSvc, &exportServiceMock{})

	c, w := newEventContext(http.MethodGet, "/events?month=2&year=2025&type=exam&target_group=all", "", models.RoleTeacher)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.EventQuery{Month: 2, Year: 2025, EventType: "exam", TargetGroup: "all"}, mockSvc.lastQuery)
	assert.Equal(t, models.Identity{UserID: 1, Role: models.RoleTeacher}, mockSvc.lastActor)
	assert.JSONEq(t, `{"count":2}`, string(decodeEnvelope(t, w)["meta"]))
}

func TestEventHandlerListRejectsBadMonth(t *testing.T) {
	mockSvc := &eventServiceMock{}
	handler := NewEventHandler(mockSvc, &exportServiceMock{})

	c, w := newEventContext(http.MethodGet, "/events?month=feb&year=2025", "", models.RoleAdmin)
	handler.List(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, mockSvc.lastActor.UserID)
}

func TestEventHandlerRequiresIdentity(t *testing.T) {
	handler := NewEventHandler(&eventServiceMock{}, &exportServiceMock{})

	c, w := newEventContext(http.MethodGet, "/events", "", "")
	handler.List(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEventHandlerGet(t *testing.T) {
	mockSvc := &eventServiceMock{event: &models.Event{ID: 7, Title: "Exam"}}
	handler := NewEventHandler(mockSvc, &exportServiceMock{})

	c, w := newEventContext(http.MethodGet, "/events/7", "", models.RoleStudent)
	c.Params = gin.Params{{Key: "id", Value: "7"}}
	handler.Get(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(7), mockSvc.lastID)
}

func TestEventHandlerGetInvalidID(t *testing.T) {
	handler := NewEventHandler(&eventServiceMock{}, &exportServiceMock{})

	c, w := newEventContext(http.MethodGet, "/events/abc", "", models.RoleAdmin)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	handler.Get(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventHandlerGetNotFound(t *testing.T) {
	mockSvc := &eventServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "event id=9 not found")}
	handler := NewEventHandler(mockSvc, &exportServiceMock{})

	c, w := newEventContext(http.MethodGet, "/events/9", "", models.RoleStudent)
	c.Params = gin.Params{{Key: "id", Value: "9"}}
	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEventHandlerCreate(t *testing.T) {
	mockSvc := &eventServiceMock{event: &models.Event{ID: 3, Title: "Exam"}}
	handler := NewEventHandler(mockSvc, &exportServiceMock{})

	body := `{"title":"Exam","start_date":"2025-02-10T08:00:00Z","end_date":"2025-02-10T10:00:00Z","event_type":"exam","target_group":"all"}`
	c, w := newEventContext(http.MethodPost, "/events", body, models.RoleTeacher)
	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Exam", mockSvc.lastCreate.Title)
	assert.Equal(t, "exam", mockSvc.lastCreate.EventType)
}

func TestEventHandlerCreateInvalidBody(t *testing.T) {
	mockSvc := &eventServiceMock{}
	handler := NewEventHandler(mockSvc, &exportServiceMock{})

	c, w := newEventContext(http.MethodPost, "/events", `{"title":"Exam"`, models.RoleAdmin)
	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mockSvc.lastCreate.Title)
}

func TestEventHandlerCreateForbidden(t *testing.T) {
	mockSvc := &eventServiceMock{err: appErrors.ErrRoleForbidden}
	handler := NewEventHandler(mockSvc, &exportServiceMock{})

	c, w := newEventContext(http.MethodPost, "/events", `{"title":"Exam"}`, models.RoleStudent)
	handler.Create(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestEventHandlerUpdatePartial(t *testing.T) {
	mockSvc := &eventServiceMock{event: &models.Event{ID: 4, Title: "Renamed"}}
	handler := NewEventHandler(mockSvc, &exportServiceMock{})

	c, w := newEventContext(http.MethodPut, "/events/4", `{"title":"Renamed"}`, models.RoleAdmin)
	c.Params = gin.Params{{Key: "id", Value: "4"}}
	handler.Update(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(4), mockSvc.lastID)
	require.NotNil(t, mockSvc.lastUpdate.Title)
	assert.Equal(t, "Renamed", *mockSvc.lastUpdate.Title)
	assert.False(t, mockSvc.lastUpdate.Location.Set)
}

func TestEventHandlerUpdateExplicitNull(t *testing.T) {
	mockSvc := &eventServiceMock{event: &models.Event{ID: 4, Title: "Renamed"}}
	handler := NewEventHandler(mockSvc, &exportServiceMock{})

	c, w := newEventContext(http.MethodPut, "/events/4", `{"location":null}`, models.RoleAdmin)
	c.Params = gin.Params{{Key: "id", Value: "4"}}
	handler.Update(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.lastUpdate.Location.Set)
	assert.Nil(t, mockSvc.lastUpdate.Location.Value)
	assert.False(t, mockSvc.lastUpdate.Description.Set)
}

func TestEventHandlerDelete(t *testing.T) {
	mockSvc := &eventServiceMock{}
	handler := NewEventHandler(mockSvc, &exportServiceMock{})

	c, w := newEventContext(http.MethodDelete, "/events/5", "", models.RoleAdmin)
	c.Params = gin.Params{{Key: "id", Value: "5"}}
	handler.Delete(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, mockSvc.deleted)
}

func TestEventHandlerUpdateStatus(t *testing.T) {
	mockSvc := &eventServiceMock{event: &models.Event{ID: 6, Status: models.EventStatusCompleted}}
	handler := NewEventHandler(mockSvc, &exportServiceMock{})

	c, w := newEventContext(http.MethodPut, "/events/6/status", `{"status":"completed","status_note":"done"}`, models.RoleTeacher)
	c.Params = gin.Params{{Key: "id", Value: "6"}}
	handler.UpdateStatus(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "completed", mockSvc.lastPatch.Status)
	require.NotNil(t, mockSvc.lastPatch.StatusNote)
	assert.Equal(t, "done", *mockSvc.lastPatch.StatusNote)
}

func TestEventHandlerListByStatus(t *testing.T) {
	mockSvc := &eventServiceMock{events: []models.Event{{ID: 1}}}
	handler := NewEventHandler(mockSvc, &exportServiceMock{})

	c, w := newEventContext(http.MethodGet, "/events/status/in_progress", "", models.RoleStudent)
	c.Params = gin.Params{{Key: "status", Value: "in_progress"}}
	handler.ListByStatus(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "in_progress", mockSvc.lastStatus)
}

func TestEventHandlerStatusSummary(t *testing.T) {
	mockSvc := &eventServiceMock{summary: &dto.StatusSummary{
		Total: 3,
		Statuses: []models.StatusCount{
			{Status: models.EventStatusPending, Count: 2},
			{Status: models.EventStatusCompleted, Count: 1},
		},
	}}
	handler := NewEventHandler(mockSvc, &exportServiceMock{})

	c, w := newEventContext(http.MethodGet, "/events/status-summary", "", models.RoleTeacher)
	handler.StatusSummary(c)

	require.Equal(t, http.StatusOK, w.Code)
	var data dto.StatusSummary
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w)["data"], &data))
	assert.Equal(t, 3, data.Total)
	assert.Len(t, data.Statuses, 2)
}

func TestEventHandlerHistory(t *testing.T) {
	mockSvc := &eventServiceMock{history: []models.AuditEntry{{ID: 1, EventID: 8, Action: models.AuditActionCreate}}}
	handler := NewEventHandler(mockSvc, &exportServiceMock{})

	c, w := newEventContext(http.MethodGet, "/events/8/history", "", models.RoleAdmin)
	c.Params = gin.Params{{Key: "id", Value: "8"}}
	handler.History(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(8), mockSvc.lastID)
}

func TestEventHandlerExport(t *testing.T) {
	exports := &exportServiceMock{result: &dto.ExportResult{
		Filename:    "events-20250201.ics",
		ContentType: "text/calendar; charset=utf-8",
		Body:        []byte("BEGIN:VCALENDAR"),
	}}
	handler := NewEventHandler(&eventServiceMock{}, exports)

	c, w := newEventContext(http.MethodGet, "/events/export?format=ics&month=2&year=2025", "", models.RoleStudent)
	handler.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.ExportICS, exports.lastFormat)
	assert.Equal(t, 2, exports.lastQuery.Month)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "events-20250201.ics")
	assert.Equal(t, "BEGIN:VCALENDAR", w.Body.String())
}

func TestEventHandlerExportError(t *testing.T) {
	exports := &exportServiceMock{err: appErrors.Validation("format", "unsupported export format")}
	handler := NewEventHandler(&eventServiceMock{}, exports)

	c, w := newEventContext(http.MethodGet, "/events/export?format=xlsx", "", models.RoleAdmin)
	handler.Export(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
