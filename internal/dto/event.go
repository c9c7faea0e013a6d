package dto

import (
	"strings"
	"time"

	"github.com/noah-isme/school-calendar-api/internal/models"
)

// Accepted layouts for event timestamps, tried in order. Zone-less values are read as UTC.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseEventTime parses a timestamp submitted by calendar clients.
func ParseEventTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// CreateEventRequest is the payload for creating an event.
type CreateEventRequest struct {
	Title             string  `json:"title" validate:"required,max=255"`
	Description       *string `json:"description"`
	StartDate         string  `json:"start_date" validate:"required"`
	EndDate           string  `json:"end_date" validate:"required"`
	Location          *string `json:"location" validate:"omitempty,max=255"`
	ResponsiblePerson *string `json:"responsible_person" validate:"omitempty,max=255"`
	EventType         string  `json:"event_type" validate:"required,event_type"`
	TargetGroup       string  `json:"target_group" validate:"required,target_group"`
}

// UpdateEventRequest is a partial update. Omitted fields keep their stored value;
// description, location and responsible_person are cleared by an explicit null.
type UpdateEventRequest struct {
	Title             *string               `json:"title" validate:"omitempty,max=255"`
	Description       models.OptionalString `json:"description" swaggertype:"string"`
	StartDate         *string               `json:"start_date"`
	EndDate           *string               `json:"end_date"`
	Location          models.OptionalString `json:"location" validate:"omitempty,max=255" swaggertype:"string"`
	ResponsiblePerson models.OptionalString `json:"responsible_person" validate:"omitempty,max=255" swaggertype:"string"`
	EventType         *string               `json:"event_type" validate:"omitempty,event_type"`
	TargetGroup       *string               `json:"target_group" validate:"omitempty,target_group"`
}

// UpdateStatusRequest moves an event through its workflow.
type UpdateStatusRequest struct {
	Status     string  `json:"status" validate:"required,event_status"`
	StatusNote *string `json:"status_note" validate:"omitempty,max=1000"`
}

// EventQuery captures list and export query parameters.
type EventQuery struct {
	Month       int
	Year        int
	EventType   string
	TargetGroup string
	Status      string
}

// ExportFormat names a downloadable representation of the event list.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
	ExportICS ExportFormat = "ics"
)

// Valid reports whether f is a supported format.
func (f ExportFormat) Valid() bool {
	return f == ExportCSV || f == ExportPDF || f == ExportICS
}

// ExportResult is a rendered export ready to be streamed.
type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
}

// StatusSummary counts visible events per workflow status.
type StatusSummary struct {
	Total    int                  `json:"total"`
	Statuses []models.StatusCount `json:"statuses"`
}
