package export

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
)

// CalendarItem is one VEVENT worth of data.
type CalendarItem struct {
	UID         string
	Summary     string
	Description string
	Location    string
	Category    string
	Start       time.Time
	End         time.Time
	Cancelled   bool
	Created     time.Time
	Modified    time.Time
}

// ICSExporter renders calendar items as an RFC 5545 calendar.
type ICSExporter struct {
	ProductID string
	Name      string
}

// NewICSExporter builds an exporter publishing under the given calendar name.
func NewICSExporter(name string) *ICSExporter {
	return &ICSExporter{ProductID: "-//school-calendar-api//EN", Name: name}
}

// ContentType is the MIME type of the rendered file.
func (e *ICSExporter) ContentType() string { return "text/calendar; charset=utf-8" }

// Render serialises items into a VCALENDAR document.
func (e *ICSExporter) Render(items []CalendarItem) ([]byte, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(e.ProductID)
	if e.Name != "" {
		cal.SetXWRCalName(e.Name)
	}

	stamp := time.Now().UTC()
	for _, item := range items {
		if item.UID == "" {
			return nil, fmt.Errorf("calendar item %q has no uid", item.Summary)
		}
		if item.End.Before(item.Start) {
			return nil, fmt.Errorf("calendar item %s ends before it starts", item.UID)
		}
		ev := cal.AddEvent(item.UID)
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(item.Start.UTC())
		ev.SetEndAt(item.End.UTC())
		ev.SetSummary(item.Summary)
		if !item.Created.IsZero() {
			ev.SetCreatedTime(item.Created.UTC())
		}
		if !item.Modified.IsZero() {
			ev.SetModifiedAt(item.Modified.UTC())
		}
		if item.Description != "" {
			ev.SetDescription(item.Description)
		}
		if item.Location != "" {
			ev.SetLocation(item.Location)
		}
		if item.Category != "" {
			ev.AddProperty(ics.ComponentPropertyCategories, item.Category)
		}
		status := "CONFIRMED"
		if item.Cancelled {
			status = "CANCELLED"
		}
		ev.AddProperty(ics.ComponentPropertyStatus, status)
	}

	return []byte(cal.Serialize()), nil
}
