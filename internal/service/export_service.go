package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/school-calendar-api/internal/dto"
	"github.com/noah-isme/school-calendar-api/internal/models"
	appErrors "github.com/noah-isme/school-calendar-api/pkg/errors"
	"github.com/noah-isme/school-calendar-api/pkg/export"
)

const exportTimeLayout = "2006-01-02 15:04"

var exportHeaders = []string{"ID", "Title", "Start", "End", "Location", "Responsible", "Type", "Target", "Status"}

type eventLister interface {
	List(ctx context.Context, actor models.Identity, query dto.EventQuery) ([]models.Event, error)
}

// ExportService renders the caller's visible event list as a downloadable file.
type ExportService struct {
	events eventLister
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	ics    *export.ICSExporter
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService constructs the export service. calendarName labels iCalendar output.
func NewExportService(events eventLister, calendarName string, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	pdf := export.NewPDFExporter()
	pdf.Widths = map[string]float64{"ID": 12, "Start": 28, "End": 28, "Type": 28, "Target": 18, "Status": 22}
	return &ExportService{
		events: events,
		csv:    export.NewCSVExporter(),
		pdf:    pdf,
		ics:    export.NewICSExporter(calendarName),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Export lists events exactly like the list endpoint and renders them in format.
func (s *ExportService) Export(ctx context.Context, actor models.Identity, query dto.EventQuery, format dto.ExportFormat) (*dto.ExportResult, error) {
	if format == "" {
		format = dto.ExportCSV
	}
	if !format.Valid() {
		return nil, appErrors.Validation("format", fmt.Sprintf("unsupported export format %q", format))
	}

	events, err := s.events.List(ctx, actor, query)
	if err != nil {
		return nil, err
	}

	var (
		body        []byte
		contentType string
	)
	switch format {
	case dto.ExportCSV:
		body, err = s.csv.Render(eventDataset(events))
		contentType = s.csv.ContentType()
	case dto.ExportPDF:
		body, err = s.pdf.Render(eventDataset(events), exportTitle(query))
		contentType = s.pdf.ContentType()
	case dto.ExportICS:
		body, err = s.ics.Render(calendarItems(events))
		contentType = s.ics.ContentType()
	}
	if err != nil {
		s.logger.Error("failed to render export", zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	return &dto.ExportResult{
		Filename:    fmt.Sprintf("events-%s.%s", s.now().Format("20060102-150405"), format),
		ContentType: contentType,
		Body:        body,
	}, nil
}

func eventDataset(events []models.Event) export.Dataset {
	rows := make([]map[string]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, map[string]string{
			"ID":          strconv.FormatInt(e.ID, 10),
			"Title":       e.Title,
			"Start":       e.StartDate.Format(exportTimeLayout),
			"End":         e.EndDate.Format(exportTimeLayout),
			"Location":    deref(e.Location),
			"Responsible": deref(e.ResponsiblePerson),
			"Type":        string(e.EventType),
			"Target":      string(e.TargetGroup),
			"Status":      string(e.Status),
		})
	}
	return export.Dataset{Headers: exportHeaders, Rows: rows}
}

func calendarItems(events []models.Event) []export.CalendarItem {
	items := make([]export.CalendarItem, 0, len(events))
	for _, e := range events {
		items = append(items, export.CalendarItem{
			UID:         fmt.Sprintf("event-%d@school-calendar", e.ID),
			Summary:     e.Title,
			Description: deref(e.Description),
			Location:    deref(e.Location),
			Category:    string(e.EventType),
			Start:       e.StartDate,
			End:         e.EndDate,
			Cancelled:   e.Status == models.EventStatusCancelled,
			Created:     e.CreatedAt,
			Modified:    e.UpdatedAt,
		})
	}
	return items
}

func exportTitle(query dto.EventQuery) string {
	if query.Month > 0 && query.Year > 0 {
		return fmt.Sprintf("School events %04d-%02d", query.Year, query.Month)
	}
	return "School events"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
