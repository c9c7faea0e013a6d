package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/school-calendar-api/internal/models"
	appErrors "github.com/noah-isme/school-calendar-api/pkg/errors"
	"github.com/noah-isme/school-calendar-api/pkg/jobs"
)

const (
	auditJobType      = "event_history"
	auditWriteTimeout = 5 * time.Second
)

type auditRepository interface {
	Create(ctx context.Context, entry *models.AuditEntry) error
	ListByEvent(ctx context.Context, eventID int64) ([]models.AuditEntry, error)
}

type auditQueue interface {
	Enqueue(job jobs.Job) error
}

// AuditService appends event history entries and reads them back. A failed append is logged and
// counted; it never fails the mutation that produced it.
type AuditService struct {
	repo       auditRepository
	metrics    *MetricsService
	logger     *zap.Logger
	queue      auditQueue
	maxRetries int
	now        func() time.Time
}

// NewAuditService constructs a synchronous audit service.
func NewAuditService(repo auditRepository, metrics *MetricsService, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, metrics: metrics, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// UseQueue routes subsequent appends through q. maxRetries must match the queue configuration so
// the final failed attempt is counted exactly once.
func (s *AuditService) UseQueue(q auditQueue, maxRetries int) {
	s.queue = q
	s.maxRetries = maxRetries
}

// Append records one mutation of eventID by actor. changes may be a json.RawMessage or any
// JSON-marshalable value.
func (s *AuditService) Append(ctx context.Context, eventID int64, action models.AuditAction, actor models.Identity, changes interface{}) {
	payload, err := marshalChanges(changes)
	if err != nil {
		s.fail(eventID, action, err)
		return
	}
	entry := &models.AuditEntry{
		EventID:   eventID,
		Action:    action,
		UserID:    actor.UserID,
		Changes:   payload,
		Timestamp: s.now(),
	}

	if s.queue != nil {
		if err := s.queue.Enqueue(jobs.Job{Type: auditJobType, Payload: entry}); err != nil {
			s.metrics.RecordAuditDropped()
			s.logger.Error("audit entry dropped", zap.Int64("event_id", eventID), zap.String("action", string(action)), zap.Error(err))
		}
		return
	}

	// The entry outlives a cancelled request; the mutation it describes already happened.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()
	if err := s.repo.Create(writeCtx, entry); err != nil {
		s.fail(eventID, action, err)
	}
}

// HandleJob is the queue handler for asynchronous appends.
func (s *AuditService) HandleJob(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(*models.AuditEntry)
	if !ok {
		s.fail(0, "", fmt.Errorf("unexpected audit payload %T", job.Payload))
		return nil
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		if job.Attempt >= s.maxRetries {
			s.fail(entry.EventID, entry.Action, err)
		}
		return err
	}
	return nil
}

// History returns the entries for eventID, newest first.
func (s *AuditService) History(ctx context.Context, eventID int64) ([]models.AuditEntry, error) {
	entries, err := s.repo.ListByEvent(ctx, eventID)
	if err != nil {
		s.logger.Error("failed to load event history", zap.Int64("event_id", eventID), zap.Error(err))
		return nil, appErrors.Storage(err, "failed to load event history")
	}
	return entries, nil
}

func (s *AuditService) fail(eventID int64, action models.AuditAction, err error) {
	s.metrics.RecordAuditFailure()
	s.logger.Error("audit append failed", zap.Int64("event_id", eventID), zap.String("action", string(action)), zap.Error(err))
}

func marshalChanges(changes interface{}) (json.RawMessage, error) {
	switch v := changes.(type) {
	case nil:
		return json.RawMessage(`{}`), nil
	case json.RawMessage:
		if len(v) == 0 {
			return json.RawMessage(`{}`), nil
		}
		return v, nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal audit changes: %w", err)
		}
		return raw, nil
	}
}
