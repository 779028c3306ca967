package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/certprep/certprep-api/internal/models"
	"github.com/certprep/certprep-api/internal/repository"
	"github.com/rs/zerolog"
)

// Event is one in-app notification to record.
type Event struct {
	UserID   *int64
	Event    models.NotificationEvent
	Severity models.NotificationSeverity
	Title    string
	Message  string
	Metadata map[string]interface{}
}

type Service interface {
	Publish(ctx context.Context, evt Event) (models.Notification, error)
	NotifyBatchCompleted(ctx context.Context, job models.BatchJob, questionCount int) error
	NotifyBatchFailed(ctx context.Context, job models.BatchJob, reason string) error
	ListRecent(ctx context.Context, userID int64, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID int64) (models.Notification, error)
}

type service struct {
	repo   repository.NotificationRepository
	logger zerolog.Logger
}

func NewService(repo repository.NotificationRepository, logger zerolog.Logger) Service {
	return &service{
		repo:   repo,
		logger: logger.With().Str("component", "notification_service").Logger(),
	}
}

func (s *service) Publish(ctx context.Context, evt Event) (models.Notification, error) {
	if evt.Event == "" {
		return models.Notification{}, fmt.Errorf("event type is required")
	}
	if evt.Severity == "" {
		evt.Severity = models.NotificationSeverityInfo
	}
	title := strings.TrimSpace(evt.Title)
	if title == "" {
		title = string(evt.Event)
	}

	notif, err := s.repo.Create(ctx, repository.CreateNotificationParams{
		UserID:   evt.UserID,
		Event:    evt.Event,
		Severity: evt.Severity,
		Title:    title,
		Message:  strings.TrimSpace(evt.Message),
		Metadata: evt.Metadata,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", string(evt.Event)).Msg("failed to persist notification")
		return models.Notification{}, err
	}
	return notif, nil
}

func (s *service) NotifyBatchCompleted(ctx context.Context, job models.BatchJob, questionCount int) error {
	_, err := s.Publish(ctx, Event{
		UserID:   job.OwnerUserID,
		Event:    models.NotificationEventBatchCompleted,
		Severity: models.NotificationSeverityInfo,
		Title:    "Batch generation complete",
		Message:  fmt.Sprintf("Batch %s produced %d questions.", job.BatchID, questionCount),
		Metadata: map[string]interface{}{
			"batch_id":        job.BatchID,
			"remote_batch_id": job.RemoteBatchID,
			"question_count":  questionCount,
		},
	})
	return err
}

func (s *service) NotifyBatchFailed(ctx context.Context, job models.BatchJob, reason string) error {
	event := models.NotificationEventBatchFailed
	if job.Status == models.BatchStatusExpired {
		event = models.NotificationEventBatchExpired
	}
	_, err := s.Publish(ctx, Event{
		UserID:   job.OwnerUserID,
		Event:    event,
		Severity: models.NotificationSeverityError,
		Title:    fmt.Sprintf("Batch generation %s", job.Status),
		Message:  reason,
		Metadata: map[string]interface{}{
			"batch_id":        job.BatchID,
			"remote_batch_id": job.RemoteBatchID,
		},
	})
	return err
}

func (s *service) ListRecent(ctx context.Context, userID int64, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 25
	}
	return s.repo.ListRecent(ctx, userID, limit)
}

func (s *service) MarkRead(ctx context.Context, userID, notificationID int64) (models.Notification, error) {
	return s.repo.MarkRead(ctx, userID, notificationID)
}
