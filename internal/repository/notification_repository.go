package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/certprep/certprep-api/internal/models"
)

type CreateNotificationParams struct {
	UserID   *int64
	Event    models.NotificationEvent
	Severity models.NotificationSeverity
	Title    string
	Message  string
	Metadata map[string]interface{}
}

type NotificationRepository interface {
	Create(ctx context.Context, params CreateNotificationParams) (models.Notification, error)
	ListRecent(ctx context.Context, userID int64, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID int64) (models.Notification, error)
}

type notificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, params CreateNotificationParams) (models.Notification, error) {
	var metadata []byte
	if params.Metadata != nil {
		var err error
		metadata, err = json.Marshal(params.Metadata)
		if err != nil {
			return models.Notification{}, fmt.Errorf("failed to marshal notification metadata: %w", err)
		}
	}

	notif := models.Notification{
		UserID:    params.UserID,
		EventType: params.Event,
		Severity:  params.Severity,
		Title:     params.Title,
		Message:   params.Message,
		Metadata:  metadata,
	}

	query := `
		INSERT INTO notifications (user_id, event_type, severity, title, message, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		notif.UserID, notif.EventType, notif.Severity, notif.Title, notif.Message, notif.Metadata,
	).Scan(&notif.ID, &notif.CreatedAt)
	if err != nil {
		return models.Notification{}, err
	}
	return notif, nil
}

func (r *notificationRepository) ListRecent(ctx context.Context, userID int64, limit int) ([]models.Notification, error) {
	query := `
		SELECT id, user_id, event_type, severity, title, message, metadata, created_at, read_at
		FROM notifications
		WHERE user_id IS NULL OR user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var (
			n      models.Notification
			uid    sql.NullInt64
			meta   []byte
			readAt sql.NullTime
		)
		if err := rows.Scan(&n.ID, &uid, &n.EventType, &n.Severity, &n.Title, &n.Message, &meta, &n.CreatedAt, &readAt); err != nil {
			return nil, err
		}
		if uid.Valid {
			n.UserID = &uid.Int64
		}
		n.Metadata = meta
		if readAt.Valid {
			n.ReadAt = &readAt.Time
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID, notificationID int64) (models.Notification, error) {
	query := `
		UPDATE notifications
		SET read_at = now()
		WHERE id = $1 AND (user_id IS NULL OR user_id = $2)
		RETURNING id, user_id, event_type, severity, title, message, metadata, created_at, read_at`

	var (
		n      models.Notification
		uid    sql.NullInt64
		meta   []byte
		readAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, notificationID, userID).
		Scan(&n.ID, &uid, &n.EventType, &n.Severity, &n.Title, &n.Message, &meta, &n.CreatedAt, &readAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Notification{}, ErrNotFound
		}
		return models.Notification{}, err
	}
	if uid.Valid {
		n.UserID = &uid.Int64
	}
	n.Metadata = meta
	if readAt.Valid {
		n.ReadAt = &readAt.Time
	}
	return n, nil
}
