package models

import (
	"encoding/json"
	"time"
)

type NotificationSeverity string

const (
	NotificationSeverityInfo    NotificationSeverity = "info"
	NotificationSeverityWarning NotificationSeverity = "warning"
	NotificationSeverityError   NotificationSeverity = "error"
)

type NotificationEvent string

const (
	NotificationEventBatchSubmitted NotificationEvent = "batch_submitted"
	NotificationEventBatchCompleted NotificationEvent = "batch_completed"
	NotificationEventBatchFailed    NotificationEvent = "batch_failed"
	NotificationEventBatchExpired   NotificationEvent = "batch_expired"
)

type Notification struct {
	ID        int64                `json:"id" db:"id"`
	UserID    *int64               `json:"user_id,omitempty" db:"user_id"`
	EventType NotificationEvent    `json:"event_type" db:"event_type"`
	Severity  NotificationSeverity `json:"severity" db:"severity"`
	Title     string               `json:"title" db:"title"`
	Message   string               `json:"message" db:"message"`
	Metadata  json.RawMessage      `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time            `json:"created_at" db:"created_at"`
	ReadAt    *time.Time           `json:"read_at,omitempty" db:"read_at"`
}
