package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "pending"
	BatchStatusValidating BatchStatus = "validating"
	BatchStatusInProgress BatchStatus = "in_progress"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusExpired    BatchStatus = "expired"
	BatchStatusCancelled  BatchStatus = "cancelled"
	BatchStatusError      BatchStatus = "error"
)

// Terminal reports whether no further poller transition is expected.
func (s BatchStatus) Terminal() bool {
	switch s {
	case BatchStatusCompleted, BatchStatusExpired, BatchStatusCancelled, BatchStatusError:
		return true
	}
	return false
}

// RequestParams captures the generation request verbatim at submission time.
// Immutable after creation; the poller reads it back to reconstruct context.
type RequestParams struct {
	CertificationType string `json:"certification_type"`
	DomainName        string `json:"domain_name,omitempty"`
	CognitiveLevel    string `json:"cognitive_level,omitempty"`
	SkillLevel        string `json:"skill_level,omitempty"`
	ScenarioContext   string `json:"scenario_context,omitempty"`
	Count             int    `json:"count"`
}

// BatchJob is the persisted unit of batch generation work. Results stays nil
// until a completion attempt has occurred; an empty non-nil slice means the
// remote side ended but produced nothing parsable.
type BatchJob struct {
	BatchID       string        `json:"batch_id" db:"batch_id"`
	RemoteBatchID string        `json:"remote_batch_id" db:"remote_batch_id"`
	Status        BatchStatus   `json:"status" db:"status"`
	RequestParams RequestParams `json:"request_params" db:"request_params"`
	Results       []Question    `json:"results,omitempty" db:"results"`
	ErrorMessage  *string       `json:"error_message,omitempty" db:"error_message"`
	OwnerUserID   *int64        `json:"owner_user_id,omitempty" db:"owner_user_id"`
	OwnerUsername string        `json:"owner_username,omitempty" db:"owner_username"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
	LastPolledAt  *time.Time    `json:"last_polled_at,omitempty" db:"last_polled_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty" db:"completed_at"`
}

// Age returns how long the job has existed relative to now.
func (j BatchJob) Age(now time.Time) time.Duration {
	return now.Sub(j.CreatedAt)
}

// ExpiredByAge reports whether a non-terminal job has outlived maxAge.
func (j BatchJob) ExpiredByAge(now time.Time, maxAge time.Duration) bool {
	return !j.Status.Terminal() && j.Age(now) > maxAge
}

// AgeExpiryMessage is the error message recorded when the age rule fires.
func AgeExpiryMessage(maxAge time.Duration) string {
	return fmt.Sprintf("batch exceeded maximum pending age of %s without completing", maxAge)
}

// CoerceOwnerID normalizes an arbitrary JWT subject claim into a positive
// integer owner id. Anything else comes back nil rather than being stored
// as garbage.
func CoerceOwnerID(raw interface{}) *int64 {
	var id int64
	switch v := raw.(type) {
	case float64:
		id = int64(v)
	case int64:
		id = v
	case int:
		id = int64(v)
	case json.Number:
		parsed, err := v.Int64()
		if err != nil {
			return nil
		}
		id = parsed
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil
		}
		id = parsed
	default:
		return nil
	}
	if id <= 0 {
		return nil
	}
	return &id
}
