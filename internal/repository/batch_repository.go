package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/certprep/certprep-api/internal/models"
	"github.com/lib/pq"
)

// BatchJobUpdate carries the fields an update may touch. Nil fields are left
// untouched; updated_at and last_polled_at are always refreshed.
type BatchJobUpdate struct {
	Status       *models.BatchStatus
	Results      *[]models.Question
	ErrorMessage *string
	CompletedAt  *time.Time
}

// BatchJobRepository is the single source of truth for batch job state.
type BatchJobRepository interface {
	Create(job models.BatchJob) (models.BatchJob, error)
	Get(batchID string) (models.BatchJob, error)
	Update(batchID string, upd BatchJobUpdate) error
	ListPending() ([]models.BatchJob, error)
}

type batchJobRepository struct {
	db *sql.DB
}

func NewBatchJobRepository(db *sql.DB) BatchJobRepository {
	return &batchJobRepository{db: db}
}

const batchJobColumns = `
	batch_id, remote_batch_id, status, request_params, results, error_message,
	owner_user_id, owner_username, created_at, updated_at, last_polled_at, completed_at`

func (r *batchJobRepository) Create(job models.BatchJob) (models.BatchJob, error) {
	params, err := json.Marshal(job.RequestParams)
	if err != nil {
		return job, fmt.Errorf("failed to marshal request params: %w", err)
	}

	query := `
		INSERT INTO batch_jobs (batch_id, remote_batch_id, status, request_params, owner_user_id, owner_username)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err = r.db.QueryRow(query,
		job.BatchID,
		job.RemoteBatchID,
		job.Status,
		params,
		job.OwnerUserID,
		job.OwnerUsername,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return job, ErrDuplicateKey
		}
		return job, err
	}
	return job, nil
}

func (r *batchJobRepository) Get(batchID string) (models.BatchJob, error) {
	query := `SELECT ` + batchJobColumns + ` FROM batch_jobs WHERE batch_id = $1`
	job, err := scanBatchJob(r.db.QueryRow(query, batchID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return job, ErrNotFound
		}
		return job, err
	}
	return job, nil
}

func (r *batchJobRepository) Update(batchID string, upd BatchJobUpdate) error {
	set := []string{"updated_at = now()", "last_polled_at = now()"}
	args := []interface{}{}
	idx := 1

	if upd.Status != nil {
		set = append(set, fmt.Sprintf("status = $%d", idx))
		args = append(args, *upd.Status)
		idx++
	}
	if upd.Results != nil {
		results, err := json.Marshal(*upd.Results)
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		set = append(set, fmt.Sprintf("results = $%d", idx))
		args = append(args, results)
		idx++
	}
	if upd.ErrorMessage != nil {
		set = append(set, fmt.Sprintf("error_message = $%d", idx))
		args = append(args, *upd.ErrorMessage)
		idx++
	}
	if upd.CompletedAt != nil {
		set = append(set, fmt.Sprintf("completed_at = $%d", idx))
		args = append(args, *upd.CompletedAt)
		idx++
	}

	query := fmt.Sprintf("UPDATE batch_jobs SET %s WHERE batch_id = $%d", strings.Join(set, ", "), idx)
	args = append(args, batchID)

	res, err := r.db.Exec(query, args...)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// A vanished job is an error, not a no-op; silently ignoring it
		// would hide a lost record.
		return ErrNotFound
	}
	return nil
}

func (r *batchJobRepository) ListPending() ([]models.BatchJob, error) {
	query := `
		SELECT ` + batchJobColumns + `
		FROM batch_jobs
		WHERE status IN ('pending', 'validating', 'in_progress')
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []models.BatchJob
	for rows.Next() {
		job, err := scanBatchJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBatchJob(row rowScanner) (models.BatchJob, error) {
	var (
		job       models.BatchJob
		params    []byte
		results   []byte
		errMsg    sql.NullString
		ownerID   sql.NullInt64
		ownerName sql.NullString
		polledAt  sql.NullTime
		doneAt    sql.NullTime
	)
	err := row.Scan(
		&job.BatchID,
		&job.RemoteBatchID,
		&job.Status,
		&params,
		&results,
		&errMsg,
		&ownerID,
		&ownerName,
		&job.CreatedAt,
		&job.UpdatedAt,
		&polledAt,
		&doneAt,
	)
	if err != nil {
		return job, err
	}

	if len(params) > 0 {
		if err := json.Unmarshal(params, &job.RequestParams); err != nil {
			return job, fmt.Errorf("failed to unmarshal request params for %s: %w", job.BatchID, err)
		}
	}
	if results != nil {
		// A stored empty array still yields a non-nil slice: the completion
		// attempt happened even if nothing was parsable.
		parsed := []models.Question{}
		if err := json.Unmarshal(results, &parsed); err != nil {
			return job, fmt.Errorf("failed to unmarshal results for %s: %w", job.BatchID, err)
		}
		job.Results = parsed
	}
	if errMsg.Valid {
		job.ErrorMessage = &errMsg.String
	}
	if ownerID.Valid {
		job.OwnerUserID = &ownerID.Int64
	}
	if ownerName.Valid {
		job.OwnerUsername = ownerName.String
	}
	if polledAt.Valid {
		job.LastPolledAt = &polledAt.Time
	}
	if doneAt.Valid {
		job.CompletedAt = &doneAt.Time
	}
	return job, nil
}
