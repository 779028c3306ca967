package generation

import (
	"context"
	"fmt"
	"time"

	"github.com/certprep/certprep-api/internal/llm"
	"github.com/certprep/certprep-api/internal/models"
	"github.com/certprep/certprep-api/internal/repository"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ErrValidation marks bad submission input. Validation failures have no side
// effects, local or remote.
var ErrValidation = errors.New("invalid generation request")

// Submitter fans a generation request out into independent prompts, submits
// them as one remote batch, and persists the local job record.
type Submitter struct {
	repo   repository.BatchJobRepository
	client *llm.Client
	logger zerolog.Logger
}

func NewSubmitter(repo repository.BatchJobRepository, client *llm.Client, logger zerolog.Logger) *Submitter {
	return &Submitter{
		repo:   repo,
		client: client,
		logger: logger.With().Str("component", "batch_submitter").Logger(),
	}
}

// NewBatchID generates a local batch identifier: batch_<timestamp>_<random8>.
func NewBatchID() string {
	return fmt.Sprintf("batch_%d_%s", time.Now().Unix(), uuid.NewString()[:8])
}

// ItemCustomID builds the per-item correlation id. It embeds the batch id so
// unordered remote results can be traced back to their job.
func ItemCustomID(batchID string, index int) string {
	return fmt.Sprintf("%s-q%d", batchID, index)
}

// Submit validates the request, submits count prompts as one remote batch,
// and persists a pending BatchJob. A remote submission failure leaves no
// local record behind.
func (s *Submitter) Submit(ctx context.Context, params models.RequestParams, ownerID *int64, ownerUsername string) (models.BatchJob, error) {
	if !models.IsValidCertification(params.CertificationType) {
		return models.BatchJob{}, errors.Wrapf(ErrValidation, "unknown certification type %q", params.CertificationType)
	}
	if params.Count < 1 {
		return models.BatchJob{}, errors.Wrapf(ErrValidation, "count must be at least 1, got %d", params.Count)
	}

	batchID := NewBatchID()

	items := make([]llm.BatchItem, 0, params.Count)
	for i := 0; i < params.Count; i++ {
		items = append(items, s.client.NewBatchItem(ItemCustomID(batchID, i), llm.BuildQuestionPrompt(params)))
	}

	remoteBatchID, err := s.client.CreateBatch(ctx, items)
	if err != nil {
		return models.BatchJob{}, errors.Wrap(err, "remote batch submission failed")
	}

	job := models.BatchJob{
		BatchID:       batchID,
		RemoteBatchID: remoteBatchID,
		Status:        models.BatchStatusPending,
		RequestParams: params,
		OwnerUserID:   ownerID,
		OwnerUsername: ownerUsername,
	}

	created, err := s.repo.Create(job)
	if err != nil {
		// The remote job is already in flight at this point; the record
		// loss is the loud failure mode, there is no remote rollback.
		s.logger.Error().Err(err).
			Str("batch_id", batchID).
			Str("remote_batch_id", remoteBatchID).
			Msg("failed to persist batch job after remote submission")
		return models.BatchJob{}, errors.Wrap(err, "failed to persist batch job")
	}

	s.logger.Info().
		Str("batch_id", created.BatchID).
		Str("remote_batch_id", created.RemoteBatchID).
		Int("count", params.Count).
		Msg("batch submitted")

	return created, nil
}
