package generation

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/certprep/certprep-api/internal/llm"
	"github.com/certprep/certprep-api/internal/models"
	"github.com/certprep/certprep-api/internal/notification"
	"github.com/certprep/certprep-api/internal/repository"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// PollerConfig bundles the poller's tunables.
type PollerConfig struct {
	Interval  time.Duration
	MaxAge    time.Duration
	ExportDir string
}

// Poller reconciles local batch job state with the remote batch API on a
// fixed interval. One job's failure never aborts the cycle for the rest.
type Poller struct {
	repo     repository.BatchJobRepository
	client   *llm.Client
	notifier notification.Service
	logger   zerolog.Logger
	cfg      PollerConfig

	// Guards against overlapping cycles if a tick fires while the previous
	// cycle is still in flight.
	running atomic.Bool

	now func() time.Time
}

func NewPoller(repo repository.BatchJobRepository, client *llm.Client, notifier notification.Service, cfg PollerConfig, logger zerolog.Logger) *Poller {
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 24 * time.Hour
	}
	return &Poller{
		repo:     repo,
		client:   client,
		notifier: notifier,
		logger:   logger.With().Str("component", "batch_poller").Logger(),
		cfg:      cfg,
		now:      time.Now,
	}
}

// Start runs one cycle immediately, then on every tick until the context is
// cancelled. Blocks; callers run it in a goroutine and cancel the context
// for shutdown.
func (p *Poller) Start(ctx context.Context) error {
	p.logger.Info().
		Dur("interval", p.cfg.Interval).
		Dur("max_age", p.cfg.MaxAge).
		Msg("batch poller started")

	p.tick(ctx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("batch poller stopped")
			return ctx.Err()
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	if !p.running.CompareAndSwap(false, true) {
		p.logger.Warn().Msg("previous poll cycle still in flight, skipping tick")
		return
	}
	defer p.running.Store(false)

	if err := p.RunCycle(ctx); err != nil {
		p.logger.Error().Err(err).Msg("poll cycle failed")
	}
}

// RunCycle performs one full scan-and-update pass. Exported so tests can
// drive the poller synchronously without a real timer. Only a store-wide
// failure returns an error; per-job failures are contained and logged.
func (p *Poller) RunCycle(ctx context.Context) error {
	jobs, err := p.repo.ListPending()
	if err != nil {
		return errors.Wrap(err, "failed to list pending batch jobs")
	}
	if len(jobs) == 0 {
		return nil
	}

	p.logger.Debug().Int("jobs", len(jobs)).Msg("polling pending batch jobs")

	for _, job := range jobs {
		if err := p.processJob(ctx, job); err != nil {
			p.logger.Error().Err(err).Str("batch_id", job.BatchID).Msg("failed to process batch job")
			p.markError(job.BatchID, err)
		}
	}
	return nil
}

// processJob runs the per-job reconciliation. A returned error means an
// unexpected failure the caller should record on the job; handled outcomes
// (transient remote errors, retrieval retries) return nil.
func (p *Poller) processJob(ctx context.Context, job models.BatchJob) error {
	now := p.now()

	if _, expired, err := ForceExpireIfStale(p.repo, job, p.cfg.MaxAge, now); err != nil {
		return errors.Wrap(err, "failed to force-expire stale job")
	} else if expired {
		p.logger.Warn().
			Str("batch_id", job.BatchID).
			Dur("age", job.Age(now)).
			Msg("batch exceeded max pending age, marked expired")
		job.Status = models.BatchStatusExpired
		p.notifyFailure(ctx, job, models.AgeExpiryMessage(p.cfg.MaxAge))
		return nil
	}

	remote, err := p.client.GetBatchStatus(ctx, job.RemoteBatchID)
	if err != nil {
		// Transient remote errors are left for the next tick; the polling
		// interval is the retry backoff.
		p.logger.Warn().Err(err).
			Str("batch_id", job.BatchID).
			Str("remote_batch_id", job.RemoteBatchID).
			Msg("remote status query failed, will retry next tick")
		return nil
	}

	status, known := MapRemoteStatus(remote.ProcessingStatus)
	if !known {
		p.logger.Warn().
			Str("batch_id", job.BatchID).
			Str("remote_status", remote.ProcessingStatus).
			Msg("unrecognized remote processing status, treating as pending")
	}

	switch status {
	case models.BatchStatusCompleted:
		return p.completeJob(ctx, job)

	case models.BatchStatusExpired, models.BatchStatusCancelled:
		msg := fmt.Sprintf("remote batch reported %s", remote.ProcessingStatus)
		completedAt := now
		err := p.repo.Update(job.BatchID, repository.BatchJobUpdate{
			Status:       &status,
			ErrorMessage: &msg,
			CompletedAt:  &completedAt,
		})
		if err != nil {
			return errors.Wrapf(err, "failed to record terminal status %s", status)
		}
		job.Status = status
		p.notifyFailure(ctx, job, msg)
		return nil

	default:
		// Still in flight: write the pass-through status so last_polled_at
		// stays fresh even when nothing else changed.
		if err := p.repo.Update(job.BatchID, repository.BatchJobUpdate{Status: &status}); err != nil {
			return errors.Wrapf(err, "failed to record in-flight status %s", status)
		}
		return nil
	}
}

// completeJob retrieves and parses results for an ended remote batch. On
// retrieval failure the status is left at its last in-progress value so the
// next tick retries; retrieval is idempotent.
func (p *Poller) completeJob(ctx context.Context, job models.BatchJob) error {
	results, err := p.client.GetBatchResults(ctx, job.RemoteBatchID)
	if err != nil {
		msg := fmt.Sprintf("result retrieval failed: %v", err)
		p.logger.Warn().Err(err).Str("batch_id", job.BatchID).Msg("result retrieval failed, will retry next tick")
		if updateErr := p.repo.Update(job.BatchID, repository.BatchJobUpdate{ErrorMessage: &msg}); updateErr != nil {
			return errors.Wrap(updateErr, "failed to record retrieval failure")
		}
		return nil
	}

	questions := p.collectQuestions(job, results)

	status := models.BatchStatusCompleted
	completedAt := p.now()
	err = p.repo.Update(job.BatchID, repository.BatchJobUpdate{
		Status:      &status,
		Results:     &questions,
		CompletedAt: &completedAt,
	})
	if err != nil {
		return errors.Wrap(err, "failed to persist completed results")
	}

	p.logger.Info().
		Str("batch_id", job.BatchID).
		Int("requested", job.RequestParams.Count).
		Int("parsed", len(questions)).
		Msg("batch completed")

	// Side-file export is best effort; a write failure never fails the job.
	if p.cfg.ExportDir != "" && len(questions) > 0 {
		if path, err := WriteSideFile(p.cfg.ExportDir, job.BatchID, questions); err != nil {
			p.logger.Warn().Err(err).Str("batch_id", job.BatchID).Msg("side-file export failed")
		} else {
			p.logger.Info().Str("batch_id", job.BatchID).Str("path", path).Msg("side file written")
		}
	}

	if p.notifier != nil {
		job.Status = status
		if err := p.notifier.NotifyBatchCompleted(ctx, job, len(questions)); err != nil {
			p.logger.Warn().Err(err).Str("batch_id", job.BatchID).Msg("completion notification failed")
		}
	}
	return nil
}

// collectQuestions parses every succeeded result record in the order
// encountered. Per-record failures are logged and skipped; zero parsed
// questions is still a valid completed outcome.
func (p *Poller) collectQuestions(job models.BatchJob, results []llm.BatchResult) []models.Question {
	questions := []models.Question{}
	for _, res := range results {
		if !res.Succeeded {
			p.logger.Warn().
				Str("batch_id", job.BatchID).
				Str("custom_id", res.CustomID).
				Str("reason", res.Err).
				Msg("skipping failed batch item")
			continue
		}

		parsed, err := llm.ParseQuestions(res.Text)
		if err != nil {
			p.logger.Warn().Err(err).
				Str("batch_id", job.BatchID).
				Str("custom_id", res.CustomID).
				Msg("skipping unparsable batch item")
			continue
		}

		for _, q := range parsed {
			if !q.Valid() {
				p.logger.Warn().
					Str("batch_id", job.BatchID).
					Str("custom_id", res.CustomID).
					Msg("skipping question without text or correct answer")
				continue
			}
			if q.Certification == "" {
				q.Certification = job.RequestParams.CertificationType
			}
			questions = append(questions, q)
		}
	}
	return questions
}

func (p *Poller) markError(batchID string, cause error) {
	status := models.BatchStatusError
	msg := cause.Error()
	if err := p.repo.Update(batchID, repository.BatchJobUpdate{
		Status:       &status,
		ErrorMessage: &msg,
	}); err != nil {
		// Even the error write failing must not stop the cycle.
		p.logger.Error().Err(err).Str("batch_id", batchID).Msg("failed to mark batch job as errored")
	}
}

func (p *Poller) notifyFailure(ctx context.Context, job models.BatchJob, reason string) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.NotifyBatchFailed(ctx, job, reason); err != nil {
		p.logger.Warn().Err(err).Str("batch_id", job.BatchID).Msg("failure notification failed")
	}
}
