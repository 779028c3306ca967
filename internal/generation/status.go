package generation

import (
	"time"

	"github.com/certprep/certprep-api/internal/models"
	"github.com/certprep/certprep-api/internal/repository"
)

// MapRemoteStatus translates the remote processing-status vocabulary onto
// the local enum. The second return value is false for an unrecognized
// remote value, which callers log and treat as pending rather than failing
// the cycle.
func MapRemoteStatus(remote string) (models.BatchStatus, bool) {
	switch remote {
	case "ended":
		return models.BatchStatusCompleted, true
	case "in_progress":
		return models.BatchStatusInProgress, true
	case "validating":
		return models.BatchStatusValidating, true
	case "pending":
		return models.BatchStatusPending, true
	case "expired":
		return models.BatchStatusExpired, true
	case "cancelled", "canceled", "canceling":
		return models.BatchStatusCancelled, true
	default:
		return models.BatchStatusPending, false
	}
}

// ForceExpireIfStale applies the age rule shared by the poller and the
// status reader: a non-terminal job older than maxAge is persisted as
// expired so a later tick cannot resurrect it. Returns the (possibly
// updated) job and whether the rule fired.
func ForceExpireIfStale(repo repository.BatchJobRepository, job models.BatchJob, maxAge time.Duration, now time.Time) (models.BatchJob, bool, error) {
	if !job.ExpiredByAge(now, maxAge) {
		return job, false, nil
	}

	status := models.BatchStatusExpired
	msg := models.AgeExpiryMessage(maxAge)
	completedAt := now
	err := repo.Update(job.BatchID, repository.BatchJobUpdate{
		Status:       &status,
		ErrorMessage: &msg,
		CompletedAt:  &completedAt,
	})
	if err != nil {
		return job, false, err
	}

	job.Status = status
	job.ErrorMessage = &msg
	job.CompletedAt = &completedAt
	return job, true, nil
}
