package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/certprep/certprep-api/internal/llm"
	"github.com/certprep/certprep-api/internal/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSubmitter(repo *fakeBatchRepo, baseURL string) *Submitter {
	client := llm.NewClient(llm.Config{
		APIKey:         "test-key",
		BaseURL:        baseURL,
		Model:          "test-model",
		MaxTokens:      512,
		RequestTimeout: 5 * time.Second,
	})
	return NewSubmitter(repo, client, zerolog.Nop())
}

func TestSubmitSuccess(t *testing.T) {
	var captured struct {
		Requests []llm.BatchItem `json:"requests"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(map[string]string{"id": "msgbatch_xyz"})
	}))
	defer server.Close()

	repo := newFakeBatchRepo()
	submitter := newTestSubmitter(repo, server.URL)

	owner := int64(7)
	params := models.RequestParams{
		CertificationType: models.CertificationSecurityPlus,
		Count:             3,
	}
	job, err := submitter.Submit(context.Background(), params, &owner, "alice")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(job.BatchID, "batch_"))
	assert.Equal(t, "msgbatch_xyz", job.RemoteBatchID)
	assert.Equal(t, models.BatchStatusPending, job.Status)
	require.NotNil(t, job.OwnerUserID)
	assert.Equal(t, int64(7), *job.OwnerUserID)
	assert.Equal(t, "alice", job.OwnerUsername)

	// One prompt per requested question, each traceable to the batch.
	require.Len(t, captured.Requests, 3)
	for i, item := range captured.Requests {
		assert.Equal(t, ItemCustomID(job.BatchID, i), item.CustomID)
	}

	stored, err := repo.Get(job.BatchID)
	require.NoError(t, err)
	assert.Equal(t, params, stored.RequestParams)
}

func TestSubmitInvalidCertification(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	repo := newFakeBatchRepo()
	submitter := newTestSubmitter(repo, server.URL)

	_, err := submitter.Submit(context.Background(), models.RequestParams{
		CertificationType: "XK0-005",
		Count:             1,
	}, nil, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	// Validation failures leave nothing behind, local or remote.
	assert.Zero(t, calls)
	assert.Empty(t, repo.jobs)
}

func TestSubmitInvalidCount(t *testing.T) {
	repo := newFakeBatchRepo()
	submitter := newTestSubmitter(repo, "http://127.0.0.1:0")

	_, err := submitter.Submit(context.Background(), models.RequestParams{
		CertificationType: models.CertificationCloudPlus,
		Count:             0,
	}, nil, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Empty(t, repo.jobs)
}

func TestSubmitRemoteFailureLeavesNoRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	repo := newFakeBatchRepo()
	submitter := newTestSubmitter(repo, server.URL)

	_, err := submitter.Submit(context.Background(), models.RequestParams{
		CertificationType: models.CertificationCloudPlus,
		Count:             2,
	}, nil, "")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Empty(t, repo.jobs)
}

func TestSubmitPersistFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "msgbatch_xyz"})
	}))
	defer server.Close()

	repo := newFakeBatchRepo()
	repo.createErr = assert.AnError
	submitter := newTestSubmitter(repo, server.URL)

	_, err := submitter.Submit(context.Background(), models.RequestParams{
		CertificationType: models.CertificationCloudPlus,
		Count:             1,
	}, nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist")
}

func TestNewBatchIDFormat(t *testing.T) {
	id := NewBatchID()
	parts := strings.Split(id, "_")
	require.Len(t, parts, 3)
	assert.Equal(t, "batch", parts[0])
	assert.Len(t, parts[2], 8)

	assert.NotEqual(t, id, NewBatchID())
}

func TestItemCustomID(t *testing.T) {
	assert.Equal(t, "batch_123_abcd1234-q0", ItemCustomID("batch_123_abcd1234", 0))
	assert.Equal(t, "batch_123_abcd1234-q17", ItemCustomID("batch_123_abcd1234", 17))
}
