package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/certprep/certprep-api/internal/authz"
	"github.com/certprep/certprep-api/internal/generation"
	"github.com/certprep/certprep-api/internal/llm"
	"github.com/certprep/certprep-api/internal/models"
	"github.com/certprep/certprep-api/internal/repository"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type GenerationHandler struct {
	submitter    *generation.Submitter
	batchRepo    repository.BatchJobRepository
	questionRepo repository.QuestionRepository
	client       *llm.Client
	maxAge       time.Duration
	logger       zerolog.Logger
}

func NewGenerationHandler(
	submitter *generation.Submitter,
	batchRepo repository.BatchJobRepository,
	questionRepo repository.QuestionRepository,
	client *llm.Client,
	maxAge time.Duration,
	logger zerolog.Logger,
) *GenerationHandler {
	return &GenerationHandler{
		submitter:    submitter,
		batchRepo:    batchRepo,
		questionRepo: questionRepo,
		client:       client,
		maxAge:       maxAge,
		logger:       logger.With().Str("handler", "generation").Logger(),
	}
}

type generateRequest struct {
	CertificationType string `json:"certification_type"`
	DomainName        string `json:"domain_name"`
	CognitiveLevel    string `json:"cognitive_level"`
	SkillLevel        string `json:"skill_level"`
	ScenarioContext   string `json:"scenario_context"`
	Count             int    `json:"count"`
	Persist           bool   `json:"persist"`
}

func (req generateRequest) params() models.RequestParams {
	return models.RequestParams{
		CertificationType: req.CertificationType,
		DomainName:        req.DomainName,
		CognitiveLevel:    req.CognitiveLevel,
		SkillLevel:        req.SkillLevel,
		ScenarioContext:   req.ScenarioContext,
		Count:             req.Count,
	}
}

// Generate is the synchronous single-question path. It shares the prompt
// builder and parser with the batch workflow.
func (h *GenerationHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if !models.IsValidCertification(req.CertificationType) {
		writeError(w, http.StatusBadRequest, "Unknown certification type")
		return
	}

	text, err := h.client.CreateMessage(r.Context(), llm.BuildQuestionPrompt(req.params()))
	if err != nil {
		h.logger.Error().Err(err).Msg("single generation failed")
		writeError(w, http.StatusBadGateway, "Generation request failed")
		return
	}

	questions, err := llm.ParseQuestions(text)
	if err != nil {
		h.logger.Warn().Err(err).Msg("generated payload was not parsable")
		writeError(w, http.StatusBadGateway, "Generated output was not parsable")
		return
	}

	valid := make([]models.Question, 0, len(questions))
	for _, q := range questions {
		if q.Certification == "" {
			q.Certification = req.CertificationType
		}
		if q.Valid() {
			valid = append(valid, q)
		}
	}

	if req.Persist && len(valid) > 0 {
		if _, err := h.questionRepo.CreateMany(valid); err != nil {
			h.logger.Error().Err(err).Msg("failed to persist generated questions")
			writeError(w, http.StatusInternalServerError, "Failed to persist generated questions")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"questions": valid})
}

// SubmitBatch accepts a batch generation request and returns immediately;
// progress is observed through the status and results endpoints.
func (h *GenerationHandler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	var ownerID *int64
	if uid, ok := authz.UserIDFromRequest(r); ok {
		ownerID = &uid
	}
	ownerName, _ := authz.UsernameFromRequest(r)

	job, err := h.submitter.Submit(r.Context(), req.params(), ownerID, ownerName)
	if err != nil {
		if errors.Is(err, generation.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error().Err(err).Msg("batch submission failed")
		writeError(w, http.StatusBadGateway, "Batch submission failed")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"batch_id":        job.BatchID,
		"remote_batch_id": job.RemoteBatchID,
		"status":          job.Status,
	})
}

// BatchStatus returns the current job projection. The age-based forced
// expiry applies at read time too, so a stale job reports expired without
// waiting for the next poll tick.
func (h *GenerationHandler) BatchStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}

	payload := map[string]interface{}{
		"batch_id":   job.BatchID,
		"status":     job.Status,
		"created_at": job.CreatedAt,
		"progress": map[string]interface{}{
			"requested": job.RequestParams.Count,
			"generated": len(job.Results),
		},
	}
	if job.ErrorMessage != nil {
		payload["error_message"] = *job.ErrorMessage
	}
	if job.LastPolledAt != nil {
		payload["last_polled_at"] = *job.LastPolledAt
	}
	if job.CompletedAt != nil {
		payload["completed_at"] = *job.CompletedAt
	}
	writeJSON(w, http.StatusOK, payload)
}

// BatchResults returns the parsed questions for a completed job, or a
// structured not-ready body carrying the current status.
func (h *GenerationHandler) BatchResults(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}

	if job.Status != models.BatchStatusCompleted {
		payload := map[string]interface{}{
			"batch_id": job.BatchID,
			"status":   job.Status,
			"ready":    false,
		}
		if job.ErrorMessage != nil {
			payload["error_message"] = *job.ErrorMessage
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	questions := job.Results
	if questions == nil {
		questions = []models.Question{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"batch_id":  job.BatchID,
		"status":    job.Status,
		"questions": questions,
	})
}

// loadJob fetches the job by path id and applies read-time forced expiry.
// Writes the error response itself when the second return value is false.
func (h *GenerationHandler) loadJob(w http.ResponseWriter, r *http.Request) (models.BatchJob, bool) {
	batchID := mux.Vars(r)["batchID"]

	job, err := h.batchRepo.Get(batchID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Batch job not found")
			return models.BatchJob{}, false
		}
		h.logger.Error().Err(err).Str("batch_id", batchID).Msg("failed to fetch batch job")
		writeError(w, http.StatusInternalServerError, "Failed to fetch batch job")
		return models.BatchJob{}, false
	}

	job, expired, err := generation.ForceExpireIfStale(h.batchRepo, job, h.maxAge, time.Now())
	if err != nil {
		h.logger.Error().Err(err).Str("batch_id", batchID).Msg("failed to expire stale batch job")
		// Fall through with the unexpired view rather than failing the read.
	} else if expired {
		h.logger.Warn().Str("batch_id", batchID).Msg("batch expired at read time")
	}
	return job, true
}
