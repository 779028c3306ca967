package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/certprep/certprep-api/internal/models"
	"github.com/certprep/certprep-api/internal/repository"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type QuestionHandler struct {
	repo   repository.QuestionRepository
	logger zerolog.Logger
}

func NewQuestionHandler(repo repository.QuestionRepository, logger zerolog.Logger) *QuestionHandler {
	return &QuestionHandler{
		repo:   repo,
		logger: logger.With().Str("handler", "question").Logger(),
	}
}

func (h *QuestionHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := repository.QuestionFilter{
		Certification: r.URL.Query().Get("certification"),
		Domain:        r.URL.Query().Get("domain"),
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil {
			filter.Limit = v
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil {
			filter.Offset = v
		}
	}

	questions, err := h.repo.List(filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list questions")
		writeError(w, http.StatusInternalServerError, "Failed to list questions")
		return
	}
	if questions == nil {
		questions = []models.Question{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"questions": questions})
}

func (h *QuestionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := questionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid question id")
		return
	}

	question, err := h.repo.Get(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Question not found")
			return
		}
		h.logger.Error().Err(err).Int64("id", id).Msg("failed to fetch question")
		writeError(w, http.StatusInternalServerError, "Failed to fetch question")
		return
	}
	writeJSON(w, http.StatusOK, question)
}

func (h *QuestionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var question models.Question
	if err := json.NewDecoder(r.Body).Decode(&question); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	question.NormalizeCorrectAnswers()
	if !question.Valid() {
		writeError(w, http.StatusBadRequest, "Question must have text and at least one correct option")
		return
	}

	created, err := h.repo.Create(question)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to create question")
		writeError(w, http.StatusInternalServerError, "Failed to create question")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *QuestionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := questionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid question id")
		return
	}

	var question models.Question
	if err := json.NewDecoder(r.Body).Decode(&question); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	question.NormalizeCorrectAnswers()
	if !question.Valid() {
		writeError(w, http.StatusBadRequest, "Question must have text and at least one correct option")
		return
	}

	updated, err := h.repo.Update(id, question)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Question not found")
			return
		}
		h.logger.Error().Err(err).Int64("id", id).Msg("failed to update question")
		writeError(w, http.StatusInternalServerError, "Failed to update question")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *QuestionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := questionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid question id")
		return
	}

	if err := h.repo.Delete(id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Question not found")
			return
		}
		h.logger.Error().Err(err).Int64("id", id).Msg("failed to delete question")
		writeError(w, http.StatusInternalServerError, "Failed to delete question")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func questionID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}
