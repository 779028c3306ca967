package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/certprep/certprep-api/internal/generation"
	"github.com/certprep/certprep-api/internal/repository"
	"github.com/rs/zerolog"
)

type BackupHandler struct {
	questionRepo repository.QuestionRepository
	logger       zerolog.Logger
}

func NewBackupHandler(questionRepo repository.QuestionRepository, logger zerolog.Logger) *BackupHandler {
	return &BackupHandler{
		questionRepo: questionRepo,
		logger:       logger.With().Str("handler", "backup").Logger(),
	}
}

// DumpQuestions streams a SQL dump of the questions table, rendered by the
// same insert-statement generator the poller uses for side files.
func (h *BackupHandler) DumpQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.questionRepo.ListAll()
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load questions for backup")
		writeError(w, http.StatusInternalServerError, "Failed to load questions")
		return
	}

	dump, err := generation.RenderInsertStatements(questions)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to render backup dump")
		writeError(w, http.StatusInternalServerError, "Failed to render backup")
		return
	}

	filename := fmt.Sprintf("questions_backup_%s.sql", time.Now().Format("20060102T150405"))
	w.Header().Set("Content-Type", "application/sql")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(dump))
}
