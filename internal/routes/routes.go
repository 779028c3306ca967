package routes

import (
	"net/http"

	"github.com/certprep/certprep-api/internal/authz"
	"github.com/certprep/certprep-api/internal/handlers"
	"github.com/certprep/certprep-api/internal/models"
	"github.com/gorilla/mux"
)

// NewRouter sets up the API routes.
func NewRouter(
	health *handlers.HealthHandler,
	auth *handlers.AuthHandler,
	questions *handlers.QuestionHandler,
	gen *handlers.GenerationHandler,
	notifications *handlers.NotificationHandler,
	backup *handlers.BackupHandler,
) *mux.Router {
	router := mux.NewRouter()

	// Health check route
	router.HandleFunc("/health", health.Check).Methods(http.MethodGet)

	// Public auth endpoints
	router.HandleFunc("/api/signup", auth.SignUp).Methods(http.MethodPost)
	router.HandleFunc("/api/login", auth.Login).Methods(http.MethodPost)

	// Everything below requires a valid token.
	api := router.PathPrefix("/api").Subrouter()
	api.Use(auth.JWTMiddleware)

	api.HandleFunc("/questions", questions.List).Methods(http.MethodGet)
	api.HandleFunc("/questions/{id}", questions.Get).Methods(http.MethodGet)
	api.Handle("/questions", authz.RequireRoleHandler(models.RoleAdmin, questions.Create)).Methods(http.MethodPost)
	api.Handle("/questions/{id}", authz.RequireRoleHandler(models.RoleAdmin, questions.Update)).Methods(http.MethodPut)
	api.Handle("/questions/{id}", authz.RequireRoleHandler(models.RoleAdmin, questions.Delete)).Methods(http.MethodDelete)

	api.Handle("/generate", authz.RequireRoleHandler(models.RoleAdmin, gen.Generate)).Methods(http.MethodPost)
	api.Handle("/generate/batch", authz.RequireRoleHandler(models.RoleAdmin, gen.SubmitBatch)).Methods(http.MethodPost)
	api.Handle("/generate/batch/{batchID}/status", authz.RequireRoleHandler(models.RoleAdmin, gen.BatchStatus)).Methods(http.MethodGet)
	api.Handle("/generate/batch/{batchID}/results", authz.RequireRoleHandler(models.RoleAdmin, gen.BatchResults)).Methods(http.MethodGet)

	api.HandleFunc("/notifications", notifications.List).Methods(http.MethodGet)
	api.HandleFunc("/notifications/{id}/read", notifications.MarkRead).Methods(http.MethodPost)

	api.Handle("/backup/questions", authz.RequireRoleHandler(models.RoleAdmin, backup.DumpQuestions)).Methods(http.MethodGet)

	return router
}
