package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/gorilla/handlers"
	"github.com/rs/zerolog"

	"github.com/certprep/certprep-api/internal/config"
	"github.com/certprep/certprep-api/internal/generation"
	"github.com/certprep/certprep-api/internal/handlers"
	"github.com/certprep/certprep-api/internal/llm"
	"github.com/certprep/certprep-api/internal/middleware"
	"github.com/certprep/certprep-api/internal/migration"
	"github.com/certprep/certprep-api/internal/notification"
	"github.com/certprep/certprep-api/internal/repository"
	"github.com/certprep/certprep-api/internal/routes"

	_ "github.com/lib/pq" // PostgreSQL driver
)

type application struct {
	config *config.Config
	db     *sql.DB
	logger zerolog.Logger
	client *llm.Client
	poller *generation.Poller
}

func main() {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load configuration.
	cfg := config.Load()

	// Initialize database connection.
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to the database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ping database")
	}

	// Run database migrations.
	migration.RunMigrations(cfg.DatabaseURL, logger)

	// Remote LLM batch API client.
	client := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		MaxTokens:      cfg.LLM.MaxTokens,
		RequestTimeout: cfg.LLM.RequestTimeout,
	})

	// Background poller reconciling batch jobs with the remote API.
	batchRepo := repository.NewBatchJobRepository(db)
	notifier := notification.NewService(repository.NewNotificationRepository(db), logger)
	poller := generation.NewPoller(batchRepo, client, notifier, generation.PollerConfig{
		Interval:  cfg.Batch.PollInterval,
		MaxAge:    cfg.Batch.MaxPendingAge,
		ExportDir: cfg.Batch.ExportDir,
	}, logger)

	app := &application{
		config: cfg,
		db:     db,
		logger: logger,
		client: client,
		poller: poller,
	}

	// Initialize the HTTP router and middleware.
	router := app.initRouter(batchRepo, notifier, logger)
	loggedRouter := middleware.LoggingMiddleware(logger)(router)
	corsHandler := h.CORS(
		h.AllowedOrigins([]string{cfg.CORSOrigin}),
		h.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		h.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		h.AllowCredentials(),
	)(loggedRouter)

	// Start the HTTP server and handle graceful shutdown.
	app.startServer(corsHandler, logger)

	logger.Info().Msg("Application terminated.")
}

// initRouter sets up all HTTP handlers and returns the router.
func (app *application) initRouter(batchRepo repository.BatchJobRepository, notifier notification.Service, logger zerolog.Logger) http.Handler {
	// Repositories
	questionRepo := repository.NewQuestionRepository(app.db)
	userRepo := repository.NewUserRepository(app.db)

	submitter := generation.NewSubmitter(batchRepo, app.client, logger)

	// Handlers
	healthHandler := handlers.NewHealthHandler(app.db)
	authHandler := handlers.NewAuthHandler(userRepo, app.config.JWTSecret, logger)
	questionHandler := handlers.NewQuestionHandler(questionRepo, logger)
	generationHandler := handlers.NewGenerationHandler(submitter, batchRepo, questionRepo, app.client, app.config.Batch.MaxPendingAge, logger)
	notificationHandler := handlers.NewNotificationHandler(notifier, logger)
	backupHandler := handlers.NewBackupHandler(questionRepo, logger)

	return routes.NewRouter(healthHandler, authHandler, questionHandler, generationHandler, notificationHandler, backupHandler)
}

// startServer launches the HTTP server and the poller, and handles graceful shutdown.
func (app *application) startServer(handler http.Handler, logger zerolog.Logger) {
	server := &http.Server{
		Addr:    ":" + app.config.ServerPort,
		Handler: handler,
	}

	// The poller runs until its context is cancelled at shutdown.
	pollerCtx, stopPoller := context.WithCancel(context.Background())
	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		if err := app.poller.Start(pollerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("Poller exited with error")
		}
	}()

	// Channel to listen for server errors
	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Wait for an interrupt signal or a server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Msgf("Received signal: %s. Shutting down...", sig)
	case err := <-serverErrCh:
		logger.Error().Err(err).Msg("Server error occurred")
	}

	// Gracefully shut down the HTTP server.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server shutdown complete.")
	}

	// Stop the background poller.
	logger.Info().Msg("Stopping batch poller...")
	stopPoller()
	<-pollerDone
	logger.Info().Msg("Batch poller stopped.")
}
