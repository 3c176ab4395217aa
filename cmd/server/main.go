package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/voltwise/voltwise/internal/auth"
	"github.com/voltwise/voltwise/internal/config"
	"github.com/voltwise/voltwise/internal/database"
	"github.com/voltwise/voltwise/internal/documents"
	"github.com/voltwise/voltwise/internal/middleware"
	"github.com/voltwise/voltwise/internal/plant"
	"github.com/voltwise/voltwise/internal/workflow"
	"github.com/voltwise/voltwise/internal/workflow/catalog"
	"github.com/voltwise/voltwise/internal/workflow/model"
	"github.com/voltwise/voltwise/internal/workflow/router"
)

// logSink records task completions in the server log. Swap for a real
// notification integration when one lands.
type logSink struct{}

func (logSink) TaskCompleted(ctx context.Context, n model.TaskCompletionNotification) {
	slog.InfoContext(ctx, "task completed",
		"task_id", n.TaskID,
		"workflow_id", n.WorkflowID,
		"progress", n.NewProgress,
	)
}

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	slog.Info("configuration loaded successfully",
		"db_host", cfg.Database.Host,
		"db_port", cfg.Database.Port,
		"db_name", cfg.Database.Name,
		"db_sslmode", cfg.Database.SSLMode,
	)

	slog.Info("server configuration",
		"port", cfg.Server.Port,
		"storage_type", cfg.Storage.Type,
	)

	// Initialize database connection
	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}()

	if err := database.HealthCheck(db); err != nil {
		log.Fatalf("database health check failed: %v", err)
	}

	// Run migrations
	if err := auth.Migrate(db); err != nil {
		log.Fatalf("failed to migrate auth tables: %v", err)
	}
	if err := plant.Migrate(db); err != nil {
		log.Fatalf("failed to migrate plant tables: %v", err)
	}
	if err := workflow.Migrate(db); err != nil {
		log.Fatalf("failed to migrate workflow tables: %v", err)
	}
	if err := documents.Migrate(db); err != nil {
		log.Fatalf("failed to migrate document tables: %v", err)
	}

	// Document storage
	blobStore, err := documents.NewBlobStoreFromConfig(context.Background(), cfg.Storage)
	if err != nil {
		log.Fatalf("failed to initialize document storage: %v", err)
	}
	documentService := documents.NewService(db, blobStore)

	// Workflow engine
	manager := workflow.NewManager(db, catalog.BuiltinTemplates(), logSink{})
	slog.Info("starting completion listener...")
	manager.StartCompletionListener()

	// HTTP surface
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(&cfg.CORS))

	authService := auth.NewService(db)
	engine.Use(auth.Middleware(authService, auth.NewTokenExtractor()))

	engine.GET("/healthz", func(c *gin.Context) {
		if err := database.HealthCheck(db); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api/v1")
	router.New(manager).Register(api)
	plant.NewHandler(plant.NewService(db)).Register(api)
	documents.NewHandler(documentService).Register(api)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: engine,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			quit <- syscall.SIGTERM
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	} else {
		slog.Info("server gracefully stopped")
	}

	slog.Info("stopping completion listener...")
	manager.StopCompletionListener()

	slog.Info("server stopped")
}
