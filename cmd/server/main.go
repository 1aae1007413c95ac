package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/mattn/go-sqlite3"

	"github.com/gridworks/citygen/internal/api"
	"github.com/gridworks/citygen/internal/chunk"
	"github.com/gridworks/citygen/internal/config"
	"github.com/gridworks/citygen/internal/db"
	"github.com/gridworks/citygen/internal/viewer"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log.Debug("Configuration loaded", "server_port", cfg.Server.Port, "db_path", cfg.Database.Path, "log_level", cfg.Logging.Level)

	// Setup logging
	setupLogging(cfg.Logging)
	log.Debug("Logging configured", "level", cfg.Logging.Level, "format", cfg.Logging.Format)

	// Load and validate world tuning
	log.Debug("Loading world tuning", "path", cfg.World.TuningPath)
	tuning, err := config.LoadTuning(cfg.World.TuningPath)
	if err != nil {
		log.Fatal("Failed to load world tuning", "error", err)
	}
	log.Info("World tuning loaded", "chunk_size", tuning.ChunkSize, "view_radius", tuning.ViewRadius, "time_budget_ms", tuning.Roads.TimeBudgetMs)

	// Initialize database
	log.Debug("Initializing database connection", "path", cfg.Database.Path)
	database, err := initializeDatabase(cfg.Database)
	if err != nil {
		log.Fatal("Failed to initialize database", "error", err)
	}
	defer database.Close()
	log.Debug("Database connection established")

	// Run migrations
	log.Debug("Running database migrations")
	if err := runMigrations(database); err != nil {
		log.Fatal("Failed to run database migrations", "error", err)
	}
	log.Debug("Database migrations completed successfully")

	// Load immutable template catalogs
	log.Debug("Loading template catalogs")
	catalogs, err := chunk.LoadCatalogs(context.Background(), db.New(database))
	if err != nil {
		log.Fatal("Failed to load template catalogs", "error", err)
	}
	log.Info("Template catalogs loaded",
		"archetypes", len(catalogs.Archetypes),
		"vegetation", len(catalogs.Vegetation),
		"props", len(catalogs.Props))

	// Initialize viewer manager
	log.Debug("Initializing viewer manager")
	viewerManager := viewer.NewManager(database)
	log.Debug("Viewer manager initialized")

	// Initialize visibility event hub and chunk manager
	log.Debug("Initializing chunk manager", "world_seed", cfg.World.Seed)
	hub := api.NewHub()
	chunkManager := chunk.NewManager(chunk.ConfigFromTuning(cfg.World.Seed, tuning), catalogs, database, hub)
	log.Debug("Chunk manager initialized")

	// Start background services
	log.Debug("Starting background services")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go startBackgroundServices(ctx, cfg.World, viewerManager)
	log.Debug("Background services started")

	// Initialize API handlers
	log.Debug("Initializing API handlers")
	handler := api.NewHandler(chunkManager, viewerManager, db.NewLoggingQueries(database))
	router := api.SetupRoutes(handler, viewerManager, hub)
	log.Debug("API routes configured")

	// Create HTTP server
	log.Debug("Creating HTTP server", "port", cfg.Server.Port, "read_timeout", cfg.Server.ReadTimeout, "write_timeout", cfg.Server.WriteTimeout, "idle_timeout", cfg.Server.IdleTimeout)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info("Starting citygen server", "port", cfg.Server.Port)
		log.Debug("Server listening on all interfaces", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
		log.Debug("Server stopped listening")
	}()

	// Wait for interrupt signal
	log.Debug("Server startup complete, waiting for shutdown signal")
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info("Shutting down server...", "signal", sig.String())

	// Create context for graceful shutdown
	log.Debug("Creating shutdown context", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Shutdown server, then tear down stream subscribers
	log.Debug("Initiating server shutdown")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	} else {
		log.Debug("Server shutdown completed gracefully")
	}
	hub.Close()

	log.Info("Server exited")
}

func setupLogging(cfg config.LoggingConfig) {
	// Set log level
	switch cfg.Level {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Warn("Invalid log level, using info", "level", cfg.Level)
		log.SetLevel(log.InfoLevel)
	}

	// Configure output format
	if cfg.Format == "pretty" || !cfg.Structured {
		log.SetReportCaller(true)
		log.SetReportTimestamp(true)
	}

	// Add service info context
	log.SetPrefix("[citygen] ")
}

func initializeDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	log.Debug("Opening database connection", "path", cfg.Path)
	database, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	log.Debug("Configuring database connection pool", "max_open_conns", cfg.MaxOpenConns, "max_idle_conns", cfg.MaxIdleConns, "conn_max_lifetime", cfg.ConnMaxLifetime)
	database.SetMaxOpenConns(cfg.MaxOpenConns)
	database.SetMaxIdleConns(cfg.MaxIdleConns)
	database.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Test connection
	log.Debug("Testing database connection")
	if err := database.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Debug("Database connection test successful")

	log.Info("Database initialized", "path", cfg.Path)
	return database, nil
}

func runMigrations(database *sql.DB) error {
	log.Debug("Creating migration driver")
	driver, err := sqlite3.WithInstance(database, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	log.Debug("Creating migration instance", "source", "./internal/db/migrations")
	m, err := migrate.NewWithDatabaseInstance(
		"file://./internal/db/migrations",
		"sqlite3",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	log.Debug("Running database migrations")
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("Database migrations completed")
	return nil
}

func startBackgroundServices(ctx context.Context, cfg config.WorldConfig, viewerManager *viewer.Manager) {
	// Stale viewer cleanup ticker
	log.Debug("Starting stale viewer cleanup ticker", "interval", cfg.CleanupInterval, "max_age", cfg.ViewerStaleTimeout)
	cleanupTicker := time.NewTicker(cfg.CleanupInterval)
	defer cleanupTicker.Stop()

	log.Debug("Background services running")
	for {
		select {
		case <-ctx.Done():
			log.Info("Background services stopped")
			return

		case <-cleanupTicker.C:
			start := time.Now()
			if err := viewerManager.CleanupStale(ctx, cfg.ViewerStaleTimeout); err != nil {
				log.Error("Failed to cleanup stale viewers", "error", err, "duration", time.Since(start))
			} else {
				log.Debug("Stale viewers cleaned up", "duration", time.Since(start))
			}
		}
	}
}
