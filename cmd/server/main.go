package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sparrowvision/internal/config"
	"sparrowvision/internal/connector"
	"sparrowvision/internal/credential"
	"sparrowvision/internal/database"
	"sparrowvision/internal/handler"
	"sparrowvision/internal/middleware"
	"sparrowvision/internal/store"
	"sparrowvision/internal/syncer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("error closing database connection: %v", err)
		}
	}()
	log.Println("database connection established")

	// Run migrations
	status, err := db.Migrate(database.ResolveMigrationsPath())
	if err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}
	if status.Dirty {
		log.Printf("WARNING: database is in dirty state at version %d - a previous migration failed and manual intervention is required", status.Version)
	} else {
		log.Printf("database migrations complete (version: %d)", status.Version)
	}

	// Initialize connector registry
	registry := connector.NewRegistry()
	log.Printf("registered connectors: %v", registry.Names())

	// Initialize encryption and credential manager
	encryptor, err := credential.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		log.Fatalf("failed to initialize encryptor: %v", err)
	}
	credManager := credential.NewManager(credential.NewDatastore(db.DB), encryptor, registry)

	// Identity store and sync orchestrator
	storeManager := store.NewManager(store.NewDatastore(db.DB))
	syncManager := syncer.New(registry, storeManager, credManager)

	// Set up routes with dependencies
	deps := &handler.Deps{
		Config:      cfg,
		DB:          db,
		Registry:    registry,
		Store:       storeManager,
		Credentials: credManager,
		Syncer:      syncManager,
	}

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, deps)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: middleware.Logging(mux),
	}

	// Channel to listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Channel to signal server errors
	serverErr := make(chan error, 1)

	// Start server in a goroutine
	go func() {
		log.Printf("SparrowVision server starting on :%s (env: %s)", cfg.Port, cfg.Environment)
		serverErr <- server.ListenAndServe()
	}()

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	case sig := <-shutdown:
		log.Printf("received signal %v, initiating graceful shutdown...", sig)

		// Create a context with timeout for the shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Attempt graceful shutdown
		log.Println("waiting for in-flight requests to complete...")
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("graceful shutdown failed: %v, forcing shutdown", err)
			if err := server.Close(); err != nil {
				log.Fatalf("forced shutdown failed: %v", err)
			}
		}

		log.Println("server shutdown complete")
	}
}
