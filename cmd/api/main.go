package main

import (
	"fmt"
	"log"
	"os"

	"github.com/kurihiro0119/grading-harvester/internal/aggregator"
	"github.com/kurihiro0119/grading-harvester/internal/api"
	"github.com/kurihiro0119/grading-harvester/internal/config"
	"github.com/kurihiro0119/grading-harvester/internal/logging"
	"github.com/kurihiro0119/grading-harvester/internal/storage"
	"github.com/kurihiro0119/grading-harvester/internal/storage/postgres"
	"github.com/kurihiro0119/grading-harvester/internal/storage/sqlite"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logging.Init(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	// Initialize storage
	var store storage.Storage
	switch cfg.StorageType {
	case "postgres":
		store, err = postgres.NewPostgresStorage(cfg.PostgresURL)
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL storage: %v", err)
		}
	case "sqlite":
		store, err = sqlite.NewSQLiteStorage(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite storage: %v", err)
		}
	default:
		log.Fatalf("STORAGE_TYPE is %q; the API server needs sqlite or postgres", cfg.StorageType)
	}
	defer store.Close()

	// Initialize aggregator
	agg := aggregator.NewAggregator(store)

	// Initialize handler
	handler := api.NewHandler(agg)

	// Setup routes
	router := api.SetupRoutes(handler)

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	logger := logging.New("api")
	logger.Info("starting API server", "addr", addr, "storage", cfg.StorageType)

	if err := router.Run(addr); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start server: %v\n", err)
		os.Exit(1)
	}
}
