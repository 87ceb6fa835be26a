// Inventory Core - Device Inventory Service
//
// This is the main entry point for the inventory service. It tracks IT
// devices together with their full ownership and location history:
//   - Append-only transaction streams (who has a device, where it sits)
//   - Purchasing records with warranty tracking
//   - JWT-authenticated REST API with live WebSocket events
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	_ "github.com/fswalther/inventory-core/migrations"

	"github.com/fswalther/inventory-core/internal/api"
	"github.com/fswalther/inventory-core/internal/audit"
	"github.com/fswalther/inventory-core/internal/auth"
	"github.com/fswalther/inventory-core/internal/backup"
	"github.com/fswalther/inventory-core/internal/device"
	"github.com/fswalther/inventory-core/internal/infrastructure/config"
	"github.com/fswalther/inventory-core/internal/infrastructure/database"
	"github.com/fswalther/inventory-core/internal/infrastructure/logging"
	"github.com/fswalther/inventory-core/internal/ledger"
	"github.com/fswalther/inventory-core/internal/purchase"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Load .env if present; real environment variables win over file values.
	//nolint:errcheck // a missing .env file is not an error
	godotenv.Load()

	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting inventory-core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise repositories
	deviceRepo := device.NewSQLiteRepository(db.DB)
	ledgerRepo := ledger.NewSQLiteRepository(db.DB)
	purchaseRepo := purchase.NewSQLiteRepository(db.DB)
	userRepo := auth.NewUserRepository(db.DB)
	tokenRepo := auth.NewTokenRepository(db.DB)
	auditRepo := audit.NewSQLiteRepository(db.DB)
	backupSvc := backup.NewService(db.DB)

	// Device registry with in-memory cache
	deviceRegistry := device.NewRegistry(deviceRepo)
	deviceRegistry.SetLogger(log)
	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", deviceRegistry.GetDeviceCount())

	// Seed the first admin account if the user table is empty
	if cfg.Security.Seed.AdminUsername != "" {
		adminID, seedErr := auth.SeedAdmin(ctx, userRepo,
			cfg.Security.Seed.AdminUsername,
			cfg.Security.Seed.AdminPassword,
			log.Logger,
		)
		if seedErr != nil {
			return fmt.Errorf("seeding admin account: %w", seedErr)
		}
		if adminID != "" {
			log.Info("admin account seeded", "user_id", adminID)
		}
	}

	// Start HTTP API server
	server, err := api.New(api.Deps{
		Config:       cfg.API,
		WS:           cfg.WebSocket,
		Security:     cfg.Security,
		Logger:       log,
		Registry:     deviceRegistry,
		Ledger:       ledgerRepo,
		PurchaseRepo: purchaseRepo,
		UserRepo:     userRepo,
		TokenRepo:    tokenRepo,
		AuditRepo:    auditRepo,
		Backup:       backupSvc,
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify infrastructure is healthy before declaring readiness
	if err := healthCheck(ctx, db); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("inventory-core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses INVENTORY_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("INVENTORY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}
