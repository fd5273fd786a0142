package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/tempo/internal/accounts"
	"github.com/mrlokans/tempo/internal/analytics"
	"github.com/mrlokans/tempo/internal/config"
	http_controllers "github.com/mrlokans/tempo/internal/http"
	"github.com/mrlokans/tempo/internal/migration"
	"github.com/mrlokans/tempo/internal/scheduler"
	"github.com/mrlokans/tempo/internal/storage"
	"github.com/mrlokans/tempo/internal/storage/mongo"
	"github.com/mrlokans/tempo/internal/storage/sqlite"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// openProvider selects and opens the configured storage backend.
func openProvider(ctx context.Context, cfg *config.Config, backend config.Backend) (storage.Provider, error) {
	switch backend {
	case config.BackendSQLite:
		return sqlite.Open(sqlite.Config{
			Path:          cfg.Storage.Path,
			FlushInterval: cfg.Storage.FlushInterval,
		})
	case config.BackendMongo:
		return mongo.Open(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Drain in-flight requests before touching the storage layer.
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server Shutdown: %v", err)
	}

	if onShutdown != nil {
		onShutdown(ctx)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting Tempo v%s (backend: %s)", version, cfg.Storage.Backend)

	if cfg.Migration.Run {
		if err := RunMigration(cfg); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		return
	}

	ctx := context.Background()

	store, err := openProvider(ctx, cfg, cfg.Storage.Backend)
	if err != nil {
		log.Fatalf("Failed to initialize storage backend: %v", err)
	}

	engine := analytics.NewEngine(store)
	accountsService := accounts.NewService(store, accounts.Config{
		BcryptCost:      cfg.Auth.BcryptCost,
		RefreshTokenTTL: cfg.Auth.RefreshTokenTTL,
		ResetTokenTTL:   cfg.Auth.ResetTokenTTL,
	})

	var maintenance *scheduler.MaintenanceScheduler
	if cfg.Maintenance.Enabled {
		maintenance = scheduler.NewMaintenanceScheduler(store, cfg.Maintenance.Schedule)
		if err := maintenance.Start(); err != nil {
			log.Fatalf("Failed to start maintenance scheduler: %v", err)
		}
		log.Printf("Maintenance scheduler started (schedule: %s)", cfg.Maintenance.Schedule)
	}

	handlers := http_controllers.NewHandlers(store, engine, accountsService)
	router := http_controllers.NewRouter(handlers)

	onShutdown := func(ctx context.Context) {
		if maintenance != nil {
			maintenance.Stop()
		}
		// Final snapshot flush happens inside Close for the sqlite backend.
		if err := store.Close(ctx); err != nil {
			log.Printf("Error closing storage backend: %v", err)
		}
	}

	Serve(router, cfg, onShutdown)
}

// RunMigration copies all data from the configured source backend to the
// target backend. Safe to run repeatedly; already-migrated rows are skipped.
func RunMigration(cfg *config.Config) error {
	if cfg.Migration.Source == cfg.Migration.Target {
		return fmt.Errorf("migration source and target are both %q", cfg.Migration.Source)
	}

	ctx := context.Background()

	source, err := openProvider(ctx, cfg, cfg.Migration.Source)
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}
	defer func() {
		if err := source.Close(ctx); err != nil {
			log.Printf("Error closing migration source: %v", err)
		}
	}()

	target, err := openProvider(ctx, cfg, cfg.Migration.Target)
	if err != nil {
		return fmt.Errorf("open migration target: %w", err)
	}
	defer func() {
		if err := target.Close(ctx); err != nil {
			log.Printf("Error closing migration target: %v", err)
		}
	}()

	log.Printf("Migrating %s -> %s", cfg.Migration.Source, cfg.Migration.Target)
	stats, err := migration.Run(ctx, source, target)
	if err != nil {
		return err
	}
	log.Printf("Migration complete: %d users (%d created), %d categories, %d entries (%d skipped), %d settings",
		stats.Users, stats.UsersCreated, stats.Categories, stats.Entries, stats.EntriesSkipped, stats.SettingsCopied)
	return nil
}
