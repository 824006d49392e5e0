package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/motium/motium-sync/internal/config"
	"github.com/motium/motium-sync/internal/database"
	"github.com/motium/motium-sync/internal/logger"
	"github.com/motium/motium-sync/internal/models"
	"github.com/motium/motium-sync/internal/remote"
	"github.com/motium/motium-sync/internal/repository"
	"github.com/motium/motium-sync/internal/service"
	"github.com/motium/motium-sync/internal/watcher"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logg := logger.New("[agent] ", cfg.LogFile)

	// Open the embedded local store
	local, err := database.OpenLocal(cfg.LocalDBPath)
	if err != nil {
		return err
	}
	logg.Printf("Local store ready at %s", cfg.LocalDBPath)

	// Connect to the remote store
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	logg.Println("Remote store connected")

	// Initialize local repositories
	records := repository.NewLocalRecordRepository(local)
	ops := repository.NewPendingOperationRepository(local)
	meta := repository.NewSyncMetadataRepository(local)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := meta.EnsureEntities(ctx, models.SyncEntities); err != nil {
		return err
	}

	coordinator := service.NewSyncCoordinator(
		records, ops, meta,
		remote.NewGormStore(db),
		logg,
		cfg.SyncBatchSize,
		cfg.MaxRetries,
	)
	coordinator.SetObserver(func(ev service.SyncEvent) {
		switch ev.Type {
		case service.SyncEventConflict:
			logg.Printf("Local edit on %s/%s lost to a newer remote version", ev.EntityType, ev.EntityID)
		case service.SyncEventRecordError:
			logg.Printf("Record %s/%s exhausted retries: %v", ev.EntityType, ev.EntityID, ev.Err)
		}
	})

	w := watcher.New(cfg, coordinator, logg)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- w.Start(ctx)
	}()

	select {
	case <-sigChan:
		logg.Println("Shutdown signal received")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
		defer shutdownCancel()

		select {
		case <-shutdownCtx.Done():
			logg.Println("Shutdown timeout exceeded")
		case err := <-errChan:
			if err != nil && !errors.Is(err, context.Canceled) {
				logg.Printf("Watcher error: %v", err)
			}
		}

		logg.Println("Application stopped")
		return nil

	case err := <-errChan:
		return err
	}
}
